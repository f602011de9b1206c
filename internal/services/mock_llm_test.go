package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/jwebster45206/scene-engine/pkg/chat"
)

func TestMockLLMService(t *testing.T) {
	mockService := NewMockLLMAPI()

	err := mockService.InitModel(context.Background(), "test-model")
	if err != nil {
		t.Errorf("InitModel failed: %v", err)
	}

	if len(mockService.InitModelCalls) != 1 {
		t.Errorf("Expected 1 InitModel call, got %d", len(mockService.InitModelCalls))
	}

	if mockService.InitModelCalls[0] != "test-model" {
		t.Errorf("Expected model name 'test-model', got '%s'", mockService.InitModelCalls[0])
	}

	req := &chat.ChatRequest{
		Messages: []chat.ChatMessage{
			{Role: chat.ChatRoleUser, Content: "Hello"},
		},
	}

	response, err := mockService.Chat(context.Background(), req)
	if err != nil {
		t.Errorf("Chat failed: %v", err)
	}

	if response.Message != "Mock response" {
		t.Errorf("Expected 'Mock response', got '%s'", response.Message)
	}

	_, chatCalls := mockService.GetCalls()
	if len(chatCalls) != 1 {
		t.Errorf("Expected 1 Chat call, got %d", len(chatCalls))
	}
	if chatCalls[0].Request.Messages[0].Content != "Hello" {
		t.Errorf("Expected recorded message 'Hello', got '%s'", chatCalls[0].Request.Messages[0].Content)
	}

	mockService.Reset()
	if mockService.ChatCallCount() != 0 {
		t.Errorf("Expected calls to be cleared after Reset")
	}
}

func TestMockLLMService_ErrorHandling(t *testing.T) {
	mockService := NewMockLLMAPI()

	expectedErr := fmt.Errorf("initialization failed")
	mockService.SetInitModelError(expectedErr)

	err := mockService.InitModel(context.Background(), "test-model")
	if err == nil {
		t.Fatalf("Expected error, got nil")
	}

	if err.Error() != expectedErr.Error() {
		t.Errorf("Expected error '%s', got '%s'", expectedErr.Error(), err.Error())
	}

	mockService.SetChatError(fmt.Errorf("provider down"))
	if _, err := mockService.Chat(context.Background(), &chat.ChatRequest{}); err == nil {
		t.Errorf("Expected Chat error, got nil")
	}
}

func TestMockLLMService_ToolCallResponse(t *testing.T) {
	mockService := NewMockLLMAPI()
	mockService.SetChatResponse(&chat.ChatResponse{
		ToolCalls: []chat.ToolCall{{ID: "1", Name: "finalize_scene"}},
	})

	resp, err := mockService.Chat(context.Background(), &chat.ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Name != "finalize_scene" {
		t.Errorf("Expected finalize_scene tool call, got %+v", resp.ToolCalls)
	}
}
