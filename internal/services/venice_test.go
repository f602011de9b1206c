package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVeniceService(t *testing.T) {
	service := NewVeniceService("test-api-key", "test-model")

	assert.Equal(t, "test-api-key", service.apiKey)
	assert.Equal(t, "test-model", service.modelName)
	assert.NotNil(t, service.httpClient)
	assert.NoError(t, service.InitModel(context.Background(), "test-model"))
}

func TestVeniceService_ChatToolCalls(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "venice-model",
			"choices": [{
				"index": 0,
				"finish_reason": "tool_calls",
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "generate_character", "arguments": "{\"character_draft\":{\"name\":\"Mira\",\"age\":31}}"}},
						{"id": "call_2", "type": "function", "function": {"name": "finalize_scene", "arguments": "not json"}},
						{"id": "call_3", "type": "function", "function": {"name": "generate_location", "arguments": ""}}
					]
				}
			}]
		}`))
	}))
	defer server.Close()

	service := NewVeniceService("test-key", "venice-default")
	service.SetBaseURL(server.URL)

	resp, err := service.Chat(context.Background(), &chat.ChatRequest{
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "plan"}},
		Tools:    []chat.Tool{{Name: "generate_character", Parameters: map[string]interface{}{"type": "object"}}},
	})
	require.NoError(t, err)

	assert.Equal(t, "venice-default", captured["model"])
	params, ok := captured["venice_parameters"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "off", params["enable_web_search"])
	tools, ok := captured["tools"].([]interface{})
	require.True(t, ok)
	assert.Len(t, tools, 1)
	assert.Nil(t, captured["response_format"])

	require.Len(t, resp.ToolCalls, 3)
	var args struct {
		Draft struct {
			Name string `json:"name"`
			Age  int    `json:"age"`
		} `json:"character_draft"`
	}
	require.NoError(t, resp.ToolCalls[0].DecodeArguments(&args))
	assert.Equal(t, "Mira", args.Draft.Name)
	assert.Equal(t, 31, args.Draft.Age)

	var finalize struct {
		Description string `json:"description"`
	}
	assert.Error(t, resp.ToolCalls[1].DecodeArguments(&finalize))
	assert.NoError(t, resp.ToolCalls[2].DecodeArguments(&finalize))
}

func TestOpenAIService_JSONOutput(t *testing.T) {
	var captured OpenAIChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"model":"gpt","choices":[{"message":{"role":"assistant","content":"{\"name\":\"Pier\"}"}}]}`))
	}))
	defer server.Close()

	service := NewOpenAIService("k", "gpt-default", server.URL+"/")
	resp, err := service.Chat(context.Background(), &chat.ChatRequest{
		Model:       "gpt-structurer",
		Messages:    []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "structure"}},
		Temperature: chat.Temperature(0),
		JSONOutput:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "gpt-structurer", captured.Model)
	assert.Equal(t, 0.0, captured.Temperature)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
	assert.Equal(t, `{"name":"Pier"}`, resp.Message)
}

func TestOpenAIService_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	service := NewOpenAIService("k", "gpt", server.URL)
	resp, err := service.Chat(context.Background(), &chat.ChatRequest{
		Messages: []chat.ChatMessage{{Role: chat.ChatRoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, msgNoResponse, resp.Message)

	_, err = service.Chat(context.Background(), &chat.ChatRequest{})
	assert.Error(t, err)
}
