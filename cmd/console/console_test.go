package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/handlers"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		"event: connected",
		`data: {"storyId":"abc"}`,
		"",
		": keepalive",
		"",
		"event: location_added",
		`data: {"name":"Salt Docks"}`,
		"",
	}, "\n") + "\n"

	ch := make(chan SSEEvent, 4)
	if err := readSSE(context.Background(), strings.NewReader(stream), ch); err != nil {
		t.Fatalf("readSSE failed: %v", err)
	}
	close(ch)

	var got []SSEEvent
	for ev := range ch {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d: %+v", len(got), got)
	}
	if got[0].Type != "connected" || got[1].Type != "location_added" {
		t.Errorf("Unexpected event types: %s, %s", got[0].Type, got[1].Type)
	}
	if string(got[1].Data) != `{"name":"Salt Docks"}` {
		t.Errorf("Unexpected data: %s", got[1].Data)
	}
}

func TestDoJSON_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(handlers.ErrorResponse{Error: "Story not found"})
	}))
	defer srv.Close()

	_, err := getStory(srv.Client(), srv.URL, uuid.New())
	if err == nil || !strings.Contains(err.Error(), "Story not found") {
		t.Errorf("Expected API error message, got %v", err)
	}
}

func TestRequestScene(t *testing.T) {
	storyID := uuid.New()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != fmt.Sprintf("/v1/stories/%s/scenes", storyID) {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		var body handlers.GenerateSceneRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if len(body.RelevantConversations) != 1 {
			t.Errorf("Expected conversations to be sent, got %v", body.RelevantConversations)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(handlers.GenerateSceneResponse{RequestID: "req-1", StoryID: storyID, Status: "queued"})
	}))
	defer srv.Close()

	resp, err := requestScene(srv.Client(), srv.URL, storyID, []string{"Aria met Mira."})
	if err != nil {
		t.Fatalf("requestScene failed: %v", err)
	}
	if resp.RequestID != "req-1" {
		t.Errorf("Expected request id req-1, got %s", resp.RequestID)
	}
}

func event(t *testing.T, typ agent.EventType, payload interface{}) SSEEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return SSEEvent{Type: string(typ), Data: data}
}

func TestConsoleUI_HandleEvent(t *testing.T) {
	storyID := uuid.New()
	story := &handlers.StoryResponse{Story: &scene.Story{ID: storyID, Title: "Harbor Lights"}}
	m := NewConsoleUI(&ConsoleConfig{APIBaseURL: "http://unused"}, http.DefaultClient, http.DefaultClient, story, nil)
	defer m.cancel()

	if cmd := m.handleEvent(SSEEvent{Type: "connected"}); cmd == nil {
		t.Error("Expected connected to trigger a scene request")
	}

	m.handleEvent(event(t, agent.EventActionChanged, agent.ActionsPayload{
		StoryID: storyID,
		Actions: map[string]string{agent.ActionLocation: "Generating location..."},
	}))
	if m.actions[agent.ActionLocation] != "Generating location..." {
		t.Errorf("Expected actions to be tracked, got %v", m.actions)
	}

	m.handleEvent(event(t, agent.EventLocationAdded, scene.Location{ID: uuid.New(), Name: "Salt Docks"}))
	m.handleEvent(event(t, agent.EventCharacterAdded, scene.Character{ID: uuid.New(), Name: "Mira"}))
	if len(m.locations) != 1 || len(m.characters) != 1 {
		t.Fatalf("Expected one location and one character, got %d and %d", len(m.locations), len(m.characters))
	}

	sceneID := uuid.New()
	m.handleEvent(event(t, agent.EventSceneComplete, agent.SceneComplete(storyID, sceneID, "Rain hammers the pier.").Payload))
	if !m.done || m.description != "Rain hammers the pier." || m.sceneID != sceneID {
		t.Errorf("Expected completed scene, got done=%v description=%q id=%s", m.done, m.description, m.sceneID)
	}
	if len(m.actions) != 0 {
		t.Errorf("Expected actions cleared on completion, got %v", m.actions)
	}

	m.refresh()
	if out := m.sceneContent(); !strings.Contains(out, "Salt Docks") || !strings.Contains(out, "Rain hammers") {
		t.Errorf("Expected rendered scene content, got %s", out)
	}
}

func TestConsoleUI_ErrorEvent(t *testing.T) {
	story := &handlers.StoryResponse{Story: &scene.Story{ID: uuid.New()}}
	m := NewConsoleUI(&ConsoleConfig{}, http.DefaultClient, http.DefaultClient, story, nil)
	defer m.cancel()

	m.handleEvent(event(t, agent.EventError, agent.ErrorEvent("Scene generation took too long and was stopped.").Payload))
	if m.err == nil || !strings.Contains(m.err.Error(), "too long") {
		t.Errorf("Expected error to be recorded, got %v", m.err)
	}
}
