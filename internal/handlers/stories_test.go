package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/queue"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

type fakeEnqueuer struct {
	mu       sync.Mutex
	requests []*queue.Request
	err      error
}

func (f *fakeEnqueuer) Enqueue(ctx context.Context, req *queue.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type fakeNotifier struct {
	queued []string
}

func (f *fakeNotifier) PublishRequestQueued(ctx context.Context, storyID uuid.UUID, requestID string) error {
	f.queued = append(f.queued, requestID)
	return nil
}

func seedStory(t *testing.T, store *storage.MockStore) (*scene.Story, *scene.Character) {
	t.Helper()
	ctx := context.Background()
	story := &scene.Story{ID: uuid.New(), Title: "Harbor Lights", Description: "A smuggler's port"}
	if err := store.SaveStory(ctx, story); err != nil {
		t.Fatalf("SaveStory failed: %v", err)
	}
	player := &scene.Character{ID: uuid.New(), StoryID: story.ID, Name: "Aria", Role: scene.RolePlayer, Description: "A courier"}
	npc := &scene.Character{ID: uuid.New(), StoryID: story.ID, Name: "Mira", Role: scene.RoleNPC, Description: "A dock boss"}
	for _, c := range []*scene.Character{player, npc} {
		if _, err := store.PersistCharacter(ctx, c); err != nil {
			t.Fatalf("PersistCharacter failed: %v", err)
		}
	}
	return story, player
}

func TestStoriesHandler_Create(t *testing.T) {
	store := storage.NewMockStore()
	handler := NewStoriesHandler(store, &fakeEnqueuer{}, nil, testLogger())

	body := `{"title":"Harbor Lights","description":"A smuggler's port","player":{"name":"Aria","description":"A courier"}}`
	req := httptest.NewRequest(http.MethodPost, "/v1/stories", strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp StoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Story == nil || resp.Story.Title != "Harbor Lights" {
		t.Fatalf("Unexpected story: %+v", resp.Story)
	}
	if resp.Player == nil || resp.Player.Role != scene.RolePlayer || resp.Player.StoryID != resp.Story.ID {
		t.Errorf("Expected player owned by the story, got %+v", resp.Player)
	}
	if store.CharacterCount() != 1 {
		t.Errorf("Expected 1 stored character, got %d", store.CharacterCount())
	}
}

func TestStoriesHandler_CreateInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"title":`},
		{"missing title", `{"player":{"name":"Aria","description":"A courier"}}`},
		{"missing player name", `{"title":"Harbor Lights","player":{"description":"A courier"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMockStore()
			handler := NewStoriesHandler(store, &fakeEnqueuer{}, nil, testLogger())

			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/stories", strings.NewReader(tt.body)))

			if rr.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", rr.Code)
			}
			if store.CharacterCount() != 0 {
				t.Errorf("Expected nothing stored, got %d characters", store.CharacterCount())
			}
		})
	}
}

func TestStoriesHandler_Get(t *testing.T) {
	store := storage.NewMockStore()
	story, player := seedStory(t, store)
	handler := NewStoriesHandler(store, &fakeEnqueuer{}, nil, testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/stories/"+story.ID.String(), nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	var resp StoryResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Player == nil || resp.Player.ID != player.ID {
		t.Errorf("Expected player %s, got %+v", player.ID, resp.Player)
	}
	if len(resp.Characters) != 1 || resp.Characters[0].Name != "Mira" {
		t.Errorf("Expected only the NPC in characters, got %+v", resp.Characters)
	}
	if resp.LatestScene != nil {
		t.Errorf("Expected no latest scene, got %+v", resp.LatestScene)
	}
}

func TestStoriesHandler_GetErrors(t *testing.T) {
	handler := NewStoriesHandler(storage.NewMockStore(), &fakeEnqueuer{}, nil, testLogger())

	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"invalid id", http.MethodGet, "/v1/stories/not-a-uuid", http.StatusBadRequest},
		{"unknown story", http.MethodGet, "/v1/stories/" + uuid.NewString(), http.StatusNotFound},
		{"unknown subresource", http.MethodGet, "/v1/stories/" + uuid.NewString() + "/cast", http.StatusNotFound},
		{"wrong method", http.MethodDelete, "/v1/stories/" + uuid.NewString(), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			if rr.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, rr.Code)
			}
		})
	}
}

func TestStoriesHandler_GenerateScene(t *testing.T) {
	store := storage.NewMockStore()
	story, _ := seedStory(t, store)
	q := &fakeEnqueuer{}
	notifier := &fakeNotifier{}
	handler := NewStoriesHandler(store, q, notifier, testLogger())

	body := `{"relevantConversations":["Aria asked Mira about the missing crates."]}`
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/stories/"+story.ID.String()+"/scenes", strings.NewReader(body)))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp GenerateSceneResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "queued" || resp.StoryID != story.ID {
		t.Errorf("Unexpected response: %+v", resp)
	}
	if len(q.requests) != 1 {
		t.Fatalf("Expected 1 queued request, got %d", len(q.requests))
	}
	got := q.requests[0]
	if got.RequestID != resp.RequestID || got.StoryID != story.ID {
		t.Errorf("Queued request does not match response: %+v", got)
	}
	if len(got.RelevantConversations) != 1 {
		t.Errorf("Expected conversations to be forwarded, got %v", got.RelevantConversations)
	}
	if len(notifier.queued) != 1 || notifier.queued[0] != resp.RequestID {
		t.Errorf("Expected queued notification for %s, got %v", resp.RequestID, notifier.queued)
	}
}

func TestStoriesHandler_GenerateSceneWithoutBody(t *testing.T) {
	store := storage.NewMockStore()
	story, _ := seedStory(t, store)
	q := &fakeEnqueuer{}
	handler := NewStoriesHandler(store, q, nil, testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/stories/"+story.ID.String()+"/scenes", nil))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	if len(q.requests) != 1 {
		t.Errorf("Expected 1 queued request, got %d", len(q.requests))
	}
}

func TestStoriesHandler_GenerateSceneQueueDown(t *testing.T) {
	store := storage.NewMockStore()
	story, _ := seedStory(t, store)
	handler := NewStoriesHandler(store, &fakeEnqueuer{err: errors.New("redis down")}, nil, testLogger())

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/stories/"+story.ID.String()+"/scenes", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}
}
