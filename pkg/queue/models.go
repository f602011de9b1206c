package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType identifies the type of request in the queue
type RequestType string

const (
	// RequestTypeGenerateScene asks a worker to build the next scene of a story
	RequestTypeGenerateScene RequestType = "generate_scene"
)

// Request represents a scene generation request in the queue
type Request struct {
	RequestID string      `json:"request_id"`
	Type      RequestType `json:"type"`
	StoryID   uuid.UUID   `json:"story_id"`

	// RelevantConversations are pre-retrieved snippets from earlier scenes,
	// passed to the planner as context
	RelevantConversations []string `json:"relevant_conversations,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewGenerateSceneRequest builds a request with a fresh request ID.
func NewGenerateSceneRequest(storyID uuid.UUID, conversations []string) *Request {
	return &Request{
		RequestID:             uuid.New().String(),
		Type:                  RequestTypeGenerateScene,
		StoryID:               storyID,
		RelevantConversations: conversations,
		EnqueuedAt:            time.Now(),
	}
}

// Validate checks the request can be processed.
func (r *Request) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("request_id is required")
	}
	if r.StoryID == uuid.Nil {
		return fmt.Errorf("story_id is required")
	}
	if r.Type != RequestTypeGenerateScene {
		return fmt.Errorf("unsupported request type %q", r.Type)
	}
	return nil
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
