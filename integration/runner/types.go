package runner

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/handlers"
)

// TestCase defines one end-to-end scene generation against a running stack
type TestCase struct {
	Name                  string                      `json:"name"`
	Story                 handlers.CreateStoryRequest `json:"story"`
	RelevantConversations []string                    `json:"relevant_conversations,omitempty"`
	Expectations          Expectations                `json:"expect"`
}

// Expectations defines what to check once the scene is complete
type Expectations struct {
	MinCharacters        *int     `json:"min_characters,omitempty"`
	MaxCharacters        *int     `json:"max_characters,omitempty"`
	DescriptionMinLength *int     `json:"description_min_length,omitempty"`
	DescriptionContains  []string `json:"description_contains,omitempty"`
	// Events that must appear on the stream, in any order
	Events []string `json:"events,omitempty"`
	// CompleteScene closes the scene afterwards and checks the transition
	CompleteScene bool `json:"complete_scene,omitempty"`
}

// Event is one SSE frame
type Event struct {
	Type string
	Data json.RawMessage
}

// TestResult contains the outcome of running one case
type TestResult struct {
	Name     string
	StoryID  uuid.UUID
	SceneID  uuid.UUID
	Events   []string
	Error    error
	Duration time.Duration
}
