package agent

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// EventType names a progress message sent while a scene is generated
type EventType string

const (
	EventLocationAdded  EventType = "location_added"
	EventCharacterAdded EventType = "character_added"
	EventActionChanged  EventType = "action_changed"
	EventSceneComplete  EventType = "scene_complete"
	EventError          EventType = "error"
)

// Event is one progress message. Payload is a *scene.Location,
// *scene.Character, ActionsPayload, SceneCompletePayload or ErrorPayload.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

type ActionsPayload struct {
	StoryID uuid.UUID         `json:"storyId"`
	Actions map[string]string `json:"actions"`
}

type SceneCompletePayload struct {
	StoryID     uuid.UUID `json:"storyId"`
	SceneID     uuid.UUID `json:"sceneId,omitempty"`
	Message     string    `json:"message"`
	Description string    `json:"description"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// EventSink receives progress events. Delivery is best effort: a failing
// sink never affects generation.
type EventSink interface {
	Emit(ctx context.Context, storyID uuid.UUID, event Event) error
}

type nopSink struct{}

func (nopSink) Emit(context.Context, uuid.UUID, Event) error { return nil }

// SceneComplete builds the scene_complete event for a finished scene
func SceneComplete(storyID, sceneID uuid.UUID, description string) Event {
	return Event{
		Type: EventSceneComplete,
		Payload: SceneCompletePayload{
			StoryID:     storyID,
			SceneID:     sceneID,
			Message:     "Scene generation complete.",
			Description: description,
		},
	}
}

// ErrorEvent builds an error event
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Payload: ErrorPayload{Message: message}}
}

func emit(ctx context.Context, sink EventSink, logger *slog.Logger, storyID uuid.UUID, event Event) {
	if err := sink.Emit(ctx, storyID, event); err != nil {
		logger.Warn("Failed to emit event", "event_type", event.Type, "error", err)
	}
}
