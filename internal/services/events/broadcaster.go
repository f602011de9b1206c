package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/redis/go-redis/v9"
)

// Request lifecycle events, published alongside the scene generation events
const (
	EventTypeRequestQueued     agent.EventType = "request.queued"
	EventTypeRequestProcessing agent.EventType = "request.processing"
	EventTypeRequestFailed     agent.EventType = "request.failed"
)

// RequestPayload describes a queued scene request
type RequestPayload struct {
	StoryID   uuid.UUID `json:"storyId"`
	RequestID string    `json:"requestId"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

// Message is an event as it travels over Pub/Sub. Payload is kept raw so
// subscribers can forward it without knowing its type.
type Message struct {
	Type    agent.EventType `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Channel returns the Pub/Sub channel for a story's events
func Channel(storyID uuid.UUID) string {
	return fmt.Sprintf("story-events:%s", storyID.String())
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ agent.EventSink = (*Broadcaster)(nil)

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// Emit publishes a scene generation event to the story's channel
func (b *Broadcaster) Emit(ctx context.Context, storyID uuid.UUID, event agent.Event) error {
	return b.publish(ctx, storyID, event)
}

// PublishRequestQueued publishes a request.queued event
func (b *Broadcaster) PublishRequestQueued(ctx context.Context, storyID uuid.UUID, requestID string) error {
	return b.publish(ctx, storyID, agent.Event{
		Type:    EventTypeRequestQueued,
		Payload: RequestPayload{StoryID: storyID, RequestID: requestID, Status: "queued"},
	})
}

// PublishRequestProcessing publishes a request.processing event
func (b *Broadcaster) PublishRequestProcessing(ctx context.Context, storyID uuid.UUID, requestID string) error {
	return b.publish(ctx, storyID, agent.Event{
		Type:    EventTypeRequestProcessing,
		Payload: RequestPayload{StoryID: storyID, RequestID: requestID, Status: "processing"},
	})
}

// PublishRequestFailed publishes a request.failed event
func (b *Broadcaster) PublishRequestFailed(ctx context.Context, storyID uuid.UUID, requestID string, errorMsg string) error {
	return b.publish(ctx, storyID, agent.Event{
		Type:    EventTypeRequestFailed,
		Payload: RequestPayload{StoryID: storyID, RequestID: requestID, Status: "failed", Error: errorMsg},
	})
}

// Subscribe listens on a story's channel. The caller closes the returned
// PubSub.
func (b *Broadcaster) Subscribe(ctx context.Context, storyID uuid.UUID) *redis.PubSub {
	return b.redisClient.Subscribe(ctx, Channel(storyID))
}

func (b *Broadcaster) publish(ctx context.Context, storyID uuid.UUID, event agent.Event) error {
	channel := Channel(storyID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published",
		"channel", channel,
		"event_type", event.Type,
	)
	return nil
}

// Decode parses a Pub/Sub payload
func Decode(payload string) (*Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	return &m, nil
}
