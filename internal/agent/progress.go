package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/google/uuid"
)

// Action kinds reported through action_changed
const (
	ActionPlanning  = "planning"
	ActionLocation  = "location"
	ActionCharacter = "character"
)

// progress tracks the actions currently running and publishes the whole set
// every time it changes.
type progress struct {
	storyID uuid.UUID
	sink    EventSink
	logger  *slog.Logger

	mu      sync.Mutex
	actions map[string]string
}

func newProgress(storyID uuid.UUID, sink EventSink, logger *slog.Logger) *progress {
	return &progress{
		storyID: storyID,
		sink:    sink,
		logger:  logger,
		actions: make(map[string]string),
	}
}

// start records an action and returns its key. Concurrent actions of the
// same kind get distinct keys.
func (p *progress) start(ctx context.Context, kind, message string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := kind
	for n := 2; ; n++ {
		if _, taken := p.actions[key]; !taken {
			break
		}
		key = fmt.Sprintf("%s_%d", kind, n)
	}
	p.actions[key] = message
	p.publish(ctx)
	return key
}

// finish removes an action
func (p *progress) finish(ctx context.Context, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.actions[key]; !ok {
		return
	}
	delete(p.actions, key)
	p.publish(ctx)
}

// publish must be called with mu held
func (p *progress) publish(ctx context.Context) {
	emit(ctx, p.sink, p.logger, p.storyID, Event{
		Type: EventActionChanged,
		Payload: ActionsPayload{
			StoryID: p.storyID,
			Actions: maps.Clone(p.actions),
		},
	})
}
