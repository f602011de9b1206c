package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct {
	events []Event
}

func (s *failingSink) Emit(ctx context.Context, storyID uuid.UUID, e Event) error {
	s.events = append(s.events, e)
	return errors.New("no subscribers")
}

func TestProgress_StartFinish(t *testing.T) {
	sink := &failingSink{}
	storyID := uuid.New()
	p := newProgress(storyID, sink, testLogger())
	ctx := context.Background()

	first := p.start(ctx, ActionCharacter, "Creating Mira")
	second := p.start(ctx, ActionCharacter, "Creating Bram")
	assert.Equal(t, ActionCharacter, first)
	assert.NotEqual(t, first, second)

	p.finish(ctx, first)
	p.finish(ctx, first)
	p.finish(ctx, second)

	require.Len(t, sink.events, 4, "repeated finish must not publish")
	for _, e := range sink.events {
		assert.Equal(t, EventActionChanged, e.Type)
		assert.Equal(t, storyID, e.Payload.(ActionsPayload).StoryID)
	}
	assert.Equal(t, map[string]string{first: "Creating Mira", second: "Creating Bram"}, sink.events[1].Payload.(ActionsPayload).Actions)
	assert.Equal(t, map[string]string{second: "Creating Bram"}, sink.events[2].Payload.(ActionsPayload).Actions)
	assert.Empty(t, sink.events[3].Payload.(ActionsPayload).Actions)
}
