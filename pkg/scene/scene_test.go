package scene

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusNotStarted, StatusGenerating, true},
		{StatusNotStarted, StatusFailed, true},
		{StatusNotStarted, StatusActive, false},
		{StatusGenerating, StatusActive, true},
		{StatusGenerating, StatusFailed, true},
		{StatusGenerating, StatusNotStarted, false},
		{StatusActive, StatusCompleted, true},
		{StatusActive, StatusFailed, false},
		{StatusActive, StatusGenerating, false},
		{StatusActive, StatusActive, false},
		{StatusCompleted, StatusActive, false},
		{StatusFailed, StatusGenerating, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusActive.Terminal())
	assert.False(t, Status("bogus").Valid())
	assert.True(t, StatusGenerating.Valid())
}

func TestError_IsByKind(t *testing.T) {
	err := Errorf(KindPlayerRoleForbidden, "character %q is the player", "Aria")
	wrapped := fmt.Errorf("generate character: %w", err)

	assert.True(t, errors.Is(wrapped, ErrPlayerRoleForbidden))
	assert.False(t, errors.Is(wrapped, ErrRenderFailed))
	assert.Equal(t, KindPlayerRoleForbidden, KindOf(wrapped))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_WrapKeepsCause(t *testing.T) {
	err := Wrap(KindCancelled, "scene generation cancelled", context.Canceled)

	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "scene generation cancelled: context canceled", err.Error())
}

func TestSameName(t *testing.T) {
	assert.True(t, SameName("Aria", "aria"))
	assert.True(t, SameName("  Aria  Vane ", "ARIA VANE"))
	assert.True(t, SameName("Élodie", "ÉLODIE"))
	assert.False(t, SameName("Aria", "Arianne"))
}

func TestCharacter_Validate(t *testing.T) {
	c := Character{Name: "Mira", Description: "A dockhand."}
	assert.NoError(t, c.Validate())

	c.Relationships = []Relationship{{Name: "Aria", Type: "friend", Level: 11}}
	assert.Error(t, c.Validate())

	assert.Error(t, (&Character{Description: "nameless"}).Validate())
	assert.True(t, (&Character{Role: RolePlayer}).IsPlayer())
	assert.True(t, (&Character{Role: " Player "}).IsPlayer())
	assert.False(t, (&Character{Role: RoleNPC}).IsPlayer())
	assert.False(t, Role("").IsPlayer())
	assert.False(t, (*Character)(nil).IsPlayer())
}

func TestLocationAndDraft_Validate(t *testing.T) {
	assert.NoError(t, (&Location{Name: "Pier", Description: "Wet planks."}).Validate())
	assert.Error(t, (&Location{Name: "Pier"}).Validate())

	assert.NoError(t, (&CharacterDraft{Name: "Mira", Age: 30}).Validate())
	assert.Error(t, (&CharacterDraft{Name: " "}).Validate())
	assert.Error(t, (&CharacterDraft{Name: "Mira", Age: -1}).Validate())
}
