package scene

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the story's single player character from NPCs.
type Role string

const (
	RolePlayer Role = "player"
	RoleNPC    Role = "npc"
)

// IsPlayer reports whether r names the player role, ignoring case and
// surrounding space.
func (r Role) IsPlayer() bool {
	return strings.EqualFold(strings.TrimSpace(string(r)), string(RolePlayer))
}

const (
	// DefaultCharactersCap is the maximum number of NPCs in a scene
	DefaultCharactersCap = 3

	// MaxRelationshipLevel is the upper bound of Relationship.Level
	MaxRelationshipLevel = 10

	// FallbackDescription is used when the planner runs out of steps
	FallbackDescription = "Scene generation timed out before completion."
)

// Story is the narrative frame a scene belongs to. The agent only reads it.
type Story struct {
	ID          uuid.UUID `json:"uuid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Rules       []string  `json:"rules"`
}

// Relationship describes how a character relates to another named character.
type Relationship struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Level     int    `json:"level"` // 0-10
	Backstory string `json:"backstory,omitempty"`
}

// Character is a player or non-player character owned by a story.
type Character struct {
	ID                uuid.UUID      `json:"uuid"`
	StoryID           uuid.UUID      `json:"storyId"`
	Name              string         `json:"name"`
	Role              Role           `json:"role"`
	Description       string         `json:"description"`
	PersonalityTraits []string       `json:"personalityTraits,omitempty"`
	Backstory         string         `json:"backstory,omitempty"`
	Goals             []string       `json:"goals,omitempty"`
	Relationships     []Relationship `json:"relationships,omitempty"`
	ImageURL          string         `json:"imageUrl,omitempty"`
}

// IsPlayer reports whether the character is the story's player character.
func (c *Character) IsPlayer() bool {
	return c != nil && c.Role.IsPlayer()
}

// Validate checks the fields a structured character must carry.
func (c *Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("character name is required")
	}
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("character description is required")
	}
	for _, r := range c.Relationships {
		if r.Level < 0 || r.Level > MaxRelationshipLevel {
			return fmt.Errorf("relationship with %q has level %d, must be between 0 and %d", r.Name, r.Level, MaxRelationshipLevel)
		}
	}
	return nil
}

// Location is a place a scene can happen in.
type Location struct {
	ID          uuid.UUID `json:"uuid"`
	StoryID     uuid.UUID `json:"storyId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Rules       []string  `json:"rules,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// Validate checks the fields a structured location must carry.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("location name is required")
	}
	if strings.TrimSpace(l.Description) == "" {
		return fmt.Errorf("location description is required")
	}
	return nil
}

// Scene binds one location and up to three NPCs with a narrative description.
type Scene struct {
	ID           uuid.UUID   `json:"uuid"`
	StoryID      uuid.UUID   `json:"storyId"`
	LocationID   uuid.UUID   `json:"locationId"`
	CharacterIDs []uuid.UUID `json:"characterIds"`
	Description  string      `json:"description"`
	Summary      string      `json:"summary,omitempty"`
	Status       Status      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// CharacterDraft is the planner's sketch for a new NPC.
type CharacterDraft struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Appearance string `json:"appearance"`
	Background string `json:"background"`

	// Role is never requested from the model, but is decoded so that an
	// attempt to create a player can be refused.
	Role Role `json:"role,omitempty"`
}

// Validate checks the draft carries enough to generate from.
func (d *CharacterDraft) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("character draft name is required")
	}
	if d.Age < 0 {
		return fmt.Errorf("character draft age cannot be negative")
	}
	return nil
}

// Result is the outcome of a scene generation.
type Result struct {
	SceneID     uuid.UUID   `json:"sceneId"`
	Location    *Location   `json:"location"`
	Characters  []Character `json:"characters"`
	Description string      `json:"description"`
	StepsTaken  int         `json:"stepsTaken"`
}

// SameName compares two character names the way players perceive them:
// surrounding whitespace is ignored and letters are case folded.
func SameName(a, b string) bool {
	return foldName(a) == foldName(b)
}
