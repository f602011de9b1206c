package agent

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Tool names offered to the planner
const (
	ToolGenerateLocation  = "generate_location"
	ToolGenerateCharacter = "generate_character"
	ToolFinalizeScene     = "finalize_scene"
)

// Tools is the fixed tool schema sent on every planner step.
var Tools = []chat.Tool{
	{
		Name:        ToolGenerateLocation,
		Description: "Select an existing location by UUID, or create a new one from a brief description. Replaces the currently selected location.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"brief_description": map[string]interface{}{
					"type":        "string",
					"description": "One or two sentences describing a new location to create",
				},
				"existing_location_uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of a location from available_locations to reuse",
				},
			},
		},
	},
	{
		Name:        ToolGenerateCharacter,
		Description: "Select an existing non-player character by UUID, or create a new one from a draft. Adds the character to the scene.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"character_draft": map[string]interface{}{
					"type":        "object",
					"description": "Sketch of a new non-player character",
					"properties": map[string]interface{}{
						"name":       map[string]interface{}{"type": "string"},
						"age":        map[string]interface{}{"type": "integer"},
						"appearance": map[string]interface{}{"type": "string"},
						"background": map[string]interface{}{"type": "string"},
					},
					"required": []string{"name", "age", "appearance", "background"},
				},
				"existing_character_uuid": map[string]interface{}{
					"type":        "string",
					"description": "UUID of a character from available_characters to reuse",
				},
			},
		},
	},
	{
		Name:        ToolFinalizeScene,
		Description: "Complete the scene once a location and at least one character are selected.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Two to four sentences setting the scene for the player",
				},
			},
			"required": []string{"description"},
		},
	},
}

type locationArgs struct {
	BriefDescription     string `json:"brief_description"`
	ExistingLocationUUID string `json:"existing_location_uuid"`
}

type characterArgs struct {
	CharacterDraft        *scene.CharacterDraft `json:"character_draft"`
	ExistingCharacterUUID string                `json:"existing_character_uuid"`
}

type finalizeArgs struct {
	Description string `json:"description"`
}

func decodeArgs(tc chat.ToolCall, v interface{}) error {
	if err := tc.DecodeArguments(v); err != nil {
		return scene.Wrap(scene.KindInvalidToolArguments, "malformed tool arguments", err)
	}
	return nil
}

// parseExisting returns uuid.Nil, nil when raw is empty
func parseExisting(field, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, scene.Errorf(scene.KindInvalidToolArguments, "%s %q is not a valid UUID", field, raw)
	}
	return id, nil
}

// batch is one step's tool calls grouped by kind
type batch struct {
	locations  []chat.ToolCall
	characters []chat.ToolCall
	finalize   []chat.ToolCall
	unknown    []chat.ToolCall
}

func partition(calls []chat.ToolCall) batch {
	var b batch
	for _, tc := range calls {
		switch tc.Name {
		case ToolGenerateLocation:
			b.locations = append(b.locations, tc)
		case ToolGenerateCharacter:
			b.characters = append(b.characters, tc)
		case ToolFinalizeScene:
			b.finalize = append(b.finalize, tc)
		default:
			b.unknown = append(b.unknown, tc)
		}
	}
	return b
}
