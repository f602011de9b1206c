package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// PlannerState is the snapshot of a generation rendered into each planner
// prompt. Error strings are reproduced verbatim.
type PlannerState struct {
	Story                 *scene.Story
	Player                *scene.Character
	PreviousScene         *scene.Scene
	RelevantConversations []string

	SelectedLocation   *scene.Location
	SelectedCharacters []scene.Character
	SceneDescription   string

	LocationError  string
	CharacterError string
	FinalizeError  string

	AvailableCharacters []scene.Character
	AvailableLocations  []scene.Location

	Step     int
	MaxSteps int
}

// Render writes the state as tagged sections.
func (ps *PlannerState) Render() string {
	var sb strings.Builder

	sb.WriteString("<context>\n")
	if ps.Story != nil {
		sb.WriteString("<story>\n")
		writeField(&sb, "title", ps.Story.Title)
		writeField(&sb, "description", ps.Story.Description)
		writeList(&sb, "rules", ps.Story.Rules)
		sb.WriteString("</story>\n")
	}
	if ps.Player != nil {
		sb.WriteString("<player>\n")
		writeCharacter(&sb, ps.Player)
		sb.WriteString("</player>\n")
	}
	if ps.PreviousScene != nil {
		sb.WriteString("<previous_scene>\n")
		writeField(&sb, "description", ps.PreviousScene.Description)
		writeField(&sb, "summary", ps.PreviousScene.Summary)
		sb.WriteString("</previous_scene>\n")
	}
	if len(ps.RelevantConversations) > 0 {
		writeList(&sb, "relevant_conversations", ps.RelevantConversations)
	}
	sb.WriteString("</context>\n\n")

	sb.WriteString("<current_state>\n")
	if ps.MaxSteps > 0 {
		fmt.Fprintf(&sb, "<step>%d of %d</step>\n", ps.Step, ps.MaxSteps)
	}
	sb.WriteString("<selected_location>\n")
	if ps.SelectedLocation != nil {
		writeLocation(&sb, ps.SelectedLocation)
	} else {
		sb.WriteString("None\n")
	}
	sb.WriteString("</selected_location>\n")

	sb.WriteString("<selected_characters>\n")
	if len(ps.SelectedCharacters) == 0 {
		sb.WriteString("None\n")
	}
	for i := range ps.SelectedCharacters {
		sb.WriteString("<character>\n")
		writeCharacter(&sb, &ps.SelectedCharacters[i])
		sb.WriteString("</character>\n")
	}
	sb.WriteString("</selected_characters>\n")

	sb.WriteString("<scene_description>\n")
	if ps.SceneDescription != "" {
		sb.WriteString(ps.SceneDescription + "\n")
	} else {
		sb.WriteString("None\n")
	}
	sb.WriteString("</scene_description>\n")

	if ps.LocationError != "" || ps.CharacterError != "" || ps.FinalizeError != "" {
		sb.WriteString("<errors>\n")
		writeField(&sb, "location_error", ps.LocationError)
		writeField(&sb, "character_error", ps.CharacterError)
		writeField(&sb, "finalize_error", ps.FinalizeError)
		sb.WriteString("</errors>\n")
	}
	sb.WriteString("</current_state>\n\n")

	sb.WriteString("<available_characters>\n")
	if len(ps.AvailableCharacters) == 0 {
		sb.WriteString("None\n")
	}
	for i := range ps.AvailableCharacters {
		sb.WriteString("<character>\n")
		writeCharacter(&sb, &ps.AvailableCharacters[i])
		sb.WriteString("</character>\n")
	}
	sb.WriteString("</available_characters>\n")

	sb.WriteString("<available_locations>\n")
	if len(ps.AvailableLocations) == 0 {
		sb.WriteString("None\n")
	}
	for i := range ps.AvailableLocations {
		sb.WriteString("<location>\n")
		writeLocation(&sb, &ps.AvailableLocations[i])
		sb.WriteString("</location>\n")
	}
	sb.WriteString("</available_locations>\n")

	return sb.String()
}

func writeField(sb *strings.Builder, tag, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "<%s>%s</%s>\n", tag, value, tag)
}

func writeList(sb *strings.Builder, tag string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(sb, "<%s>\n", tag)
	for _, v := range values {
		sb.WriteString("- " + v + "\n")
	}
	fmt.Fprintf(sb, "</%s>\n", tag)
}

func writeCharacter(sb *strings.Builder, c *scene.Character) {
	writeField(sb, "uuid", c.ID.String())
	writeField(sb, "name", c.Name)
	writeField(sb, "role", string(c.Role))
	writeField(sb, "description", c.Description)
	if len(c.PersonalityTraits) > 0 {
		writeField(sb, "personality", strings.Join(c.PersonalityTraits, ", "))
	}
	writeField(sb, "backstory", c.Backstory)
}

func writeLocation(sb *strings.Builder, l *scene.Location) {
	writeField(sb, "uuid", l.ID.String())
	writeField(sb, "name", l.Name)
	writeField(sb, "description", l.Description)
	writeList(sb, "rules", l.Rules)
}
