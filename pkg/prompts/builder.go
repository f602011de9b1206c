package prompts

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Builder constructs the planner's chat messages using a fluent interface.
type Builder struct {
	state         *PlannerState
	charactersCap int
	messages      []chat.ChatMessage
}

// New creates a new prompt builder with default settings.
func New() *Builder {
	return &Builder{
		charactersCap: scene.DefaultCharactersCap,
		messages:      make([]chat.ChatMessage, 0),
	}
}

// WithState sets the working state snapshot to render.
func (b *Builder) WithState(ps *PlannerState) *Builder {
	b.state = ps
	return b
}

// WithCharactersCap sets the maximum number of scene characters quoted to the model.
func (b *Builder) WithCharactersCap(n int) *Builder {
	if n > 0 {
		b.charactersCap = n
	}
	return b
}

// Build constructs the system and user messages for one planner step.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.state == nil {
		return nil, fmt.Errorf("planner state is required")
	}
	if b.state.Story == nil {
		return nil, fmt.Errorf("story is required")
	}
	if b.state.Player == nil {
		return nil, fmt.Errorf("player is required")
	}

	b.messages = []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: fmt.Sprintf(PlannerSystemPrompt, b.charactersCap)},
		{Role: chat.ChatRoleUser, Content: b.state.Render()},
	}
	return b.messages, nil
}

func storyContext(story *scene.Story) string {
	var sb strings.Builder
	sb.WriteString("Story Title: " + story.Title + "\n")
	sb.WriteString("Story Description: " + story.Description + "\n")
	if len(story.Rules) > 0 {
		sb.WriteString("\nStory Rules:\n")
		for _, r := range story.Rules {
			sb.WriteString("- " + r + "\n")
		}
	}
	return sb.String()
}

// LocationDescribeMessages asks for a free-form description of a new location.
func LocationDescribeMessages(story *scene.Story, brief string) []chat.ChatMessage {
	user := storyContext(story) + "\nLocation Brief: " + brief +
		"\n\nCreate a single location that would exist in this story and describe it in rich detail."
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: LocationDescribeSystemPrompt},
		{Role: chat.ChatRoleUser, Content: user},
	}
}

// LocationStructureMessages asks for a location description as JSON.
func LocationStructureMessages(description string) []chat.ChatMessage {
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: LocationStructureSystemPrompt},
		{Role: chat.ChatRoleUser, Content: "Location description:\n" + description},
	}
}

// LocationImageMessages asks for an image prompt for a structured location.
func LocationImageMessages(loc *scene.Location, story *scene.Story) []chat.ChatMessage {
	user := fmt.Sprintf("Location Name: %s\n\nLocation Description: %s\n\nStory Context: %s",
		loc.Name, loc.Description, story.Description)
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: LocationImageSystemPrompt},
		{Role: chat.ChatRoleUser, Content: user},
	}
}

// CharacterDescribeMessages asks for a free-form profile expanding a draft.
func CharacterDescribeMessages(story *scene.Story, player *scene.Character, draft *scene.CharacterDraft) []chat.ChatMessage {
	var sb strings.Builder
	sb.WriteString(storyContext(story))
	if player != nil {
		sb.WriteString("\nPlayer Character (do not describe this person): " + player.Name + "\n")
	}
	sb.WriteString("\nCharacter Draft:\n")
	sb.WriteString("Name: " + draft.Name + "\n")
	if draft.Age > 0 {
		fmt.Fprintf(&sb, "Age: %d\n", draft.Age)
	}
	if draft.Appearance != "" {
		sb.WriteString("Appearance: " + draft.Appearance + "\n")
	}
	if draft.Background != "" {
		sb.WriteString("Background: " + draft.Background + "\n")
	}
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: CharacterDescribeSystemPrompt},
		{Role: chat.ChatRoleUser, Content: sb.String()},
	}
}

// CharacterStructureMessages asks for a character profile as JSON.
func CharacterStructureMessages(profile string) []chat.ChatMessage {
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: CharacterStructureSystemPrompt},
		{Role: chat.ChatRoleUser, Content: "Character profile:\n" + profile},
	}
}

// CharacterImageMessages asks for a portrait prompt for a structured character.
func CharacterImageMessages(c *scene.Character, story *scene.Story) []chat.ChatMessage {
	user := fmt.Sprintf("Character Name: %s\n\nCharacter Description: %s\n\nStory Context: %s",
		c.Name, c.Description, story.Description)
	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: CharacterImageSystemPrompt},
		{Role: chat.ChatRoleUser, Content: user},
	}
}
