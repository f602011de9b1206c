package generator

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/services/render"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// CharacterGenerator creates and persists new NPCs from a draft
type CharacterGenerator struct {
	p *pipeline
}

func NewCharacterGenerator(llm services.LLMService, renderer render.Renderer, store storage.Store, models Models, logger *slog.Logger) *CharacterGenerator {
	return &CharacterGenerator{p: &pipeline{llm: llm, renderer: renderer, store: store, models: models, logger: logger}}
}

// CheckDraft refuses drafts that would duplicate or replace the player.
func CheckDraft(player *scene.Character, draft *scene.CharacterDraft) error {
	if draft == nil {
		return scene.New(scene.KindInvalidToolArguments, "a character draft is required to create a character")
	}
	if draft.Role.IsPlayer() {
		return scene.New(scene.KindPlayerRoleForbidden, "the player character already exists and cannot be created")
	}
	if player != nil && scene.SameName(draft.Name, player.Name) {
		return scene.Errorf(scene.KindPlayerRoleForbidden, "%q is the player character and cannot be created", draft.Name)
	}
	if err := draft.Validate(); err != nil {
		return scene.Wrap(scene.KindInvalidToolArguments, "invalid character draft", err)
	}
	return nil
}

// Generate creates an NPC for the story. The refusal check runs before any
// model call, render or write.
func (g *CharacterGenerator) Generate(ctx context.Context, story *scene.Story, player *scene.Character, draft *scene.CharacterDraft) (*scene.Character, error) {
	id := uuid.New()
	if err := CheckDraft(player, draft); err != nil {
		return nil, err
	}
	log := g.p.logger.With("character_id", id, "story_id", story.ID)

	profile, err := g.p.write(ctx, "character profile", prompts.CharacterDescribeMessages(story, player, draft))
	if err != nil {
		return nil, err
	}

	c, err := structure(ctx, g.p, prompts.CharacterStructureMessages(profile), scene.KindCharacterStructureInvalid,
		func(c *scene.Character) error { return c.Validate() })
	if err != nil {
		log.Warn("Character structure rejected", "error", err)
		return nil, err
	}
	if player != nil && scene.SameName(c.Name, player.Name) {
		return nil, scene.Errorf(scene.KindPlayerRoleForbidden, "%q is the player character and cannot be created", c.Name)
	}
	c.ID = id
	c.StoryID = story.ID
	c.Role = scene.RoleNPC

	url, err := g.p.image(ctx, render.KindCharacter, prompts.CharacterImageMessages(c, story))
	if err != nil {
		log.Warn("Character image failed", "error", err)
		return nil, err
	}
	c.ImageURL = url

	saved, err := g.p.store.PersistCharacter(ctx, c)
	if err != nil {
		return nil, persistError(ctx, err)
	}
	log.Info("Character generated", "name", saved.Name)
	return saved, nil
}
