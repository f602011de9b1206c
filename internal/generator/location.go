package generator

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/services/render"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// LocationGenerator creates and persists new locations from a brief
type LocationGenerator struct {
	p *pipeline
}

func NewLocationGenerator(llm services.LLMService, renderer render.Renderer, store storage.Store, models Models, logger *slog.Logger) *LocationGenerator {
	return &LocationGenerator{p: &pipeline{llm: llm, renderer: renderer, store: store, models: models, logger: logger}}
}

// Generate creates a location for the story. Existing locations are never
// modified; every successful call persists a new row.
func (g *LocationGenerator) Generate(ctx context.Context, story *scene.Story, brief string) (*scene.Location, error) {
	id := uuid.New()
	if strings.TrimSpace(brief) == "" {
		return nil, scene.New(scene.KindInvalidToolArguments, "a brief description is required to create a location")
	}
	log := g.p.logger.With("location_id", id, "story_id", story.ID)

	description, err := g.p.write(ctx, "location description", prompts.LocationDescribeMessages(story, brief))
	if err != nil {
		return nil, err
	}

	loc, err := structure(ctx, g.p, prompts.LocationStructureMessages(description), scene.KindLocationStructureInvalid,
		func(l *scene.Location) error { return l.Validate() })
	if err != nil {
		log.Warn("Location structure rejected", "error", err)
		return nil, err
	}
	loc.ID = id
	loc.StoryID = story.ID

	url, err := g.p.image(ctx, render.KindLocation, prompts.LocationImageMessages(loc, story))
	if err != nil {
		log.Warn("Location image failed", "error", err)
		return nil, err
	}
	loc.ImageURL = url

	saved, err := g.p.store.PersistLocation(ctx, loc)
	if err != nil {
		return nil, persistError(ctx, err)
	}
	log.Info("Location generated", "name", saved.Name)
	return saved, nil
}
