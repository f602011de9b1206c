// Package generator creates new locations and characters. Each generator runs
// the same staged pipeline: describe, structure, image prompt, render and
// persist. A stage only runs if the previous one succeeded.
package generator

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/services/render"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// Models names the LLM model used per stage. Empty values fall back to the
// provider default.
type Models struct {
	// Writer handles the free-form description and the image prompt
	Writer string
	// Structurer turns descriptions into JSON
	Structurer string
}

type pipeline struct {
	llm      services.LLMService
	renderer render.Renderer
	store    storage.Store
	models   Models
	logger   *slog.Logger
}

// write runs a free-form completion and requires a non-empty answer.
func (p *pipeline) write(ctx context.Context, stage string, msgs []chat.ChatMessage) (string, error) {
	resp, err := p.llm.Chat(ctx, &chat.ChatRequest{
		Model:    p.models.Writer,
		Messages: msgs,
	})
	if err != nil {
		return "", services.ClassifyLLMError(ctx, err)
	}
	text := strings.TrimSpace(resp.Message)
	if text == "" {
		return "", scene.Errorf(scene.KindLLMFailed, "%s returned an empty response", stage)
	}
	return text, nil
}

// structure asks the structurer model for JSON and decodes it into T. Any
// parse or validation failure is reported as invalidKind.
func structure[T any](ctx context.Context, p *pipeline, msgs []chat.ChatMessage, invalidKind scene.Kind, validate func(*T) error) (*T, error) {
	resp, err := p.llm.Chat(ctx, &chat.ChatRequest{
		Model:       p.models.Structurer,
		Messages:    msgs,
		Temperature: chat.Temperature(0),
		JSONOutput:  true,
	})
	if err != nil {
		return nil, services.ClassifyLLMError(ctx, err)
	}

	var out T
	if err := json.Unmarshal([]byte(chat.ExtractJSON(resp.Message)), &out); err != nil {
		return nil, scene.Wrap(invalidKind, "structured output is not valid JSON", err)
	}
	if err := validate(&out); err != nil {
		return nil, scene.Wrap(invalidKind, "structured output is incomplete", err)
	}
	return &out, nil
}

// image writes an image prompt and renders it.
func (p *pipeline) image(ctx context.Context, kind render.Kind, msgs []chat.ChatMessage) (string, error) {
	prompt, err := p.write(ctx, string(kind)+" image prompt", msgs)
	if err != nil {
		return "", err
	}
	url, err := p.renderer.Render(ctx, kind, prompt)
	if err != nil {
		return "", render.ClassifyRenderError(ctx, err)
	}
	return url, nil
}

// persistError classifies a store write failure.
func persistError(ctx context.Context, err error) error {
	if scene.KindOf(err) != "" {
		return err
	}
	if ctx.Err() != nil {
		return scene.Wrap(scene.KindCancelled, "persist cancelled", ctx.Err())
	}
	return scene.Wrap(scene.KindStoreUnavailable, "persist failed", err)
}
