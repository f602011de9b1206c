// Package agent runs the scene planner: a bounded loop over an LLM that
// selects or creates a location and characters through tool calls and then
// finalizes the scene.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/services"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/chat"
	"github.com/jwebster45206/scene-engine/pkg/prompts"
	"github.com/jwebster45206/scene-engine/pkg/scene"
	"golang.org/x/sync/errgroup"
)

const DefaultMaxSteps = 10

// LocationCreator creates a new location from a brief
type LocationCreator interface {
	Generate(ctx context.Context, story *scene.Story, brief string) (*scene.Location, error)
}

// CharacterCreator creates a new NPC from a draft
type CharacterCreator interface {
	Generate(ctx context.Context, story *scene.Story, player *scene.Character, draft *scene.CharacterDraft) (*scene.Character, error)
}

type Config struct {
	MaxSteps      int
	CharactersCap int
	PlannerModel  string
}

// Input is everything one generation call works from. Sink may be nil.
type Input struct {
	Story                 *scene.Story
	Player                *scene.Character
	CharactersPool        []scene.Character
	LocationsPool         []scene.Location
	PreviousScene         *scene.Scene
	RelevantConversations []string
	Sink                  EventSink
}

// Agent generates scenes. It holds no per-call state and is safe for
// concurrent use.
type Agent struct {
	llm        services.LLMService
	locations  LocationCreator
	characters CharacterCreator
	store      storage.Store
	finalizer  *Finalizer
	cfg        Config
	logger     *slog.Logger
}

func New(llm services.LLMService, locations LocationCreator, characters CharacterCreator, store storage.Store, cfg Config, logger *slog.Logger) (*Agent, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm service is required")
	}
	if locations == nil || characters == nil {
		return nil, fmt.Errorf("location and character generators are required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.CharactersCap <= 0 || cfg.CharactersCap > scene.DefaultCharactersCap {
		cfg.CharactersCap = scene.DefaultCharactersCap
	}
	return &Agent{
		llm:        llm,
		locations:  locations,
		characters: characters,
		store:      store,
		finalizer:  NewFinalizer(store, logger),
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// GenerateScene runs the planner until a scene is finalized, the step budget
// is spent, or ctx is cancelled. When the budget runs out the partial result
// is returned together with a StepBudgetExceeded error and nothing is
// persisted for the scene itself.
func (a *Agent) GenerateScene(ctx context.Context, in Input) (*scene.Result, error) {
	if in.Story == nil {
		return nil, fmt.Errorf("story is required")
	}
	if in.Player == nil {
		return nil, fmt.Errorf("player character is required")
	}
	if in.Sink == nil {
		in.Sink = nopSink{}
	}
	sink := in.Sink

	log := a.logger.With("story_id", in.Story.ID)
	ws := newWorkingState(in, a.cfg.CharactersCap)
	prog := newProgress(in.Story.ID, sink, log)

	for ws.steps() < a.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return nil, scene.Wrap(scene.KindCancelled, "scene generation cancelled", err)
		}
		step := ws.nextStep()
		stepLog := log.With("step", step)

		key := prog.start(ctx, ActionPlanning, fmt.Sprintf("Planning step %d of %d", step, a.cfg.MaxSteps))
		resp, err := a.plan(ctx, ws)
		prog.finish(ctx, key)
		if err != nil {
			if cancelled(ctx, err) {
				return nil, scene.Wrap(scene.KindCancelled, "scene generation cancelled", err)
			}
			stepLog.Warn("Planner call failed", "error", err)
			continue
		}

		b := partition(resp.ToolCalls)
		for _, tc := range b.unknown {
			stepLog.Warn("Ignoring unknown tool call", "tool", tc.Name)
		}
		if len(resp.ToolCalls) == 0 {
			stepLog.Debug("Planner returned no tool calls", "content", resp.Message)
		}
		if len(b.locations) > 0 {
			ws.clearError(ToolGenerateLocation)
		}
		if len(b.characters) > 0 {
			ws.clearError(ToolGenerateCharacter)
		}
		if len(b.finalize) > 0 {
			ws.clearError(ToolFinalizeScene)
		}

		if err := a.dispatch(ctx, ws, prog, in, b); err != nil || ctx.Err() != nil {
			if err == nil {
				err = ctx.Err()
			}
			return nil, scene.Wrap(scene.KindCancelled, "scene generation cancelled", err)
		}

		for _, tc := range b.finalize {
			s, err := a.finalize(ctx, ws, tc)
			if err == nil {
				result := ws.result(s.ID, s.Description)
				stepLog.Info("Scene generated", "scene_id", s.ID, "steps", result.StepsTaken)
				emit(ctx, sink, log, in.Story.ID, SceneComplete(in.Story.ID, s.ID, s.Description))
				return result, nil
			}
			if scene.KindOf(err) == scene.KindFinalizePrecondition || scene.KindOf(err) == scene.KindInvalidToolArguments {
				stepLog.Info("Finalize rejected", "error", err)
				ws.setError(ToolFinalizeScene, err.Error())
				continue
			}
			if cancelled(ctx, err) {
				return nil, scene.Wrap(scene.KindCancelled, "scene generation cancelled", err)
			}
			stepLog.Error("Scene finalization failed", "error", err)
			emit(ctx, sink, log, in.Story.ID, ErrorEvent("Failed to save the scene. Please try again."))
			return nil, err
		}
	}

	ws.setDescription(scene.FallbackDescription)
	log.Warn("Scene generation ran out of steps", "max_steps", a.cfg.MaxSteps)
	emit(ctx, sink, log, in.Story.ID, ErrorEvent("Scene generation took too long and was stopped."))
	return ws.result(uuid.Nil, scene.FallbackDescription),
		scene.Errorf(scene.KindStepBudgetExceeded, "no scene finalized within %d steps", a.cfg.MaxSteps)
}

func (a *Agent) plan(ctx context.Context, ws *workingState) (*chat.ChatResponse, error) {
	msgs, err := prompts.New().
		WithState(ws.snapshot(a.cfg.MaxSteps)).
		WithCharactersCap(a.cfg.CharactersCap).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build planner prompt: %w", err)
	}
	resp, err := a.llm.Chat(ctx, &chat.ChatRequest{
		Model:    a.cfg.PlannerModel,
		Messages: msgs,
		Tools:    Tools,
	})
	if err != nil {
		return nil, services.ClassifyLLMError(ctx, err)
	}
	return resp, nil
}

// dispatch runs a step's location and character calls concurrently. Tool
// failures land in the error slots; only cancellation is returned.
func (a *Agent) dispatch(ctx context.Context, ws *workingState, prog *progress, in Input, b batch) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, tc := range b.locations {
		g.Go(func() error { return a.runLocation(gctx, ws, prog, in, tc) })
	}
	for _, tc := range b.characters {
		g.Go(func() error { return a.runCharacter(gctx, ws, prog, in, tc) })
	}
	return g.Wait()
}

func (a *Agent) runLocation(ctx context.Context, ws *workingState, prog *progress, in Input, tc chat.ToolCall) error {
	var args locationArgs
	if err := decodeArgs(tc, &args); err != nil {
		ws.setError(ToolGenerateLocation, err.Error())
		return nil
	}
	id, err := parseExisting("existing_location_uuid", args.ExistingLocationUUID)
	if err != nil {
		ws.setError(ToolGenerateLocation, err.Error())
		return nil
	}

	var loc *scene.Location
	switch {
	case id != uuid.Nil:
		key := prog.start(ctx, ActionLocation, "Selecting an existing location")
		defer prog.finish(ctx, key)
		loc, err = a.selectLocation(ctx, ws, in.Story, id)
	case args.BriefDescription != "":
		key := prog.start(ctx, ActionLocation, "Creating a new location")
		defer prog.finish(ctx, key)
		loc, err = a.locations.Generate(ctx, in.Story, args.BriefDescription)
	default:
		err = scene.New(scene.KindInvalidToolArguments, "generate_location needs brief_description or existing_location_uuid")
	}
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		a.logger.Info("Location tool failed", "story_id", in.Story.ID, "error", err)
		ws.setError(ToolGenerateLocation, err.Error())
		return nil
	}

	ws.setLocation(loc)
	emit(ctx, in.Sink, a.logger, in.Story.ID, Event{Type: EventLocationAdded, Payload: loc})
	return nil
}

func (a *Agent) runCharacter(ctx context.Context, ws *workingState, prog *progress, in Input, tc chat.ToolCall) error {
	var args characterArgs
	if err := decodeArgs(tc, &args); err != nil {
		ws.setError(ToolGenerateCharacter, err.Error())
		return nil
	}
	id, err := parseExisting("existing_character_uuid", args.ExistingCharacterUUID)
	if err != nil {
		ws.setError(ToolGenerateCharacter, err.Error())
		return nil
	}

	var c *scene.Character
	switch {
	case id != uuid.Nil:
		if ws.isSelected(id) {
			return nil
		}
		key := prog.start(ctx, ActionCharacter, "Selecting an existing character")
		defer prog.finish(ctx, key)
		c, err = a.selectCharacter(ctx, ws, in.Story, id)
	case args.CharacterDraft != nil:
		if ws.full() {
			a.logger.Debug("Scene is full, skipping character draft", "story_id", in.Story.ID, "name", args.CharacterDraft.Name)
			return nil
		}
		key := prog.start(ctx, ActionCharacter, fmt.Sprintf("Creating %s", args.CharacterDraft.Name))
		defer prog.finish(ctx, key)
		c, err = a.characters.Generate(ctx, in.Story, in.Player, args.CharacterDraft)
	default:
		err = scene.New(scene.KindInvalidToolArguments, "generate_character needs character_draft or existing_character_uuid")
	}
	if err != nil {
		if cancelled(ctx, err) {
			return err
		}
		a.logger.Info("Character tool failed", "story_id", in.Story.ID, "error", err)
		ws.setError(ToolGenerateCharacter, err.Error())
		return nil
	}

	if !ws.addCharacter(c) {
		a.logger.Debug("Character not added to scene", "story_id", in.Story.ID, "character_id", c.ID)
		return nil
	}
	emit(ctx, in.Sink, a.logger, in.Story.ID, Event{Type: EventCharacterAdded, Payload: c})
	return nil
}

// selectLocation confirms a pooled location still exists in the story
func (a *Agent) selectLocation(ctx context.Context, ws *workingState, story *scene.Story, id uuid.UUID) (*scene.Location, error) {
	if _, ok := ws.pooledLocation(id); !ok {
		return nil, scene.Errorf(scene.KindEntityNotFound, "location %s is not one of the available locations", id)
	}
	loc, err := a.store.FindLocation(ctx, id)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	if loc == nil || loc.StoryID != story.ID {
		return nil, scene.Errorf(scene.KindEntityNotFound, "location %s does not exist in this story", id)
	}
	return loc, nil
}

// selectCharacter confirms a pooled character still exists in the story and
// is not the player
func (a *Agent) selectCharacter(ctx context.Context, ws *workingState, story *scene.Story, id uuid.UUID) (*scene.Character, error) {
	if ws.playerID(id) {
		return nil, scene.New(scene.KindPlayerRoleForbidden, "the player character cannot be added to a scene")
	}
	if _, ok := ws.pooledCharacter(id); !ok {
		return nil, scene.Errorf(scene.KindEntityNotFound, "character %s is not one of the available characters", id)
	}
	c, err := a.store.FindCharacter(ctx, id)
	if err != nil {
		return nil, lookupError(ctx, err)
	}
	if c == nil || c.StoryID != story.ID {
		return nil, scene.Errorf(scene.KindEntityNotFound, "character %s does not exist in this story", id)
	}
	if ws.isPlayer(c) {
		return nil, scene.New(scene.KindPlayerRoleForbidden, "the player character cannot be added to a scene")
	}
	return c, nil
}

func (a *Agent) finalize(ctx context.Context, ws *workingState, tc chat.ToolCall) (*scene.Scene, error) {
	var args finalizeArgs
	if err := decodeArgs(tc, &args); err != nil {
		return nil, err
	}
	d := ws.draft(args.Description)
	if err := d.Validate(); err != nil {
		return nil, err
	}
	s, err := a.finalizer.Commit(ctx, d)
	if err != nil {
		return nil, err
	}
	ws.setDescription(s.Description)
	return s, nil
}

func lookupError(ctx context.Context, err error) error {
	if cancelled(ctx, err) {
		return scene.Wrap(scene.KindCancelled, "lookup cancelled", err)
	}
	if scene.KindOf(err) != "" {
		return err
	}
	return scene.Wrap(scene.KindStoreUnavailable, "entity lookup failed", err)
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, scene.ErrCancelled) || errors.Is(err, context.Canceled)
}
