package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

const markFailedTimeout = 5 * time.Second

// Draft is a scene ready to be committed
type Draft struct {
	StoryID     uuid.UUID
	Location    *scene.Location
	Characters  []scene.Character
	Description string
}

// Validate checks the draft has a location, at least one character and a
// description.
func (d Draft) Validate() error {
	var missing []string
	if d.Location == nil {
		missing = append(missing, "a location must be selected")
	}
	if len(d.Characters) == 0 {
		missing = append(missing, "at least one character must be selected")
	}
	if strings.TrimSpace(d.Description) == "" {
		missing = append(missing, "a description is required")
	}
	if len(missing) > 0 {
		return scene.New(scene.KindFinalizePrecondition, "cannot finalize scene: "+strings.Join(missing, "; "))
	}
	return nil
}

// Finalizer persists a scene and walks it to active
type Finalizer struct {
	store  storage.Store
	logger *slog.Logger
}

func NewFinalizer(store storage.Store, logger *slog.Logger) *Finalizer {
	return &Finalizer{store: store, logger: logger}
}

// Commit persists the draft and moves the scene through generating to
// active. If anything fails once the row exists, the scene is marked failed
// before the error is returned.
func (f *Finalizer) Commit(ctx context.Context, d Draft) (*scene.Scene, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, scene.Wrap(scene.KindCancelled, "scene finalization cancelled", err)
	}

	ids := make([]uuid.UUID, len(d.Characters))
	for i, c := range d.Characters {
		ids[i] = c.ID
	}
	s := &scene.Scene{
		ID:           uuid.New(),
		StoryID:      d.StoryID,
		LocationID:   d.Location.ID,
		CharacterIDs: ids,
		Description:  strings.TrimSpace(d.Description),
		Status:       scene.StatusNotStarted,
	}
	log := f.logger.With("scene_id", s.ID, "story_id", s.StoryID)

	if err := f.store.PersistScene(ctx, s, ids); err != nil {
		return nil, classifyStoreError(ctx, err)
	}

	for _, next := range []scene.Status{scene.StatusGenerating, scene.StatusActive} {
		if err := f.store.UpdateSceneStatus(ctx, s.ID, next); err != nil {
			log.Error("Scene status update failed", "status", next, "error", err)
			f.markFailed(ctx, s.ID)
			return nil, classifyStoreError(ctx, err)
		}
		s.Status = next
	}

	log.Info("Scene finalized", "location_id", s.LocationID, "characters", len(ids))
	return s, nil
}

// markFailed outlives the caller's context
func (f *Finalizer) markFailed(ctx context.Context, id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markFailedTimeout)
	defer cancel()
	if err := f.store.UpdateSceneStatus(ctx, id, scene.StatusFailed); err != nil {
		f.logger.Warn("Failed to mark scene as failed", "scene_id", id, "error", err)
	}
}

func classifyStoreError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return scene.Wrap(scene.KindCancelled, "scene finalization cancelled", err)
	}
	if scene.KindOf(err) != "" {
		return err
	}
	return scene.Wrap(scene.KindStoreUnavailable, "scene store unavailable", err)
}
