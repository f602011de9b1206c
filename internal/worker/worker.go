package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/agent"
	"github.com/jwebster45206/scene-engine/internal/services/events"
	"github.com/jwebster45206/scene-engine/internal/services/queue"
	"github.com/jwebster45206/scene-engine/internal/storage"
	queuePkg "github.com/jwebster45206/scene-engine/pkg/queue"
	"github.com/jwebster45206/scene-engine/pkg/scene"
	"github.com/redis/go-redis/v9"
)

const (
	workerTimeout = 5 * time.Second

	// lockTTL outlasts a full planner run
	lockTTL = 10 * time.Minute
)

// SceneGenerator builds one scene
type SceneGenerator interface {
	GenerateScene(ctx context.Context, in agent.Input) (*scene.Result, error)
}

var releaseLockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

// Worker processes scene requests from the queue, one story at a time
type Worker struct {
	id          string
	queue       *queue.SceneQueue
	generator   SceneGenerator
	store       storage.Store
	broadcaster *events.Broadcaster
	redisClient *redis.Client
	log         *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a new worker instance
func New(sceneQueue *queue.SceneQueue, generator SceneGenerator, store storage.Store, broadcaster *events.Broadcaster, redisClient *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:          workerID,
		queue:       sceneQueue,
		generator:   generator,
		store:       store,
		broadcaster: broadcaster,
		redisClient: redisClient,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins processing requests from the queue
func (w *Worker) Start() error {
	w.log.Info("Worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNextRequest(); err != nil {
				w.log.Error("Error processing request", "error", err, "worker_id", w.id)
				// Continue processing even on error
				select {
				case <-w.ctx.Done():
				case <-time.After(time.Second):
				}
			}
		}
	}
}

// Stop cancels the current generation and stops the loop
func (w *Worker) Stop() {
	w.log.Info("Worker stop requested", "worker_id", w.id)
	w.cancel()
}

// processNextRequest pulls the next request from the queue and processes it
func (w *Worker) processNextRequest() error {
	req, err := w.queue.BlockingDequeue(w.ctx, workerTimeout)
	if err != nil {
		return fmt.Errorf("failed to dequeue request: %w", err)
	}
	if req == nil {
		return nil
	}

	w.log.Info("Received request from queue",
		"worker_id", w.id,
		"request_id", req.RequestID,
		"story_id", req.StoryID.String(),
	)

	locked, err := w.acquireStoryLock(req.StoryID)
	if err != nil {
		return fmt.Errorf("failed to acquire story lock: %w", err)
	}
	if !locked {
		// Another worker is generating for this story
		w.log.Info("Story already locked, re-queueing request",
			"worker_id", w.id,
			"request_id", req.RequestID,
			"story_id", req.StoryID.String(),
		)
		if err := w.queue.Enqueue(w.ctx, req); err != nil {
			return fmt.Errorf("failed to re-queue request: %w", err)
		}
		return nil
	}

	defer w.releaseStoryLock(req.StoryID)
	return w.processRequest(req)
}

func lockKey(storyID uuid.UUID) string {
	return fmt.Sprintf("story-lock:%s", storyID.String())
}

// acquireStoryLock returns false if the story is already locked
func (w *Worker) acquireStoryLock(storyID uuid.UUID) (bool, error) {
	return w.redisClient.SetNX(w.ctx, lockKey(storyID), w.id, lockTTL).Result()
}

// releaseStoryLock only deletes the lock if this worker owns it
func (w *Worker) releaseStoryLock(storyID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), workerTimeout)
	defer cancel()
	if err := releaseLockScript.Run(ctx, w.redisClient, []string{lockKey(storyID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release story lock", "error", err, "story_id", storyID.String())
	}
}

// processRequest runs one scene generation
func (w *Worker) processRequest(req *queuePkg.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request %s: %w", req.RequestID, err)
	}

	log := w.log.With("worker_id", w.id, "request_id", req.RequestID, "story_id", req.StoryID.String())
	log.Info("Processing request")
	start := time.Now()

	if err := w.broadcaster.PublishRequestProcessing(w.ctx, req.StoryID, req.RequestID); err != nil {
		log.Warn("Failed to publish processing event", "error", err)
	}

	in, latest, err := w.loadInput(w.ctx, req)
	if err != nil {
		return w.fail(log, req, err)
	}

	// A scene that is already playable is announced again instead of
	// generating a second one.
	if latest != nil && latest.Status == scene.StatusActive {
		log.Info("Story already has an active scene", "scene_id", latest.ID)
		if err := w.broadcaster.Emit(w.ctx, req.StoryID, agent.SceneComplete(req.StoryID, latest.ID, latest.Description)); err != nil {
			log.Warn("Failed to publish scene event", "error", err)
		}
		return nil
	}

	in.Sink = w.broadcaster
	result, err := w.generator.GenerateScene(w.ctx, in)
	if err != nil {
		if errors.Is(err, scene.ErrCancelled) {
			log.Info("Scene generation cancelled")
			return nil
		}
		return w.fail(log, req, err)
	}

	log.Info("Scene request processed successfully",
		"scene_id", result.SceneID,
		"steps", result.StepsTaken,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// loadInput gathers the story, its player, the pools and the latest scene
func (w *Worker) loadInput(ctx context.Context, req *queuePkg.Request) (agent.Input, *scene.Scene, error) {
	story, err := w.store.GetStory(ctx, req.StoryID)
	if err != nil {
		return agent.Input{}, nil, fmt.Errorf("failed to load story: %w", err)
	}
	if story == nil {
		return agent.Input{}, nil, fmt.Errorf("story %s not found", req.StoryID)
	}

	characters, err := w.store.ListCharacters(ctx, req.StoryID)
	if err != nil {
		return agent.Input{}, nil, fmt.Errorf("failed to load characters: %w", err)
	}
	var player *scene.Character
	for i := range characters {
		if characters[i].IsPlayer() {
			player = &characters[i]
			break
		}
	}
	if player == nil {
		return agent.Input{}, nil, fmt.Errorf("story %s has no player character", req.StoryID)
	}

	locations, err := w.store.ListLocations(ctx, req.StoryID)
	if err != nil {
		return agent.Input{}, nil, fmt.Errorf("failed to load locations: %w", err)
	}

	latest, err := w.store.LatestScene(ctx, req.StoryID)
	if err != nil {
		return agent.Input{}, nil, fmt.Errorf("failed to load latest scene: %w", err)
	}

	in := agent.Input{
		Story:                 story,
		Player:                player,
		CharactersPool:        characters,
		LocationsPool:         locations,
		RelevantConversations: req.RelevantConversations,
	}
	if latest != nil && latest.Status == scene.StatusCompleted {
		in.PreviousScene = latest
	}
	return in, latest, nil
}

func (w *Worker) fail(log *slog.Logger, req *queuePkg.Request, err error) error {
	log.Error("Scene request failed", "error", err, "kind", scene.KindOf(err))
	if pubErr := w.broadcaster.PublishRequestFailed(w.ctx, req.StoryID, req.RequestID, err.Error()); pubErr != nil {
		log.Error("Failed to publish failure event", "error", pubErr)
	}
	return fmt.Errorf("failed to process scene request: %w", err)
}
