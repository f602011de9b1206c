package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jwebster45206/scene-engine/internal/storage"
	"github.com/jwebster45206/scene-engine/pkg/queue"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// SceneEnqueuer puts scene requests where a worker will find them
type SceneEnqueuer interface {
	Enqueue(ctx context.Context, req *queue.Request) error
}

// RequestNotifier announces queued requests to event subscribers
type RequestNotifier interface {
	PublishRequestQueued(ctx context.Context, storyID uuid.UUID, requestID string) error
}

type PlayerInput struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	PersonalityTraits []string `json:"personalityTraits,omitempty"`
	Backstory         string   `json:"backstory,omitempty"`
	Goals             []string `json:"goals,omitempty"`
}

type CreateStoryRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Rules       []string    `json:"rules,omitempty"`
	Player      PlayerInput `json:"player"`
}

type StoryResponse struct {
	Story       *scene.Story      `json:"story"`
	Player      *scene.Character  `json:"player,omitempty"`
	Characters  []scene.Character `json:"characters,omitempty"`
	Locations   []scene.Location  `json:"locations,omitempty"`
	LatestScene *scene.Scene      `json:"latestScene,omitempty"`
}

type GenerateSceneRequest struct {
	RelevantConversations []string `json:"relevantConversations,omitempty"`
}

type GenerateSceneResponse struct {
	RequestID string    `json:"requestId"`
	StoryID   uuid.UUID `json:"storyId"`
	Status    string    `json:"status"`
}

type StoriesHandler struct {
	store    storage.Store
	queue    SceneEnqueuer
	notifier RequestNotifier
	logger   *slog.Logger
}

func NewStoriesHandler(store storage.Store, q SceneEnqueuer, notifier RequestNotifier, logger *slog.Logger) *StoriesHandler {
	return &StoriesHandler{
		store:    store,
		queue:    q,
		notifier: notifier,
		logger:   logger,
	}
}

// ServeHTTP handles story operations
// Routes:
// POST /v1/stories              - Create a story and its player character
// GET  /v1/stories/{id}         - Read a story with its characters, locations and latest scene
// POST /v1/stories/{id}/scenes  - Queue generation of the next scene
func (h *StoriesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/v1/stories")

	switch {
	case len(parts) == 0 && r.Method == http.MethodPost:
		h.handleCreate(w, r)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.withStory(w, r, parts[0], h.handleGet)
	case len(parts) == 2 && parts[1] == "scenes" && r.Method == http.MethodPost:
		h.withStory(w, r, parts[0], h.handleGenerate)
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "scenes"):
		writeError(w, h.logger, http.StatusNotFound, "Not found")
	default:
		h.logger.Warn("Method not allowed for stories endpoint", "method", r.Method, "path", r.URL.Path)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (h *StoriesHandler) withStory(w http.ResponseWriter, r *http.Request, rawID string, next func(http.ResponseWriter, *http.Request, *scene.Story)) {
	id, ok := parseID(rawID)
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid story ID format")
		return
	}
	story, err := h.store.GetStory(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to load story", "story_id", id, "error", err)
		writeError(w, h.logger, statusFor(err), "Failed to load story")
		return
	}
	if story == nil {
		writeError(w, h.logger, http.StatusNotFound, "Story not found")
		return
	}
	next(w, r, story)
}

func (h *StoriesHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateStoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid story request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "Title is required")
		return
	}

	story := &scene.Story{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Rules:       req.Rules,
	}
	player := &scene.Character{
		ID:                uuid.New(),
		StoryID:           story.ID,
		Name:              strings.TrimSpace(req.Player.Name),
		Role:              scene.RolePlayer,
		Description:       req.Player.Description,
		PersonalityTraits: req.Player.PersonalityTraits,
		Backstory:         req.Player.Backstory,
		Goals:             req.Player.Goals,
	}
	if err := player.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid player: "+err.Error())
		return
	}

	if err := h.store.SaveStory(r.Context(), story); err != nil {
		h.logger.Error("Failed to save story", "error", err)
		writeError(w, h.logger, statusFor(err), "Failed to save story")
		return
	}
	saved, err := h.store.PersistCharacter(r.Context(), player)
	if err != nil {
		h.logger.Error("Failed to save player", "story_id", story.ID, "error", err)
		writeError(w, h.logger, statusFor(err), "Failed to save player")
		return
	}

	h.logger.Info("Story created", "story_id", story.ID, "title", story.Title)
	writeJSON(w, h.logger, http.StatusCreated, StoryResponse{Story: story, Player: saved})
}

func (h *StoriesHandler) handleGet(w http.ResponseWriter, r *http.Request, story *scene.Story) {
	ctx := r.Context()
	characters, err := h.store.ListCharacters(ctx, story.ID)
	if err != nil {
		writeError(w, h.logger, statusFor(err), "Failed to load characters")
		return
	}
	locations, err := h.store.ListLocations(ctx, story.ID)
	if err != nil {
		writeError(w, h.logger, statusFor(err), "Failed to load locations")
		return
	}
	latest, err := h.store.LatestScene(ctx, story.ID)
	if err != nil {
		writeError(w, h.logger, statusFor(err), "Failed to load latest scene")
		return
	}

	resp := StoryResponse{Story: story, Locations: locations, LatestScene: latest}
	for i := range characters {
		if characters[i].IsPlayer() {
			resp.Player = &characters[i]
			continue
		}
		resp.Characters = append(resp.Characters, characters[i])
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *StoriesHandler) handleGenerate(w http.ResponseWriter, r *http.Request, story *scene.Story) {
	var body GenerateSceneRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	req := queue.NewGenerateSceneRequest(story.ID, body.RelevantConversations)
	if err := h.queue.Enqueue(r.Context(), req); err != nil {
		h.logger.Error("Failed to enqueue scene request", "story_id", story.ID, "error", err)
		writeError(w, h.logger, http.StatusServiceUnavailable, "Failed to queue scene generation")
		return
	}
	if h.notifier != nil {
		if err := h.notifier.PublishRequestQueued(r.Context(), story.ID, req.RequestID); err != nil {
			h.logger.Warn("Failed to publish queued event", "error", err)
		}
	}

	h.logger.Info("Scene generation queued", "story_id", story.ID, "request_id", req.RequestID)
	writeJSON(w, h.logger, http.StatusAccepted, GenerateSceneResponse{
		RequestID: req.RequestID,
		StoryID:   story.ID,
		Status:    "queued",
	})
}
