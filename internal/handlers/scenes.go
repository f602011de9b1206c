package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/jwebster45206/scene-engine/internal/storage"
)

type CompleteSceneRequest struct {
	Summary string `json:"summary,omitempty"`
}

type ScenesHandler struct {
	store  storage.Store
	logger *slog.Logger
}

func NewScenesHandler(store storage.Store, logger *slog.Logger) *ScenesHandler {
	return &ScenesHandler{store: store, logger: logger}
}

// ServeHTTP handles scene operations
// Routes:
// GET  /v1/scenes/{id}          - Read a scene
// POST /v1/scenes/{id}/complete - Close an active scene, optionally with a summary
func (h *ScenesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := pathSegments(r.URL.Path, "/v1/scenes")
	if len(parts) == 0 || len(parts) > 2 || (len(parts) == 2 && parts[1] != "complete") {
		writeError(w, h.logger, http.StatusNotFound, "Not found")
		return
	}
	id, ok := parseID(parts[0])
	if !ok {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid scene ID format")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s, err := h.store.GetScene(r.Context(), id)
		if err != nil {
			h.logger.Error("Failed to load scene", "scene_id", id, "error", err)
			writeError(w, h.logger, statusFor(err), "Failed to load scene")
			return
		}
		if s == nil {
			writeError(w, h.logger, http.StatusNotFound, "Scene not found")
			return
		}
		writeJSON(w, h.logger, http.StatusOK, s)

	case len(parts) == 2 && r.Method == http.MethodPost:
		var body CompleteSceneRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
			return
		}
		if err := h.store.CompleteScene(r.Context(), id, body.Summary); err != nil {
			h.logger.Warn("Failed to complete scene", "scene_id", id, "error", err)
			writeError(w, h.logger, statusFor(err), err.Error())
			return
		}
		s, err := h.store.GetScene(r.Context(), id)
		if err != nil || s == nil {
			writeError(w, h.logger, http.StatusInternalServerError, "Failed to reload scene")
			return
		}
		h.logger.Info("Scene completed", "scene_id", id, "story_id", s.StoryID)
		writeJSON(w, h.logger, http.StatusOK, s)

	default:
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
