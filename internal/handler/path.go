package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sakif/learnpath/internal/auth"
	"github.com/sakif/learnpath/internal/model"
	"github.com/sakif/learnpath/internal/service"
)

// PathHandler owns the learning-path CRUD and the per-module patch
// endpoints. Every route is mounted behind RequireAuth, and every service
// call is scoped to the user from the request context, so a path belonging
// to someone else is indistinguishable from one that does not exist.
type PathHandler struct {
	paths  *service.PathService
	logger *slog.Logger
}

func NewPathHandler(paths *service.PathService, logger *slog.Logger) *PathHandler {
	return &PathHandler{paths: paths, logger: logger}
}

type curriculumRequest struct {
	Topic  string           `json:"topic"`
	Levels []model.NewLevel `json:"levels"`
}

// HandleList returns the user's path summaries, newest first.
//
// HTTP: GET /api/learning-paths
func (h *PathHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	summaries, err := h.paths.List(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// HandleGet returns one path with its full level/module/project tree.
//
// HTTP: GET /api/learning-paths/{id}
func (h *PathHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	path, err := h.paths.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

// HandleCreate saves a curriculum (typically an approved generation draft).
//
// HTTP: POST /api/learning-paths
func (h *PathHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req curriculumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id, err := h.paths.Create(r.Context(), userID, req.Topic, req.Levels)
	if err != nil {
		writeError(w, err)
		return
	}

	h.logger.Info("learning path created",
		slog.String("userID", userID),
		slog.String("pathID", id),
	)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// HandleUpdate replaces a path's topic and entire level tree.
//
// HTTP: PUT /api/learning-paths/{id}
//
// Replacement is destructive: levels are deleted and re-inserted, so any
// module completion or notes not present in the request body is gone.
// Callers must round-trip that state from a prior GET.
func (h *PathHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req curriculumRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.paths.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Topic, req.Levels); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "learning path updated"})
}

// HandleDelete removes a path; the schema cascades to levels, modules and
// projects.
//
// HTTP: DELETE /api/learning-paths/{id}
func (h *PathHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.paths.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "learning path deleted"})
}

// HandleModuleComplete sets a module's completion flag.
//
// HTTP: PATCH /api/learning-paths/{pathId}/modules/{moduleId}/complete
func (h *PathHandler) HandleModuleComplete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		IsCompleted bool `json:"isCompleted"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.paths.ToggleModuleCompletion(r.Context(), userID,
		chi.URLParam(r, "pathId"), chi.URLParam(r, "moduleId"), req.IsCompleted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"isCompleted": req.IsCompleted})
}

// HandleModuleNotes replaces a module's notes. Notes do not affect
// completion, so no metrics refresh happens here.
//
// HTTP: PATCH /api/learning-paths/{pathId}/modules/{moduleId}/notes
func (h *PathHandler) HandleModuleNotes(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req struct {
		Notes string `json:"notes"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	err := h.paths.UpdateModuleNotes(r.Context(), userID,
		chi.URLParam(r, "pathId"), chi.URLParam(r, "moduleId"), req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "notes updated"})
}
