package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"citymemory/application/commands"
	"citymemory/application/services"
	"citymemory/interfaces/http/rest/middleware"
	pkgerrors "citymemory/pkg/errors"
)

// MemoryHandler handles memory-related HTTP requests
type MemoryHandler struct {
	responder
	service *services.MemoryService
}

// NewMemoryHandler creates a new memory handler
func NewMemoryHandler(service *services.MemoryService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{responder: responder{errs: errs, logger: logger}, service: service}
}

// ListMemories handles GET /api/memories?view=all|my
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := commands.ListMemoriesQuery{
		Scope: q.Get("view"),
		Theme: q.Get("theme"),
		From:  q.Get("from"),
		To:    q.Get("to"),
	}
	for _, raw := range q["emotion"] {
		for _, e := range strings.Split(raw, ",") {
			if e = strings.TrimSpace(e); e != "" {
				query.Emotions = append(query.Emotions, e)
			}
		}
	}

	memories, err := h.service.List(r.Context(), middleware.IdentityFrom(r.Context()), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"memories": memories,
	})
}

// CreateMemory handles POST /api/memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	var cmd commands.CreateMemoryCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}

	memory, err := h.service.Create(r.Context(), middleware.IdentityFrom(r.Context()), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "memory saved",
		"id":      memory.ID,
		"memory":  memory,
	})
}

// UpdateMemory handles PUT /api/memories/{id}
func (h *MemoryHandler) UpdateMemory(w http.ResponseWriter, r *http.Request) {
	id, err := memoryID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var cmd commands.UpdateMemoryCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}
	cmd.MemoryID = id

	memory, err := h.service.Update(r.Context(), middleware.IdentityFrom(r.Context()), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "memory updated",
		"memory":  memory,
	})
}

// DeleteMemory handles DELETE /api/memories/{id}
func (h *MemoryHandler) DeleteMemory(w http.ResponseWriter, r *http.Request) {
	id, err := memoryID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), middleware.IdentityFrom(r.Context()), id); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "memory deleted",
	})
}

// ToggleLike handles POST /api/memories/{id}/like
func (h *MemoryHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := memoryID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.service.ToggleReaction(r.Context(), middleware.IdentityFrom(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"liked":     result.Liked,
		"likeCount": result.LikeCount,
	})
}
