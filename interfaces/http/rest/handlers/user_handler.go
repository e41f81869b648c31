package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"citymemory/application/commands"
	"citymemory/application/services"
	"citymemory/interfaces/http/rest/middleware"
	pkgerrors "citymemory/pkg/errors"
)

// UserHandler serves the caller's account: profile, stats and the
// export/import round trip
type UserHandler struct {
	responder
	auth     *services.AuthService
	memories *services.MemoryService
}

// NewUserHandler creates a new user handler
func NewUserHandler(auth *services.AuthService, memories *services.MemoryService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *UserHandler {
	return &UserHandler{responder: responder{errs: errs, logger: logger}, auth: auth, memories: memories}
}

// Profile handles GET /api/user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Profile(middleware.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "user": user})
}

// Stats handles GET /api/user/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.memories.Stats(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
}

// Export handles GET /api/user/export
func (h *UserHandler) Export(w http.ResponseWriter, r *http.Request) {
	envelope, err := h.memories.ExportAll(r.Context(), middleware.IdentityFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": envelope})
}

// Import handles POST /api/user/import
func (h *UserHandler) Import(w http.ResponseWriter, r *http.Request) {
	var cmd commands.ImportCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.memories.ImportAll(r.Context(), middleware.IdentityFrom(r.Context()), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "import complete",
		"count":   result.Count,
		"skipped": result.Skipped,
	})
}
