package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"citymemory/application/commands"
	"citymemory/application/services"
	pkgerrors "citymemory/pkg/errors"
)

// AuthHandler handles registration and login
type AuthHandler struct {
	responder
	service *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *services.AuthService, errs *pkgerrors.ErrorHandler, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{responder: responder{errs: errs, logger: logger}, service: service}
}

// Register handles POST /api/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var cmd commands.RegisterCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "registration successful",
		"userId":  user.ID,
	})
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var cmd commands.LoginCommand
	if err := decodeJSON(r, &cmd); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), cmd)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"message":   "login successful",
		"token":     result.Token,
		"expiresAt": result.ExpiresAt,
		"user":      result.User,
	})
}
