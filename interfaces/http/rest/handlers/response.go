// Package handlers adapts the engine's services to JSON over HTTP
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"citymemory/domain/core/valueobjects"
	pkgerrors "citymemory/pkg/errors"
)

// responder writes success bodies and routes failures to the error handler
type responder struct {
	errs   *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.errs.Handle(w, r, err)
}

// decodeJSON reads a single JSON document into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return pkgerrors.NewValidationError("request body is required")
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &tooLarge):
		return pkgerrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)).
			WithCode("BODY_TOO_LARGE").
			WithStatus(http.StatusRequestEntityTooLarge)
	case errors.Is(err, io.EOF):
		return pkgerrors.NewValidationError("request body is required")
	default:
		return pkgerrors.NewValidationError("invalid JSON body").WithCause(err)
	}
}

// memoryID reads the {id} route parameter. A malformed id cannot name any
// memory, so it gets the same answer as an unknown one.
func memoryID(r *http.Request) (string, error) {
	id, err := valueobjects.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		return "", pkgerrors.NewNotFoundError("memory")
	}
	return id, nil
}
