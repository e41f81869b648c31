package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"citymemory/domain/core/entities"
	"citymemory/pkg/auth"
	pkgerrors "citymemory/pkg/errors"
)

// TokenVerifier turns a bearer token into the identity it carries
type TokenVerifier interface {
	Verify(token string) (*entities.Identity, error)
}

// Authenticate verifies the bearer token, applies the per-user rate limit of
// perMinute requests and stores the caller in the request context. limiter
// may be nil.
func Authenticate(verifier TokenVerifier, limiter *auth.UserRateLimiter, perMinute int, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				errs.Handle(w, r, err)
				return
			}

			identity, err := verifier.Verify(token)
			if err != nil {
				errs.Handle(w, r, err)
				return
			}

			if limiter != nil {
				allowed, err := limiter.Allow(r.Context(), identity.UserID)
				if err != nil {
					logger.Warn("User rate limiter failed", zap.String("user_id", identity.UserID), zap.Error(err))
				}
				if !allowed {
					errs.Handle(w, r, pkgerrors.NewRateLimitError(perMinute, "minute"))
					return
				}
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID:   identity.UserID,
				Username: identity.Username,
				Email:    identity.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", pkgerrors.NewUnauthorizedError("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", pkgerrors.NewUnauthorizedError("invalid authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// IdentityFrom returns the verified caller, or nil outside Authenticate
func IdentityFrom(ctx context.Context) *entities.Identity {
	user, err := auth.GetUserFromContext(ctx)
	if err != nil {
		return nil
	}
	return &entities.Identity{UserID: user.UserID, Username: user.Username, Email: user.Email}
}
