package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"citymemory/pkg/auth"
	pkgerrors "citymemory/pkg/errors"
)

// RateLimitByIP limits anonymous endpoints to perMinute requests per client
// address. Limiter failures fail open.
func RateLimitByIP(limiter *auth.IPRateLimiter, perMinute int, errs *pkgerrors.ErrorHandler, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("IP rate limiter failed", zap.String("ip", ip), zap.Error(err))
			}
			if !allowed {
				errs.Handle(w, r, pkgerrors.NewRateLimitError(perMinute, "minute"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port that RemoteAddr carries unless RealIP rewrote it
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
