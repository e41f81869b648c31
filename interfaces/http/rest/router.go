package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"citymemory/application/services"
	"citymemory/interfaces/http/rest/handlers"
	"citymemory/interfaces/http/rest/middleware"
	"citymemory/pkg/auth"
	pkgerrors "citymemory/pkg/errors"
	"citymemory/pkg/observability"
)

// Options tunes the HTTP surface
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	AuthPerMinute  int
	UserPerMinute  int
	ExposeMetrics  bool
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	auth        *services.AuthService
	memories    *services.MemoryService
	store       handlers.Pinger
	authLimiter *auth.IPRateLimiter
	userLimiter *auth.UserRateLimiter
	collector   *observability.Collector
	tracer      *observability.Tracer
	opts        Options
	logger      *zap.Logger
}

// NewRouter creates a new router instance. Limiters, collector and tracer
// may be nil.
func NewRouter(
	authService *services.AuthService,
	memoryService *services.MemoryService,
	store handlers.Pinger,
	authLimiter *auth.IPRateLimiter,
	userLimiter *auth.UserRateLimiter,
	collector *observability.Collector,
	tracer *observability.Tracer,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		auth:        authService,
		memories:    memoryService,
		store:       store,
		authLimiter: authLimiter,
		userLimiter: userLimiter,
		collector:   collector,
		tracer:      tracer,
		opts:        opts,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	errs := pkgerrors.NewErrorHandler(rt.logger, rt.opts.Debug)
	router := chi.NewRouter()

	var recorder middleware.HTTPRecorder
	if rt.collector != nil {
		recorder = rt.collector
	}

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger, recorder))
	router.Use(errs.Middleware)
	if rt.tracer != nil {
		router.Use(rt.tracer.Middleware)
	}

	origins := rt.opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	health := handlers.NewHealthHandler(rt.store, errs, rt.logger)
	router.Get("/health", health.Health)
	router.Get("/ready", health.Ready)
	if rt.opts.ExposeMetrics && rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	authHandler := handlers.NewAuthHandler(rt.auth, errs, rt.logger)
	memoryHandler := handlers.NewMemoryHandler(rt.memories, errs, rt.logger)
	userHandler := handlers.NewUserHandler(rt.auth, rt.memories, errs, rt.logger)

	router.Route("/api", func(r chi.Router) {
		if rt.opts.MaxBodyBytes > 0 {
			r.Use(middleware.BodyLimit(rt.opts.MaxBodyBytes))
		}

		// Anonymous endpoints
		r.Group(func(r chi.Router) {
			if rt.authLimiter != nil {
				r.Use(middleware.RateLimitByIP(rt.authLimiter, rt.opts.AuthPerMinute, errs, rt.logger))
			}
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
		})

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(rt.auth, rt.userLimiter, rt.opts.UserPerMinute, errs, rt.logger))

			r.Route("/memories", func(r chi.Router) {
				r.Get("/", memoryHandler.ListMemories)
				r.Post("/", memoryHandler.CreateMemory)
				r.Put("/{id}", memoryHandler.UpdateMemory)
				r.Delete("/{id}", memoryHandler.DeleteMemory)
				r.Post("/{id}/like", memoryHandler.ToggleLike)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", userHandler.Profile)
				r.Get("/stats", userHandler.Stats)
				r.Get("/export", userHandler.Export)
				r.Post("/import", userHandler.Import)
			})
		})
	})

	return router
}
