package rest

import "citymemory/infrastructure/di"

// NewRouterFromContainer builds the router from a wired container
func NewRouterFromContainer(c *di.Container) *Router {
	cfg := c.Config
	return NewRouter(
		c.AuthService,
		c.MemoryService,
		c.Store,
		c.RateLimiters.Auth,
		c.RateLimiters.User,
		c.Collector,
		c.Tracer,
		Options{
			AllowedOrigins: cfg.CORSOrigins,
			MaxBodyBytes:   cfg.MaxBodyBytes,
			AuthPerMinute:  cfg.AuthRateLimit,
			UserPerMinute:  cfg.UserRateLimit,
			ExposeMetrics:  cfg.EnableMetrics,
			Debug:          cfg.IsDevelopment(),
		},
		c.Logger,
	)
}
