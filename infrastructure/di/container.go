package di

import (
	"go.uber.org/zap"

	"citymemory/application/ports"
	"citymemory/application/services"
	"citymemory/infrastructure/config"
	"citymemory/infrastructure/persistence/resilience"
	"citymemory/pkg/auth"
	"citymemory/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Store         ports.Store
	Executor      *resilience.Executor
	Collector     *observability.Collector
	Metrics       ports.Metrics
	Tracer        *observability.Tracer
	Cache         *RistrettoCache
	Publisher     ports.EventPublisher
	AuthService   *services.AuthService
	MemoryService *services.MemoryService
	RateLimiters  *RateLimiters
	Tokens        *auth.JWTService
}
