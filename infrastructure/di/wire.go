//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"citymemory/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideCollector,
	ProvideTracer,
	ProvideMetrics,
	ProvideBaseStore,
	ProvideClassifier,
	ProvideExecutor,
	ProvideStore,
	ProvideEventPublisher,
	ProvideCache,
	ProvideDomainConfig,
	ProvideValidator,
	ProvidePasswordHasher,
	ProvideJWTService,
	ProvideAuthService,
	ProvideMemoryService,
	ProvideRateLimiters,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
