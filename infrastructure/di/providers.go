package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"citymemory/application/ports"
	"citymemory/application/services"
	domainconfig "citymemory/domain/config"
	"citymemory/domain/core/validators"
	"citymemory/infrastructure/config"
	"citymemory/infrastructure/messaging/eventbridge"
	"citymemory/infrastructure/messaging/logpublisher"
	"citymemory/infrastructure/persistence/dynamodb"
	"citymemory/infrastructure/persistence/resilience"
	"citymemory/infrastructure/persistence/sqlstore"
	"citymemory/pkg/auth"
	"citymemory/pkg/observability"
)

const serviceName = "city-memory"

// devJWTSecret signs tokens outside production when JWT_SECRET is unset
const devJWTSecret = "city-memory-dev-secret"

// RateLimiters holds the request limiters used by the HTTP layer
type RateLimiters struct {
	Auth *auth.IPRateLimiter
	User *auth.UserRateLimiter
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", serviceName), zap.String("environment", cfg.Environment)), nil
}

// ProvideAWSConfig creates AWS configuration. No network call is made here.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("city_memory")
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideMetrics picks the operation recorder for the configured backend
func ProvideMetrics(cfg *config.Config, collector *observability.Collector, client *awscloudwatch.Client, logger *zap.Logger) ports.Metrics {
	if !cfg.EnableMetrics {
		return observability.NopRecorder{}
	}
	if cfg.MetricsBackend == config.MetricsCloudWatch {
		namespace := fmt.Sprintf("CityMemory/%s", cfg.Environment)
		return observability.MultiRecorder{collector, observability.NewMetrics(namespace, client, logger)}
	}
	return collector
}

// BackendStore is the unwrapped store of the configured backend
type BackendStore interface {
	ports.Store
}

// ProvideBaseStore opens the configured backend and brings its schema up to
// date. The cleanup closes it.
func ProvideBaseStore(ctx context.Context, cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) (BackendStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendDynamoDB:
		store := dynamodb.NewStore(client, dynamodb.Config{
			TableName:       cfg.TableName,
			OwnerIndex:      cfg.GSI1IndexName,
			VisibilityIndex: cfg.GSI2IndexName,
		}, logger.Named("dynamodb"))
		return store, func() {}, nil

	case config.BackendPostgres:
		db, err := sqlstore.OpenPostgres(ctx, sqlstore.PostgresOptions{
			DSN:          cfg.DatabaseURL,
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			ConnMaxLife:  30 * time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		return migrated(ctx, sqlstore.NewStore(db, sqlstore.Postgres, logger.Named("postgres")), logger)

	default:
		db, err := sqlstore.OpenSQLite(ctx, sqlstore.SQLiteOptions{
			Path:       cfg.SQLitePath,
			EnableWAL:  cfg.SQLiteWAL,
			SyncPragma: cfg.SQLiteSync,
		})
		if err != nil {
			return nil, nil, err
		}
		return migrated(ctx, sqlstore.NewStore(db, sqlstore.SQLite, logger.Named("sqlite")), logger)
	}
}

func migrated(ctx context.Context, store *sqlstore.Store, logger *zap.Logger) (BackendStore, func(), error) {
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideClassifier returns the error classification of the configured backend
func ProvideClassifier(cfg *config.Config) resilience.Classifier {
	if cfg.StoreBackend == config.BackendDynamoDB {
		return resilience.Classifier{Transient: dynamodb.IsTransient, Rejected: dynamodb.IsRejected}
	}
	return resilience.Classifier{Transient: sqlstore.IsTransient, Rejected: sqlstore.IsRejected}
}

// ProvideExecutor creates the timeout, retry and breaker policy for store calls
func ProvideExecutor(
	cfg *config.Config,
	classifier resilience.Classifier,
	tracer *observability.Tracer,
	collector *observability.Collector,
	logger *zap.Logger,
) *resilience.Executor {
	rc := resilience.DefaultConfig()
	rc.Timeout = cfg.StoreTimeout
	rc.MaxRetries = cfg.StoreRetryAttempts
	rc.BreakerName = "store-" + cfg.StoreBackend
	rc.BreakerFailureRatio = cfg.BreakerFailureRatio
	rc.BreakerTimeout = cfg.BreakerTimeout
	if cfg.BreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	return resilience.NewExecutor(rc, classifier, tracer, collector, logger.Named("resilience"))
}

// ProvideStore wraps the backend with the resilience policy
func ProvideStore(inner BackendStore, exec *resilience.Executor) ports.Store {
	return resilience.Wrap(inner, exec)
}

// ProvideEventPublisher sends events to EventBridge when enabled, otherwise
// to the log
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if cfg.EnableEvents {
		return eventbridge.NewPublisher(client, cfg.EventBusName, "", logger.Named("eventbridge"))
	}
	return logpublisher.NewPublisher(logger)
}

// ProvideCache creates the owner username cache
func ProvideCache(cfg *config.Config, collector *observability.Collector) (*RistrettoCache, func(), error) {
	cache, err := NewRistrettoCache(cfg.UsernameCacheSize, collector)
	if err != nil {
		return nil, nil, err
	}
	return cache, cache.Close, nil
}

// ProvideDomainConfig applies the configurable memory rules
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	dc := domainconfig.DefaultDomainConfig()
	if cfg.MaxImages > 0 {
		dc.MaxImages = cfg.MaxImages
	}
	if cfg.MaxImageBytes > 0 {
		dc.MaxImageBytes = cfg.MaxImageBytes
	}
	if err := dc.Validate(); err != nil {
		return nil, err
	}
	return dc, nil
}

// ProvideValidator creates the memory validator
func ProvideValidator(dc *domainconfig.DomainConfig) *validators.MemoryValidator {
	return validators.NewMemoryValidator(dc)
}

// ProvidePasswordHasher creates the bcrypt hasher
func ProvidePasswordHasher(cfg *config.Config) *auth.PasswordHasher {
	return auth.NewPasswordHasher(cfg.BcryptCost)
}

// ProvideJWTService creates the token service
func ProvideJWTService(cfg *config.Config, logger *zap.Logger) (*auth.JWTService, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		logger.Warn("JWT_SECRET is not set, using the development secret")
		secret = devJWTSecret
	}
	return auth.NewJWTService(auth.JWTConfig{
		SecretKey: secret,
		Issuer:    cfg.JWTIssuer,
		Audience:  cfg.JWTAudience,
		TTL:       cfg.TokenTTL,
	})
}

// ProvideAuthService creates the credential service
func ProvideAuthService(
	store ports.Store,
	hasher *auth.PasswordHasher,
	tokens *auth.JWTService,
	validator *validators.MemoryValidator,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.AuthService {
	return services.NewAuthService(store, hasher, tokens, validator, publisher, metrics, logger.Named("auth"))
}

// ProvideMemoryService creates the memory access engine
func ProvideMemoryService(
	store ports.Store,
	validator *validators.MemoryValidator,
	cache *RistrettoCache,
	publisher ports.EventPublisher,
	metrics ports.Metrics,
	logger *zap.Logger,
) *services.MemoryService {
	return services.NewMemoryService(store, validator, cache, publisher, metrics, logger.Named("memories"))
}

// ProvideRateLimiters shares limits across instances through DynamoDB when
// that backend is selected, otherwise keeps them in process
func ProvideRateLimiters(cfg *config.Config, client *awsdynamodb.Client) *RateLimiters {
	if cfg.StoreBackend == config.BackendDynamoDB {
		return &RateLimiters{
			Auth: auth.NewIPRateLimiterWith(auth.NewDistributedRateLimiter(client, cfg.TableName, cfg.AuthRateLimit, time.Minute, "AUTH")),
			User: auth.NewUserRateLimiterWith(auth.NewDistributedRateLimiter(client, cfg.TableName, cfg.UserRateLimit, time.Minute, "API")),
		}
	}
	return &RateLimiters{
		Auth: auth.NewIPRateLimiter(cfg.AuthRateLimit),
		User: auth.NewUserRateLimiter(cfg.UserRateLimit),
	}
}
