// Package resilience guards store calls with timeouts, retries and a circuit
// breaker, and turns exhausted transient failures into 503 errors.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"citymemory/pkg/observability"
	pkgerrors "citymemory/pkg/errors"
)

// Config tunes the executor
type Config struct {
	Timeout       time.Duration // per attempt
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64

	BreakerName         string
	BreakerMaxRequests  uint32
	BreakerInterval     time.Duration
	BreakerTimeout      time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  uint32
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		MaxRetries:    3,
		InitialDelay:  50 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,

		BreakerName:         "store",
		BreakerMaxRequests:  5,
		BreakerInterval:     30 * time.Second,
		BreakerTimeout:      30 * time.Second,
		BreakerFailureRatio: 0.6,
		BreakerMinRequests:  10,
	}
}

// Classifier tells the executor how to read backend errors
type Classifier struct {
	// Transient errors may succeed when tried again
	Transient func(error) bool
	// Rejected errors guarantee the write was not applied, so even
	// non-idempotent calls may be retried. Nil means never.
	Rejected func(error) bool
}

// Observer receives retry and breaker notifications
type Observer interface {
	RecordRetry(operation string)
	RecordBreakerState(name, to string)
}

// Executor runs store calls under the configured policies
type Executor struct {
	cfg        Config
	classifier Classifier
	breaker    *gobreaker.CircuitBreaker
	tracer     *observability.Tracer
	observer   Observer
	logger     *zap.Logger

	mu   sync.Mutex
	rand *rand.Rand
}

// NewExecutor creates an executor. tracer and observer may be nil.
func NewExecutor(cfg Config, classifier Classifier, tracer *observability.Tracer, observer Observer, logger *zap.Logger) *Executor {
	if classifier.Transient == nil {
		classifier.Transient = func(error) bool { return false }
	}
	e := &Executor{
		cfg:        cfg,
		classifier: classifier,
		tracer:     tracer,
		observer:   observer,
		logger:     logger,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.BreakerMinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if observer != nil {
				observer.RecordBreakerState(name, to.String())
			}
		},
		// Business outcomes such as not-found are not store failures
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier.Transient(err)
		},
	})
	return e
}

// State returns the breaker state for readiness reporting
func (e *Executor) State() gobreaker.State {
	return e.breaker.State()
}

// Do runs fn with a per-attempt timeout. Transient failures are retried with
// exponential backoff; non-idempotent calls are retried only on rejected
// errors. Exhausted transient failures and an open breaker surface as
// STORE_UNAVAILABLE; every other error is returned untouched.
func (e *Executor) Do(ctx context.Context, operation string, idempotent bool, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return pkgerrors.NewStoreUnavailableError(operation, err)
		}

		err := e.attempt(ctx, operation, fn)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("Store operation succeeded after retry",
					zap.String("operation", operation),
					zap.Int("attempt", attempt),
				)
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return pkgerrors.NewStoreUnavailableError(operation, err)
		}
		if !e.shouldRetry(err, idempotent) || attempt == e.cfg.MaxRetries {
			break
		}

		delay := e.delay(attempt)
		if e.observer != nil {
			e.observer.RecordRetry(operation)
		}
		e.logger.Warn("Retrying store operation",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return pkgerrors.NewStoreUnavailableError(operation, ctx.Err())
		}
	}

	if e.classifier.Transient(lastErr) {
		return pkgerrors.NewStoreUnavailableError(operation, lastErr)
	}
	return lastErr
}

func (e *Executor) attempt(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := e.breaker.Execute(func() (interface{}, error) {
		return nil, e.tracer.TraceFunction(ctx, operation, func(ctx context.Context) error {
			callCtx := ctx
			if e.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
				defer cancel()
			}
			return fn(callCtx)
		})
	})
	return err
}

func (e *Executor) shouldRetry(err error, idempotent bool) bool {
	if idempotent {
		return e.classifier.Transient(err)
	}
	return e.classifier.Rejected != nil && e.classifier.Rejected(err)
}

func (e *Executor) delay(attempt int) time.Duration {
	base := float64(e.cfg.InitialDelay) * math.Pow(e.cfg.BackoffFactor, float64(attempt))
	if max := float64(e.cfg.MaxDelay); max > 0 && base > max {
		base = max
	}
	if e.cfg.JitterFactor > 0 {
		e.mu.Lock()
		jitter := (e.rand.Float64()*2 - 1) * e.cfg.JitterFactor * base
		e.mu.Unlock()
		base += jitter
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}
