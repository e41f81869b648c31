package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"citymemory/application/ports"
	pkgerrors "citymemory/pkg/errors"
)

var (
	errFlaky    = errors.New("flaky")
	errRejected = errors.New("rejected")
)

type countingObserver struct {
	retries     int
	transitions []string
}

func (o *countingObserver) RecordRetry(string) { o.retries++ }
func (o *countingObserver) RecordBreakerState(_, to string) {
	o.transitions = append(o.transitions, to)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Timeout = 50 * time.Millisecond
	cfg.MaxRetries = 2
	return cfg
}

func testClassifier() Classifier {
	return Classifier{
		Transient: func(err error) bool {
			return errors.Is(err, errFlaky) || errors.Is(err, errRejected) || errors.Is(err, context.DeadlineExceeded)
		},
		Rejected: func(err error) bool { return errors.Is(err, errRejected) },
	}
}

func TestExecutor_Do(t *testing.T) {
	ctx := context.Background()

	t.Run("Should retry transient failures on idempotent calls", func(t *testing.T) {
		// Arrange
		obs := &countingObserver{}
		exec := NewExecutor(testConfig(), testClassifier(), nil, obs, zap.NewNop())
		calls := 0

		// Act
		err := exec.Do(ctx, "op", true, func(context.Context) error {
			calls++
			if calls < 3 {
				return errFlaky
			}
			return nil
		})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, obs.retries)
	})

	t.Run("Should surface exhausted transient failures as unavailable", func(t *testing.T) {
		exec := NewExecutor(testConfig(), testClassifier(), nil, nil, zap.NewNop())
		calls := 0

		err := exec.Do(ctx, "op", true, func(context.Context) error {
			calls++
			return errFlaky
		})

		assert.True(t, pkgerrors.IsUnavailable(err))
		assert.Equal(t, "STORE_UNAVAILABLE", pkgerrors.GetAppError(err).Code)
		assert.ErrorIs(t, err, errFlaky)
		assert.Equal(t, 3, calls)
	})

	t.Run("Should not retry non-idempotent calls unless rejected", func(t *testing.T) {
		exec := NewExecutor(testConfig(), testClassifier(), nil, nil, zap.NewNop())

		calls := 0
		err := exec.Do(ctx, "op", false, func(context.Context) error {
			calls++
			return errFlaky
		})
		assert.True(t, pkgerrors.IsUnavailable(err))
		assert.Equal(t, 1, calls)

		calls = 0
		err = exec.Do(ctx, "op", false, func(context.Context) error {
			calls++
			if calls == 1 {
				return errRejected
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Should pass business errors through untouched", func(t *testing.T) {
		exec := NewExecutor(testConfig(), testClassifier(), nil, nil, zap.NewNop())
		calls := 0

		err := exec.Do(ctx, "op", true, func(context.Context) error {
			calls++
			return ports.ErrNotFound
		})

		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.False(t, pkgerrors.IsAppError(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("Should enforce the per attempt timeout", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxRetries = 0
		exec := NewExecutor(cfg, testClassifier(), nil, nil, zap.NewNop())

		start := time.Now()
		err := exec.Do(ctx, "op", true, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})

		assert.True(t, pkgerrors.IsUnavailable(err))
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("Should open the breaker after repeated failures", func(t *testing.T) {
		cfg := testConfig()
		cfg.MaxRetries = 0
		cfg.BreakerMinRequests = 3
		cfg.BreakerFailureRatio = 0.5
		cfg.BreakerTimeout = time.Minute
		obs := &countingObserver{}
		exec := NewExecutor(cfg, testClassifier(), nil, obs, zap.NewNop())

		for i := 0; i < 3; i++ {
			_ = exec.Do(ctx, "op", true, func(context.Context) error { return errFlaky })
		}
		require.Equal(t, gobreaker.StateOpen, exec.State())

		called := false
		err := exec.Do(ctx, "op", true, func(context.Context) error {
			called = true
			return nil
		})

		assert.False(t, called)
		assert.True(t, pkgerrors.IsUnavailable(err))
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Contains(t, obs.transitions, "open")
	})

	t.Run("Should not count business errors against the breaker", func(t *testing.T) {
		cfg := testConfig()
		cfg.BreakerMinRequests = 2
		cfg.BreakerFailureRatio = 0.5
		exec := NewExecutor(cfg, testClassifier(), nil, nil, zap.NewNop())

		for i := 0; i < 5; i++ {
			_ = exec.Do(ctx, "op", true, func(context.Context) error { return ports.ErrAlreadyExists })
		}

		assert.Equal(t, gobreaker.StateClosed, exec.State())
	})

	t.Run("Should stop when the caller gives up", func(t *testing.T) {
		exec := NewExecutor(testConfig(), testClassifier(), nil, nil, zap.NewNop())
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		err := exec.Do(cancelled, "op", true, func(context.Context) error { return nil })

		assert.True(t, pkgerrors.IsUnavailable(err))
	})
}
