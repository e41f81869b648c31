// Package services implements the credential service and the memory access
// engine on top of the store ports.
package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"citymemory/application/ports"
	"citymemory/domain/core/entities"
	"citymemory/domain/events"
	pkgerrors "citymemory/pkg/errors"
)

// eventSource is implemented by entities that raise domain events
type eventSource interface {
	GetUncommittedEvents() []events.DomainEvent
	MarkEventsAsCommitted()
}

// base carries the collaborators every service shares
type base struct {
	publisher ports.EventPublisher
	metrics   ports.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

func newBase(publisher ports.EventPublisher, metrics ports.Metrics, logger *zap.Logger) base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return base{publisher: publisher, metrics: metrics, logger: logger, now: time.Now}
}

// observe records the outcome of an operation
func (b *base) observe(ctx context.Context, operation string, start time.Time, err error) {
	if b.metrics != nil {
		b.metrics.RecordOperation(ctx, operation, time.Since(start), err)
	}
}

// publish sends events after the write they describe has committed. Delivery
// is best effort: failures are logged and never fail the request.
func (b *base) publish(ctx context.Context, evs ...events.DomainEvent) {
	if b.publisher == nil || len(evs) == 0 {
		return
	}
	if err := b.publisher.PublishBatch(ctx, evs); err != nil {
		b.logger.Warn("Failed to publish domain events",
			zap.Int("count", len(evs)),
			zap.String("event_type", evs[0].GetEventType()),
			zap.Error(err))
	}
}

// publishFrom drains an entity's pending events
func (b *base) publishFrom(ctx context.Context, sources ...eventSource) {
	var evs []events.DomainEvent
	for _, src := range sources {
		evs = append(evs, src.GetUncommittedEvents()...)
		src.MarkEventsAsCommitted()
	}
	b.publish(ctx, evs...)
}

// requireIdentity rejects requests without a verified caller
func requireIdentity(requester *entities.Identity) error {
	if requester.IsZero() {
		return pkgerrors.NewUnauthorizedError("authentication required")
	}
	return nil
}

// storeError passes classified failures through and hides anything else
// behind an internal error
func storeError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsAppError(err) {
		return err
	}
	return pkgerrors.NewInternalError(operation + " failed").WithCause(err)
}

// memoryNotFound is the single answer for absent, foreign and private
// memories
func memoryNotFound() error {
	return pkgerrors.NewNotFoundError("memory")
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}
