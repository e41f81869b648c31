package logpublisher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"citymemory/domain/events"
)

func TestPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	p := NewPublisher(zap.New(core))

	err := p.PublishBatch(context.Background(), []events.DomainEvent{
		events.NewMemoryCreated("m-1", "u-1", "city", "happy", "public", time.Now()),
		events.NewMemoryDeleted("m-1", "u-1", time.Now()),
	})

	require.NoError(t, err)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, events.TypeMemoryCreated, logs.All()[0].ContextMap()["event_type"])
	assert.Equal(t, "m-1", logs.All()[1].ContextMap()["aggregate_id"])
}
