package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv(EnvOTelEnabled, "1")
	t.Setenv(EnvOTLPEndpoint, "collector:4317")

	cfg := DefaultConfig()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "collector:4317", cfg.OTLPEndpoint)
	assert.Equal(t, DefaultServiceName, cfg.ServiceName)
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordersWithoutInit(t *testing.T) {
	ctx := context.Background()
	assert.NotPanics(t, func() {
		RecordAPIRequest(ctx, "GET", "project", 200, time.Millisecond)
		RecordIssueCreated(ctx, "PROJ", "Story")
		RecordSprintLookup(ctx, "PROJ", false)
		RecordRun(ctx, "PROJ", "completed", time.Second)

		_, span := StartSpan(ctx, "test")
		EndSpan(span, errors.New("boom"))
		span.End()
	})
}
