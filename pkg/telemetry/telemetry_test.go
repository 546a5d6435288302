package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false, ServiceName: "test"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSolveSpan_NoProvider(t *testing.T) {
	// Without Init the helpers run against the no-op provider and must be
	// safe end to end.
	ctx, span := StartSolve(context.Background(), "run-123", 36, 4, 2)
	require.NotNil(t, span)

	span.RelabelRound(3)
	span.End(6, 120, 2, 14)

	_, failed := StartSolve(ctx, "run-124", 36, 4, 2)
	failed.Fail(errors.New("canceled"))

	_, drain := StartReturnExcess(ctx)
	drain.End()
	_, seg := StartSegmentation(ctx)
	seg.End()
}

func TestSamplerFor(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(1.0).Description())
	assert.Equal(t, sdktrace.AlwaysSample().Description(), samplerFor(2.0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(0).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), samplerFor(-0.5).Description())
	assert.Equal(t,
		sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.25)).Description(),
		samplerFor(0.25).Description())
}

func TestAttributes(t *testing.T) {
	grid := GridAttributes(100, 10, 3)
	assert.Len(t, grid, 3)
	assert.Equal(t, AttrGridNodes, string(grid[0].Key))

	solve := SolveAttributes(42, 1000, 3, 57)
	assert.Len(t, solve, 4)
	assert.Equal(t, int64(42), solve[0].Value.AsInt64())
}
