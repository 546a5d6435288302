package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitMetrics(t *testing.T) {
	m := InitMetrics("gridflow_test", "solver")
	require.NotNil(t, m)

	assert.NotNil(t, m.SolveOperationsTotal)
	assert.NotNil(t, m.SolveDuration)
	assert.NotNil(t, m.MaxFlowValue)
	assert.NotNil(t, m.DischargesTotal)
	assert.NotNil(t, m.GlobalRelabelsTotal)
	assert.NotNil(t, m.BoundaryMessagesTotal)
	assert.NotNil(t, m.RegionsClaimedTotal)
	assert.NotNil(t, m.ActiveBlocks)

	// Repeated initialization returns the same container.
	assert.Same(t, m, InitMetrics("other", "other"))
	assert.Same(t, m, Get())
}

func TestObserveSolve_NilSafe(t *testing.T) {
	var m *Metrics
	// Must not panic with a nil receiver.
	m.ObserveSolve("ok", time.Second)
}

func TestRuntimeCollector(t *testing.T) {
	c := NewRuntimeCollector("gridflow_test", "runtime")

	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	count := 0
	for range descs {
		count++
	}
	assert.Equal(t, 5, count)

	mets := make(chan prometheus.Metric, 16)
	c.Collect(mets)
	close(mets)
	count = 0
	for range mets {
		count++
	}
	assert.Equal(t, 5, count)
}

func TestHandler(t *testing.T) {
	assert.NotNil(t, Handler())
}
