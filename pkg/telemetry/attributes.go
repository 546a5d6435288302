package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Standard attribute keys.
const (
	// Grid
	AttrGridNodes  = "grid.nodes"
	AttrGridBlocks = "grid.blocks"
	AttrGridDims   = "grid.dimensions"

	// Solver
	AttrRunID          = "solver.run_id"
	AttrThreads        = "solver.threads"
	AttrFlow           = "solver.flow"
	AttrDischarges     = "solver.discharges"
	AttrGlobalRelabels = "solver.global_relabels"
	AttrMessages       = "solver.boundary_messages"
	AttrActiveBlocks   = "solver.active_blocks"
)

// GridAttributes returns the attributes describing a grid graph.
func GridAttributes(nodes, blocks, dims int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGridNodes, nodes),
		attribute.Int(AttrGridBlocks, blocks),
		attribute.Int(AttrGridDims, dims),
	}
}

// SolveAttributes returns the attributes describing a finished solve.
func SolveAttributes(flow int64, discharges, globalRelabels, messages int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrFlow, flow),
		attribute.Int64(AttrDischarges, discharges),
		attribute.Int64(AttrGlobalRelabels, globalRelabels),
		attribute.Int64(AttrMessages, messages),
	}
}
