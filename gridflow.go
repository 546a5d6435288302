// Package gridflow computes a maximum s-t flow (and the induced minimum
// cut) on large, regularly structured grid graphs: an N-dimensional grid of
// cells wired by a fixed arc template, as used by computer-vision and
// volumetric-segmentation workloads.
//
// The engine is a region-parallel push-relabel solver. The grid is split
// into rectangular blocks; workers claim connected regions of active blocks
// under a fringe-locking discipline, discharge them locally, hand excess
// across block boundaries through messages, and periodically meet at a
// barrier where a reverse BFS from the sink recomputes exact distance
// labels.
//
// # Determinism
//
// With fixed inputs, the flow value and the segmentation are independent of
// ThreadCount and of the tuning knobs: the flow value is the unique
// max-flow value, and the segmentation is the canonical source-side minimum
// cut of the final residual graph.
//
// # Thread safety
//
// A RegularGraph is not safe for concurrent use. Build it, solve it, then
// query it from one goroutine at a time.
//
// # Example
//
//	g, err := gridflow.New(layout.FourConnected(), []int{6, 6}, []int{3, 3}, nil)
//	if err != nil { ... }
//	g.AddTerminalWeights(0, 100, 0)   // node (0,0) connected to the source
//	g.AddTerminalWeights(21, 0, 100)  // node (3,3) connected to the sink
//	g.AddEdge(0, 1, 5, 0)
//	if err := g.ComputeMaxflow(context.Background()); err != nil { ... }
//	flow, _ := g.Flow()
//	side, _ := g.Segment(0)
package gridflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gridflow/internal/block"
	"gridflow/internal/layout"
	"gridflow/internal/region"
	"gridflow/pkg/apperror"
	"gridflow/pkg/domain"
	"gridflow/pkg/logger"
	"gridflow/pkg/telemetry"
)

// Segment re-exports the cut-side type for query results.
type Segment = domain.Segment

// Cut sides returned by Segment.
const (
	SegmentSource = domain.SegmentSource
	SegmentSink   = domain.SegmentSink
)

// SolveStats summarizes the work done by ComputeMaxflow calls so far.
type SolveStats struct {
	Discharges       int64
	GlobalRelabels   int64
	BoundaryMessages int64
	Regions          int64
}

// RegularGraph is a max-flow problem on a regular grid. Terminal and
// inter-node capacities are additive across calls; ComputeMaxflow may be
// called again after adding more capacity and re-solves from the current
// flow.
type RegularGraph struct {
	layout *layout.Layout
	blocks []*block.Block
	opts   *Options
	log    *slog.Logger

	mu      sync.Mutex
	solving bool
	solved  bool
	flow    domain.Flow
	seg     []bool
	stats   SolveStats
}

// New constructs a graph over the given grid dimensions. The arc template,
// block dimensions and tuning knobs are fixed for the lifetime of the
// graph. Construction fails when the block dimensions do not divide the
// grid dimensions or the template is inconsistent.
func New(tpl layout.Template, gridDims, blockDims []int, opts *Options) (*RegularGraph, error) {
	o := opts.normalized()

	l, err := layout.New(tpl, gridDims, blockDims)
	if err != nil {
		return nil, err
	}

	log := o.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	g := &RegularGraph{
		layout: l,
		blocks: block.NewBlocks(l, o.BlocksPerMemoryPage, o.BucketDensity),
		opts:   o,
		log:    log,
	}

	if m := o.Metrics; m != nil {
		m.GraphNodesTotal.Set(float64(l.NodeCount))
		m.GraphBlocksTotal.Set(float64(l.BlockCount))
	}
	log.Debug("layout materialized",
		"dims", l.GridDims,
		"block_dims", l.BlockDims,
		"nodes", l.NodeCount,
		"blocks", l.BlockCount,
		"nodes_per_cell", l.NodesPerCell,
		"max_degree", l.MaxDegree,
	)
	return g, nil
}

// NodeCount returns the number of nodes in the grid.
func (g *RegularGraph) NodeCount() int {
	return g.layout.NodeCount
}

// BlockCount returns the number of blocks of the decomposition.
func (g *RegularGraph) BlockCount() int {
	return g.layout.BlockCount
}

// NodeIDAt returns the node id of cell-node kind at a grid coordinate.
func (g *RegularGraph) NodeIDAt(coord []int, kind int) (int64, error) {
	return g.layout.NodeIDAt(coord, kind)
}

// AddTerminalWeights adds source and sink capacity to a node. Capacities
// must be non-negative and are additive across calls.
func (g *RegularGraph) AddTerminalWeights(node int64, src, snk domain.Capacity) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if src < 0 || snk < 0 {
		return apperror.Newf(apperror.CodeNegativeCapacity,
			"terminal capacities must be non-negative, got %d/%d", src, snk)
	}

	b, sub, err := g.layout.SplitNodeID(node)
	if err != nil {
		return err
	}
	if !g.blocks[b].AddTerminal(sub, src, snk) {
		return apperror.Newf(apperror.CodeCapacityOverflow,
			"terminal capacity of node %d exceeds the capacity type range", node)
	}
	g.invalidate()
	return nil
}

// AddEdge adds capUV to the arc u->v and capVU to its sister. The pair
// (u, v) must be connected by the arc template; capacities must be
// non-negative and are additive across calls.
func (g *RegularGraph) AddEdge(u, v int64, capUV, capVU domain.Capacity) error {
	if err := g.mutable(); err != nil {
		return err
	}
	if capUV < 0 || capVU < 0 {
		return apperror.Newf(apperror.CodeNegativeCapacity,
			"edge capacities must be non-negative, got %d/%d", capUV, capVU)
	}

	bu, su, err := g.layout.SplitNodeID(u)
	if err != nil {
		return err
	}
	bv, sv, err := g.layout.SplitNodeID(v)
	if err != nil {
		return err
	}

	e, ok := g.layout.ArcBetween(u, v)
	if !ok {
		return apperror.Newf(apperror.CodeInvalidEdge,
			"nodes %d and %d are not connected by the arc template", u, v)
	}
	sister := g.layout.Sisters[g.layout.KindOf(su)][e]

	if !g.blocks[bu].AddArcCapacity(su, e, capUV) {
		return apperror.Newf(apperror.CodeCapacityOverflow,
			"capacity of edge (%d,%d) exceeds the capacity type range", u, v)
	}
	if !g.blocks[bv].AddArcCapacity(sv, sister, capVU) {
		return apperror.Newf(apperror.CodeCapacityOverflow,
			"capacity of edge (%d,%d) exceeds the capacity type range", v, u)
	}
	g.invalidate()
	return nil
}

// ComputeMaxflow runs the solver to completion. It is an error to query a
// graph whose last solve failed or was canceled. Calling it again after
// more capacity was added re-solves from the current flow.
func (g *RegularGraph) ComputeMaxflow(ctx context.Context) error {
	g.mu.Lock()
	if g.solving {
		g.mu.Unlock()
		return apperror.New(apperror.CodeInvalidQuery, "solve already in progress")
	}
	g.solving = true
	g.solved = false
	g.seg = nil
	g.mu.Unlock()

	runID := uuid.NewString()
	start := time.Now()
	log := logger.Solve(g.log, runID)

	ctx, span := telemetry.StartSolve(ctx, runID, g.layout.NodeCount, g.layout.BlockCount, g.layout.DimCount)

	log.Info("solve started", logger.Grid(g.layout.NodeCount, g.layout.BlockCount))

	for _, b := range g.blocks {
		b.SeedFromSource()
	}

	sched := region.NewScheduler(g.layout, g.blocks, region.Options{
		ThreadCount:           g.opts.ThreadCount,
		MaxBlocksPerRegion:    g.opts.MaxBlocksPerRegion,
		DischargesPerBlock:    g.opts.DischargesPerBlock,
		GlobalUpdateFrequency: g.opts.GlobalUpdateFrequency,
		Logger:                logger.Component(log, logger.ComponentScheduler),
		Metrics:               g.opts.Metrics,
		OnGlobalRelabel:       span.RelabelRound,
	})

	absorbed, stats, err := sched.Run(ctx)
	if err != nil {
		span.Fail(err)
		g.opts.Metrics.ObserveSolve("error", time.Since(start))
		log.Error("solve failed", "error", err)
		g.mu.Lock()
		g.solving = false
		g.mu.Unlock()
		return err
	}

	// Convert the remaining preflow into a feasible flow.
	_, drainSpan := telemetry.StartReturnExcess(ctx)
	region.ReturnExcess(g.layout, g.blocks)
	drainSpan.End()

	g.mu.Lock()
	total, ok := domain.AddFlow(g.flow, absorbed)
	if !ok {
		g.solving = false
		g.mu.Unlock()
		err := apperror.NewCritical(apperror.CodeCapacityOverflow,
			"flow accumulator exceeds the flow type range")
		span.Fail(err)
		g.opts.Metrics.ObserveSolve("error", time.Since(start))
		return err
	}
	g.flow = total
	g.stats.Discharges += stats.Discharges
	g.stats.GlobalRelabels += stats.GlobalRelabels
	g.stats.BoundaryMessages += stats.Messages
	g.stats.Regions += stats.Regions
	g.solving = false
	g.solved = true
	g.mu.Unlock()

	span.End(int64(total), stats.Discharges, stats.GlobalRelabels, stats.Messages)
	if m := g.opts.Metrics; m != nil {
		m.ObserveSolve("ok", time.Since(start))
		m.MaxFlowValue.Set(float64(total))
	}
	log.Info("solve finished",
		"flow", total,
		"discharges", stats.Discharges,
		"global_relabels", stats.GlobalRelabels,
		"boundary_messages", stats.Messages,
		"duration", time.Since(start),
	)
	return nil
}

// Flow returns the max-flow value. Valid only after a completed
// ComputeMaxflow.
func (g *RegularGraph) Flow() (domain.Flow, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.solved {
		return 0, apperror.New(apperror.CodeInvalidQuery, "flow queried before a completed solve")
	}
	return g.flow, nil
}

// Segment reports which side of the minimum cut a node is on: S when the
// node is reachable from the source in the final residual graph, T
// otherwise. The reachability BFS runs once on first query and is cached.
func (g *RegularGraph) Segment(node int64) (domain.Segment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.solved {
		return 0, apperror.New(apperror.CodeInvalidQuery, "segment queried before a completed solve")
	}

	b, sub, err := g.layout.SplitNodeID(node)
	if err != nil {
		return 0, err
	}
	if g.seg == nil {
		_, span := telemetry.StartSegmentation(context.Background())
		g.seg = region.SourceReachable(g.layout, g.blocks)
		span.End()
	}
	if g.seg[b*g.layout.NodesPerBlock+sub] {
		return domain.SegmentSource, nil
	}
	return domain.SegmentSink, nil
}

// Stats returns cumulative solver statistics.
func (g *RegularGraph) Stats() SolveStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// mutable guards the build operations against a running solve.
func (g *RegularGraph) mutable() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.solving {
		return apperror.New(apperror.CodeInvalidQuery, "graph is being solved")
	}
	return nil
}

// invalidate drops solve results after a mutation.
func (g *RegularGraph) invalidate() {
	g.mu.Lock()
	g.solved = false
	g.seg = nil
	g.mu.Unlock()
}
