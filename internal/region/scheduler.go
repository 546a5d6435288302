// Package region runs the solver: a fixed pool of workers claims regions of
// active blocks under a fringe-locking discipline, discharges them, and
// meets at a synchronous barrier for the periodic global relabel. The
// package also carries the sequential post-processing passes: returning
// stranded excess to the source and the segmentation BFS.
package region

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"gridflow/internal/block"
	"gridflow/internal/layout"
	"gridflow/pkg/apperror"
	"gridflow/pkg/domain"
	"gridflow/pkg/metrics"
)

// Options are the scheduler tuning knobs.
type Options struct {
	ThreadCount           int
	MaxBlocksPerRegion    int
	DischargesPerBlock    int
	GlobalUpdateFrequency int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// OnGlobalRelabel, when set, observes every global relabel barrier with
	// the size of the rebuilt active set. Called under the scheduler lock.
	OnGlobalRelabel func(activeBlocks int)
}

// Stats summarizes a finished run.
type Stats struct {
	Discharges     int64
	GlobalRelabels int64
	Messages       int64
	Regions        int64
}

// Scheduler owns the active-block set and the worker pool of one solve.
type Scheduler struct {
	mu   sync.Mutex
	cond *sync.Cond

	layout *layout.Layout
	blocks []*block.Block
	env    *block.Env
	opts   Options
	log    *slog.Logger

	queue   []int
	inQueue []bool
	owner   []int32
	busy    int

	relabelDue       bool
	done             bool
	err              error
	absorbed         domain.Flow
	sinceRelabel     int64
	relabelThreshold int64
	stats            Stats

	labelInf int32
	workers  int
}

// NewScheduler prepares a scheduler over the given blocks.
func NewScheduler(l *layout.Layout, blocks []*block.Block, opts Options) *Scheduler {
	if opts.ThreadCount <= 0 {
		opts.ThreadCount = runtime.NumCPU()
	}
	if opts.MaxBlocksPerRegion <= 0 {
		opts.MaxBlocksPerRegion = 1
	}
	if opts.DischargesPerBlock <= 0 {
		opts.DischargesPerBlock = 1
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	labelInf := int32(l.NodeCount)
	s := &Scheduler{
		layout:  l,
		blocks:  blocks,
		opts:    opts,
		log:     log,
		inQueue: make([]bool, len(blocks)),
		owner:   make([]int32, len(blocks)),
		env: &block.Env{
			Layout:             l,
			Blocks:             blocks,
			DischargesPerBlock: opts.DischargesPerBlock,
			LabelInf:           labelInf,
		},
		labelInf: labelInf,
		workers:  opts.ThreadCount,
	}
	s.cond = sync.NewCond(&s.mu)
	for i := range s.owner {
		s.owner[i] = -1
	}
	s.relabelThreshold = int64(opts.GlobalUpdateFrequency) * int64(l.BlockCount)
	return s
}

// Run executes the solve to completion and returns the flow absorbed at the
// sink during this run. Cancellation is observed at region-claim boundaries
// and at the relabel barrier; a canceled run returns an error and leaves
// the graph unqueryable.
func (s *Scheduler) Run(ctx context.Context) (domain.Flow, Stats, error) {
	if err := ctx.Err(); err != nil {
		return 0, Stats{}, apperror.Wrap(err, apperror.CodeSolveCanceled, "solve canceled")
	}

	s.mu.Lock()
	s.done = false
	s.err = nil
	s.absorbed = 0
	s.stats = Stats{}
	s.runGlobalRelabelLocked()
	s.mu.Unlock()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			if !s.done && s.err == nil {
				s.err = apperror.Wrap(ctx.Err(), apperror.CodeSolveCanceled, "solve canceled")
			}
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < s.workers; w++ {
		wg.Add(1)
		go func(id int32) {
			defer wg.Done()
			s.worker(id)
		}(int32(w))
	}
	wg.Wait()
	close(stop)

	s.mu.Lock()
	absorbed, stats, err := s.absorbed, s.stats, s.err
	s.mu.Unlock()

	if err != nil {
		return 0, stats, err
	}
	return absorbed, stats, nil
}

// worker is the per-thread loop: park at the barrier, claim a region,
// process it, apply the outcome.
func (s *Scheduler) worker(id int32) {
	var res block.Result
	var active []int

	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.done || s.err != nil {
			return
		}

		if s.relabelDue {
			if s.busy == 0 {
				s.runGlobalRelabelLocked()
				s.cond.Broadcast()
				continue
			}
			s.cond.Wait()
			continue
		}

		region, locked := s.claimLocked(id)
		if region == nil {
			if len(s.queue) == 0 && s.busy == 0 {
				s.done = true
				s.cond.Broadcast()
				return
			}
			s.cond.Wait()
			continue
		}

		s.busy++
		s.stats.Regions++
		s.mu.Unlock()

		var absorbed domain.Flow
		var discharges, messages int64
		active = active[:0]
		activated := active
		for _, bid := range region {
			res.Reset()
			s.blocks[bid].Discharge(s.env, &res)
			absorbed += res.Absorbed
			discharges += res.Discharges
			messages += res.Messages
			for _, a := range res.Activated {
				activated = appendUnique(activated, a)
			}
			if res.StillActive {
				activated = appendUnique(activated, bid)
			}
		}
		active = activated

		s.mu.Lock()
		s.busy--
		for _, x := range locked {
			s.owner[x] = -1
		}

		if total, ok := domain.AddFlow(s.absorbed, absorbed); ok {
			s.absorbed = total
		} else if s.err == nil {
			s.err = apperror.NewCritical(apperror.CodeCapacityOverflow,
				"flow accumulator exceeds the flow type range")
		}
		s.stats.Discharges += discharges
		s.stats.Messages += messages
		s.sinceRelabel += discharges
		if s.relabelThreshold > 0 && s.sinceRelabel >= s.relabelThreshold {
			s.relabelDue = true
		}

		for _, bid := range activated {
			s.enqueueLocked(bid)
		}
		// Messages produced within the region may still sit in a member's
		// inbox when it was discharged before the sender.
		for _, bid := range region {
			if s.blocks[bid].PendingMessages() || s.blocks[bid].HasActiveNodes() {
				s.enqueueLocked(bid)
			}
		}

		if m := s.opts.Metrics; m != nil {
			m.DischargesTotal.Add(float64(discharges))
			m.BoundaryMessagesTotal.Add(float64(messages))
			m.RegionsClaimedTotal.Inc()
			m.ActiveBlocks.Set(float64(len(s.queue)))
		}

		s.cond.Broadcast()
	}
}

// claimLocked builds a region: the first claimable block in active-set
// order, extended through claimable active neighbors up to
// MaxBlocksPerRegion. All region blocks plus their fringe are locked by
// setting the owner; a contested fringe keeps the region small.
func (s *Scheduler) claimLocked(id int32) (region []int, locked []int) {
	if len(s.queue) == 0 {
		return nil, nil
	}

	lock := func(x int) {
		if s.owner[x] == -1 {
			s.owner[x] = id
			locked = append(locked, x)
		}
	}
	take := func(i int) int {
		bid := s.queue[i]
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		s.inQueue[bid] = false
		region = append(region, bid)
		lock(bid)
		for _, nb := range s.layout.BlockNeighbors(bid) {
			lock(int(nb))
		}
		return bid
	}

	seed := -1
	for i, bid := range s.queue {
		if s.claimableLocked(bid, id) {
			seed = i
			break
		}
	}
	if seed < 0 {
		return nil, nil
	}
	take(seed)

	for len(region) < s.opts.MaxBlocksPerRegion {
		next := -1
		for i, bid := range s.queue {
			if s.adjacentToRegion(bid, region) && s.claimableLocked(bid, id) {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		take(next)
	}
	return region, locked
}

// claimableLocked reports whether the block and its whole fringe are free
// (or already held by this worker).
func (s *Scheduler) claimableLocked(bid int, id int32) bool {
	if o := s.owner[bid]; o != -1 && o != id {
		return false
	}
	for _, nb := range s.layout.BlockNeighbors(bid) {
		if o := s.owner[nb]; o != -1 && o != id {
			return false
		}
	}
	return true
}

func (s *Scheduler) adjacentToRegion(bid int, region []int) bool {
	for _, nb := range s.layout.BlockNeighbors(bid) {
		for _, r := range region {
			if int(nb) == r {
				return true
			}
		}
	}
	return false
}

func (s *Scheduler) enqueueLocked(bid int) {
	if s.inQueue[bid] {
		return
	}
	s.inQueue[bid] = true
	s.queue = append(s.queue, bid)
}

// runGlobalRelabelLocked is the synchronous barrier body: all workers are
// parked or waiting, so the whole graph is observable. Inboxes are drained,
// exact sink distances recomputed, and the active set rebuilt.
func (s *Scheduler) runGlobalRelabelLocked() {
	var buf []block.Message
	for _, b := range s.blocks {
		buf = b.ApplyInbox(s.labelInf, buf)
	}

	RelabelToSink(s.layout, s.blocks)

	s.queue = s.queue[:0]
	for i := range s.inQueue {
		s.inQueue[i] = false
	}
	for _, b := range s.blocks {
		b.RebuildQueue(s.labelInf)
		if b.HasActiveNodes() {
			s.enqueueLocked(b.ID)
		}
	}

	s.sinceRelabel = 0
	s.relabelDue = false
	s.stats.GlobalRelabels++

	if m := s.opts.Metrics; m != nil {
		m.GlobalRelabelsTotal.Inc()
		m.ActiveBlocks.Set(float64(len(s.queue)))
	}
	if s.opts.OnGlobalRelabel != nil {
		s.opts.OnGlobalRelabel(len(s.queue))
	}
	s.log.Debug("global relabel", "active_blocks", len(s.queue))
}

func appendUnique(list []int, v int) []int {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}
