package gridflow

import (
	"log/slog"

	"gridflow/pkg/metrics"
)

// Options configures a RegularGraph at construction time. Zero values take
// the documented defaults (except GlobalUpdateFrequency, where zero
// disables the periodic relabel); options chain in the builder style:
//
//	opts := gridflow.DefaultOptions().
//	    WithThreadCount(4).
//	    WithMaxBlocksPerRegion(8)
type Options struct {
	// ThreadCount is the worker pool size. Zero means one worker per CPU.
	ThreadCount int

	// MaxBlocksPerRegion bounds how many active blocks a worker claims
	// together. Default: 4.
	MaxBlocksPerRegion int

	// DischargesPerBlock is the work quantum: nodes discharged per claimed
	// block before the region is released. Default: 500.
	DischargesPerBlock int

	// BucketDensity is the label grain of the per-block active-node FIFO.
	// Default: 16.
	BucketDensity int

	// BlocksPerMemoryPage groups this many blocks per allocation slab, a
	// locality hint for the block arrays. Default: 16.
	BlocksPerMemoryPage int

	// GlobalUpdateFrequency triggers a global relabel every
	// GlobalUpdateFrequency * block_count discharges. Zero disables the
	// periodic relabel (the initial exact labeling still runs). Default: 6.
	GlobalUpdateFrequency int

	// Logger receives solver progress; nil discards it.
	Logger *slog.Logger

	// Metrics receives solver counters; nil disables instrumentation.
	Metrics *metrics.Metrics
}

// DefaultOptions returns options with sensible defaults for most grids.
func DefaultOptions() *Options {
	return &Options{
		ThreadCount:           0,
		MaxBlocksPerRegion:    4,
		DischargesPerBlock:    500,
		BucketDensity:         16,
		BlocksPerMemoryPage:   16,
		GlobalUpdateFrequency: 6,
	}
}

// WithThreadCount sets the worker pool size and returns the options.
func (o *Options) WithThreadCount(n int) *Options {
	o.ThreadCount = n
	return o
}

// WithMaxBlocksPerRegion sets the region size bound and returns the options.
func (o *Options) WithMaxBlocksPerRegion(n int) *Options {
	o.MaxBlocksPerRegion = n
	return o
}

// WithDischargesPerBlock sets the work quantum and returns the options.
func (o *Options) WithDischargesPerBlock(n int) *Options {
	o.DischargesPerBlock = n
	return o
}

// WithBucketDensity sets the FIFO label grain and returns the options.
func (o *Options) WithBucketDensity(n int) *Options {
	o.BucketDensity = n
	return o
}

// WithBlocksPerMemoryPage sets the allocation grouping and returns the options.
func (o *Options) WithBlocksPerMemoryPage(n int) *Options {
	o.BlocksPerMemoryPage = n
	return o
}

// WithGlobalUpdateFrequency sets the relabel period and returns the options.
func (o *Options) WithGlobalUpdateFrequency(n int) *Options {
	o.GlobalUpdateFrequency = n
	return o
}

// WithLogger sets the logger and returns the options.
func (o *Options) WithLogger(log *slog.Logger) *Options {
	o.Logger = log
	return o
}

// WithMetrics sets the metric container and returns the options.
func (o *Options) WithMetrics(m *metrics.Metrics) *Options {
	o.Metrics = m
	return o
}

// normalized fills zero fields with defaults.
func (o *Options) normalized() *Options {
	if o == nil {
		return DefaultOptions()
	}
	cp := *o
	def := DefaultOptions()
	if cp.MaxBlocksPerRegion <= 0 {
		cp.MaxBlocksPerRegion = def.MaxBlocksPerRegion
	}
	if cp.DischargesPerBlock <= 0 {
		cp.DischargesPerBlock = def.DischargesPerBlock
	}
	if cp.BucketDensity <= 0 {
		cp.BucketDensity = def.BucketDensity
	}
	if cp.BlocksPerMemoryPage <= 0 {
		cp.BlocksPerMemoryPage = def.BlocksPerMemoryPage
	}
	if cp.GlobalUpdateFrequency < 0 {
		cp.GlobalUpdateFrequency = def.GlobalUpdateFrequency
	}
	return &cp
}
