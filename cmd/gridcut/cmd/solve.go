package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"gridflow"
	"gridflow/internal/problem"
	"gridflow/pkg/logger"
	"gridflow/pkg/metrics"
	"gridflow/pkg/telemetry"
)

var (
	problemPath  string
	printSegment bool
	threads      int
)

// solveCmd loads a problem file and runs the solver.
var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a max-flow problem from a YAML file",
	Long: `Solve loads a problem definition, builds the grid graph, runs the
region-parallel push-relabel solver and prints the flow value. With
--segment the cut side of every node is printed as well.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if problemPath == "" {
			return fmt.Errorf("--problem is required")
		}

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		log := logger.Component(logger.Log, logger.ComponentDriver)

		// Telemetry
		shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		// Metrics endpoint
		var m *metrics.Metrics
		if cfg.Metrics.Enabled {
			m = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, metrics.Handler())
			srv := &http.Server{
				Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
				Handler: mux,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("metrics server failed", "error", err)
				}
			}()
			defer srv.Close()
		}

		p, err := problem.Load(problemPath)
		if err != nil {
			return err
		}

		opts := gridflow.DefaultOptions().
			WithLogger(logger.Log).
			WithMetrics(m).
			WithThreadCount(cfg.Solver.ThreadCount).
			WithMaxBlocksPerRegion(cfg.Solver.MaxBlocksPerRegion).
			WithDischargesPerBlock(cfg.Solver.DischargesPerBlock).
			WithBucketDensity(cfg.Solver.BucketDensity).
			WithBlocksPerMemoryPage(cfg.Solver.BlocksPerMemoryPage).
			WithGlobalUpdateFrequency(cfg.Solver.GlobalUpdateFrequency)
		if threads > 0 {
			opts = opts.WithThreadCount(threads)
		}

		g, err := p.Build(opts)
		if err != nil {
			return err
		}

		start := time.Now()
		if err := g.ComputeMaxflow(ctx); err != nil {
			return err
		}
		flow, err := g.Flow()
		if err != nil {
			return err
		}
		stats := g.Stats()

		fmt.Printf("Flow = %d\n", flow)
		fmt.Printf("Nodes: %d, blocks: %d, duration: %s\n", g.NodeCount(), g.BlockCount(), time.Since(start).Round(time.Millisecond))
		fmt.Printf("Discharges: %d, global relabels: %d, boundary messages: %d, regions: %d\n",
			stats.Discharges, stats.GlobalRelabels, stats.BoundaryMessages, stats.Regions)

		if printSegment {
			sourceSide := 0
			for id := int64(0); id < int64(g.NodeCount()); id++ {
				seg, err := g.Segment(id)
				if err != nil {
					return err
				}
				if seg == gridflow.SegmentSource {
					sourceSide++
				}
				fmt.Printf("Segment of node %d = %s\n", id, seg)
			}
			fmt.Printf("Source side: %d nodes, sink side: %d nodes\n", sourceSide, g.NodeCount()-sourceSide)
		}
		return nil
	},
}

func init() {
	solveCmd.Flags().StringVarP(&problemPath, "problem", "p", "", "Path to the problem YAML file (required)")
	solveCmd.Flags().BoolVarP(&printSegment, "segment", "s", false, "Print the cut side of every node")
	solveCmd.Flags().IntVarP(&threads, "threads", "t", 0, "Override the worker count")
	rootCmd.AddCommand(solveCmd)
}
