// Package logger builds the structured loggers the solver and its driver
// write through: a leveled slog core with optional rotating file output,
// plus helpers that scope a logger to one solve run or to one solver
// component (scheduler, global relabel, drain).
//
// The solver takes a *slog.Logger through its options and never touches
// the package state; Setup and the Log global exist for the driver, which
// owns process-wide logging.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Solver component names attached by Component. Keeping them here makes
// log filtering stable across the packages that emit them.
const (
	ComponentScheduler = "scheduler"
	ComponentRelabel   = "global_relabel"
	ComponentDrain     = "drain"
	ComponentDriver    = "driver"
)

// Log is the process-wide logger owned by the driver; Setup replaces it.
// It defaults to a discard logger so library code paths that fall back to
// it never write before Setup ran.
var Log = slog.New(slog.DiscardHandler)

// level backs every handler built by Setup, so SetLevel takes effect on
// loggers that were already handed out.
var level slog.LevelVar

// Config describes the logger setup.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json (default), text
	Output     string // stdout (default), stderr, file
	FilePath   string // used when Output is file
	MaxSizeMB  int    // rotate after this many megabytes
	MaxBackups int    // rotated files kept
	MaxAgeDays int    // days before rotated files are deleted
	Compress   bool   // gzip rotated files
}

// Setup builds the logger described by cfg, installs it as Log and returns
// it. Unknown levels, formats or outputs are errors rather than silent
// fallbacks: a driver misconfiguration should surface before a long solve
// runs with its logs going nowhere.
func Setup(cfg Config) (*slog.Logger, error) {
	if err := SetLevel(cfg.Level); err != nil {
		return nil, err
	}

	w, err := output(cfg)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     &level,
		AddSource: level.Level() == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	Log = slog.New(handler)
	return Log, nil
}

// SetLevel changes the level of every logger built by Setup. The empty
// string means info.
func SetLevel(name string) error {
	switch name {
	case "debug":
		level.Set(slog.LevelDebug)
	case "", "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return fmt.Errorf("unknown log level %q", name)
	}
	return nil
}

// output selects the destination writer. File output rotates through
// lumberjack; the directory is created on demand.
func output(cfg Config) (io.Writer, error) {
	switch cfg.Output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	case "file":
		path := cfg.FilePath
		if path == "" {
			path = "logs/gridcut.log"
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}
}

// Solve scopes a logger to one ComputeMaxflow run. Everything a solve
// emits, across all its workers, carries the same run_id.
func Solve(log *slog.Logger, runID string) *slog.Logger {
	return log.With(slog.String("run_id", runID))
}

// Component scopes a logger to a solver component, one of the Component
// constants above.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With(slog.String("component", name))
}

// Grid is the attribute group describing a graph's shape, attached to the
// solve start record.
func Grid(nodes, blocks int) slog.Attr {
	return slog.Group("grid",
		slog.Int("nodes", nodes),
		slog.Int("blocks", blocks),
	)
}
