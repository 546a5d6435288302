// Package config defines the configuration of the gridcut driver and the
// solver tuning knobs, loaded with koanf from defaults, a YAML file and
// environment variables.
package config

import (
	"fmt"
	"strings"
)

// Config is the top-level configuration structure.
type Config struct {
	App     AppConfig     `koanf:"app"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	Tracing TracingConfig `koanf:"tracing"`
	Solver  SolverConfig  `koanf:"solver"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `koanf:"name"`
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"` // development, staging, production
	Debug       bool   `koanf:"debug"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level      string `koanf:"level"`       // debug, info, warn, error
	Format     string `koanf:"format"`      // json, text
	Output     string `koanf:"output"`      // stdout, stderr, file
	FilePath   string `koanf:"file_path"`   // log file path when output=file
	MaxSize    int    `koanf:"max_size"`    // MB
	MaxBackups int    `koanf:"max_backups"` // rotated files kept
	MaxAge     int    `koanf:"max_age"`     // days
	Compress   bool   `koanf:"compress"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Port      int    `koanf:"port"`
	Path      string `koanf:"path"`
	Namespace string `koanf:"namespace"`
	Subsystem string `koanf:"subsystem"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool    `koanf:"enabled"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRate  float64 `koanf:"sample_rate"`
}

// SolverConfig carries the construction-time solver knobs.
//
// Dimensions and BlockDimensions must have the same length; each grid
// dimension must be divisible by the matching block dimension.
type SolverConfig struct {
	Dimensions      []int `koanf:"dimensions"`
	BlockDimensions []int `koanf:"block_dimensions"`

	// Connectivity selects the arc template: 2 (1-D line), 4 or 8 (2-D),
	// 6 or 26 (3-D).
	Connectivity int `koanf:"connectivity"`

	ThreadCount           int `koanf:"thread_count"`
	MaxBlocksPerRegion    int `koanf:"max_blocks_per_region"`
	DischargesPerBlock    int `koanf:"discharges_per_block"`
	BucketDensity         int `koanf:"bucket_density"`
	BlocksPerMemoryPage   int `koanf:"blocks_per_memory_page"`
	GlobalUpdateFrequency int `koanf:"global_update_frequency"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.App.Name == "" {
		errs = append(errs, "app.name is required")
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		errs = append(errs, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got %s", c.Log.Level))
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Sprintf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Sprintf("tracing.sample_rate must be within [0, 1], got %g", c.Tracing.SampleRate))
	}

	if err := c.Solver.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the solver knobs. Dimensions are optional here because
// problem files may carry their own; when present they must be consistent.
func (c *SolverConfig) Validate() error {
	var errs []string

	switch c.Connectivity {
	case 0, 2, 4, 6, 8, 26:
	default:
		errs = append(errs, fmt.Sprintf("solver.connectivity must be one of 2, 4, 6, 8, 26, got %d", c.Connectivity))
	}

	if len(c.Dimensions) > 0 {
		if len(c.BlockDimensions) != len(c.Dimensions) {
			errs = append(errs, "solver.block_dimensions must match solver.dimensions in length")
		} else {
			for d, size := range c.Dimensions {
				if size <= 0 || c.BlockDimensions[d] <= 0 {
					errs = append(errs, fmt.Sprintf("solver dimensions must be positive along axis %d", d))
				} else if size%c.BlockDimensions[d] != 0 {
					errs = append(errs, fmt.Sprintf("solver.dimensions[%d]=%d not divisible by block dimension %d", d, size, c.BlockDimensions[d]))
				}
			}
		}
	}

	if c.ThreadCount < 0 {
		errs = append(errs, "solver.thread_count must be non-negative")
	}
	if c.MaxBlocksPerRegion < 0 {
		errs = append(errs, "solver.max_blocks_per_region must be non-negative")
	}
	if c.DischargesPerBlock < 0 {
		errs = append(errs, "solver.discharges_per_block must be non-negative")
	}
	if c.GlobalUpdateFrequency < 0 {
		errs = append(errs, "solver.global_update_frequency must be non-negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
