package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		muted   slog.Level
	}{
		{"debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"", slog.LevelInfo, slog.LevelDebug},
		{"info", slog.LevelInfo, slog.LevelDebug},
		{"warn", slog.LevelWarn, slog.LevelInfo},
		{"error", slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run("level_"+tt.level, func(t *testing.T) {
			log, err := Setup(Config{Level: tt.level, Format: "text", Output: "stderr"})
			require.NoError(t, err)
			require.Same(t, Log, log)
			assert.True(t, log.Enabled(nil, tt.enabled))
			assert.False(t, log.Enabled(nil, tt.muted))
		})
	}
}

func TestSetup_Errors(t *testing.T) {
	_, err := Setup(Config{Level: "loud"})
	assert.Error(t, err)

	_, err = Setup(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, err = Setup(Config{Level: "info", Output: "syslog"})
	assert.Error(t, err)
}

func TestSetLevel_AffectsExistingLoggers(t *testing.T) {
	log, err := Setup(Config{Level: "info", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.False(t, log.Enabled(nil, slog.LevelDebug))

	require.NoError(t, SetLevel("debug"))
	assert.True(t, log.Enabled(nil, slog.LevelDebug))

	assert.Error(t, SetLevel("nope"))
}

func TestSetup_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "solver.log")
	log, err := Setup(Config{Level: "info", Output: "file", FilePath: path})
	require.NoError(t, err)

	log.Info("file output smoke")

	// lumberjack creates the file on first write.
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestSolveAndComponentScoping(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	Component(Solve(base, "run-123"), ComponentScheduler).Info("claimed region", Grid(36, 4))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "run-123", record["run_id"])
	assert.Equal(t, ComponentScheduler, record["component"])

	grid, ok := record["grid"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(36), grid["nodes"])
	assert.Equal(t, float64(4), grid["blocks"])
}

func TestLogDefaultsToDiscard(t *testing.T) {
	// The package-level logger must be usable before Setup.
	assert.NotNil(t, Log)
}
