package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = Load("")
	assert.Error(t, err)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "icalexpand.yaml", `
window:
  start: "2024-01-01"
  end: "2024-12-31T23:59:59Z"
max_occurrences: 0
log_level: DEBUG
output: JSON
default_timezone: America/New_York
timezone_files:
  - zones.ics
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Window:          Window{Start: "2024-01-01", End: "2024-12-31T23:59:59Z"},
		MaxOccurrences:  100,
		LogLevel:        "debug",
		Output:          OutputJSON,
		DefaultTimezone: "America/New_York",
		TimezoneFiles:   []string{"zones.ics"},
	}, cfg)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "bad.yaml", "window: [\n"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "window.yaml", "window:\n  start: \"2024-02-01\"\n  end: \"2024-01-01\"\n"))
	assert.ErrorContains(t, err, "before start")

	_, err = Load(writeFile(t, "start.yaml", "window:\n  start: qqq\n"))
	assert.ErrorContains(t, err, "window start")
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{
			name: "zero",
			want: Config{Window: Window{Start: "1970-01-01"}, MaxOccurrences: 100, LogLevel: "info", Output: OutputText},
		},
		{
			name: "unknown values",
			in:   Config{MaxOccurrences: -3, LogLevel: "loud", Output: "xml"},
			want: Config{Window: Window{Start: "1970-01-01"}, MaxOccurrences: 100, LogLevel: "info", Output: OutputText},
		},
		{
			name: "kept",
			in:   Config{Window: Window{Start: "2020-01-01"}, MaxOccurrences: 5, LogLevel: "Warn", Output: "Json"},
			want: Config{Window: Window{Start: "2020-01-01"}, MaxOccurrences: 5, LogLevel: "warn", Output: OutputJSON},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.Normalize()
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"nope":  slog.LevelInfo,
	} {
		c := &Config{LogLevel: level}
		assert.Equal(t, want, c.Level(), level)
	}
}

func TestWindowBounds(t *testing.T) {
	start, end, err := Window{Start: "2024-01-01"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.IsZero())

	start, end, err = Window{Start: "2024-01-01T10:00:00+02:00", End: "2024-01-02"}.Bounds()
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T08:00:00Z", start.UTC().Format(time.RFC3339))
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), end)

	_, _, err = Window{Start: "2024-01-01", End: "qqq"}.Bounds()
	assert.ErrorContains(t, err, "window end")
}

func TestWindowPhrases(t *testing.T) {
	base := time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)
	start, end, err := Window{Start: "yesterday", End: "tomorrow"}.BoundsAt(base)
	require.NoError(t, err)
	assert.True(t, start.Before(base), start)
	assert.True(t, end.After(base), end)
	assert.WithinDuration(t, base.AddDate(0, 0, -1), start, 24*time.Hour)
	assert.WithinDuration(t, base.AddDate(0, 0, 1), end, 24*time.Hour)

	_, _, err = Window{Start: "tomorrow", End: "yesterday"}.BoundsAt(base)
	assert.ErrorContains(t, err, "before start")
}

func TestFromEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_occurrences: 7\n"), 0o600))
	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte(EnvConfigPath+"="+cfgPath+"\n"), 0o600))

	t.Setenv(EnvConfigPath, "")
	require.NoError(t, os.Unsetenv(EnvConfigPath))
	cfg, err := FromEnv(envPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxOccurrences)

	t.Setenv(EnvConfigPath, "")
	cfg, err = FromEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	t.Setenv(EnvConfigPath, filepath.Join(dir, "other.yaml"))
	cfg, err = FromEnv(filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.MaxOccurrences)
}
