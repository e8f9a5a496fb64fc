package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhump/dimacros/internal/logger"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.Bool("include-tests", true, "")
	fs.Int("jobs", 0, "")
	fs.StringSlice("exclude", nil, "")
	fs.String("log-level", "info", "")
	fs.String("color", "auto", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("Should use defaults without file, env or flags", func(t *testing.T) {
		cfg, err := Load(t.TempDir(), "", nil)
		require.NoError(t, err)
		assert.True(t, cfg.IncludeTests)
		assert.Equal(t, 0, cfg.Jobs)
		assert.Empty(t, cfg.Exclude)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, ColorAuto, cfg.Color)
		assert.Empty(t, cfg.FileUsed)
	})

	t.Run("Should read the config file in dir", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "jobs: 3\nexclude:\n  - vendor/**\n  - \"**/*_gen.go\"\nlog_level: debug\ninclude_tests: false\n")
		cfg, err := Load(dir, "", nil)
		require.NoError(t, err)
		assert.Equal(t, path, cfg.FileUsed)
		assert.Equal(t, 3, cfg.Jobs)
		assert.Equal(t, []string{"vendor/**", "**/*_gen.go"}, cfg.Exclude)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.False(t, cfg.IncludeTests)
	})

	t.Run("Should let env override the file", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "jobs: 3\nlog_level: debug\n")
		t.Setenv("MACROGO_JOBS", "5")
		t.Setenv("MACROGO_COLOR", "never")
		cfg, err := Load(dir, "", nil)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Jobs)
		assert.Equal(t, ColorNever, cfg.Color)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("Should let set flags override env", func(t *testing.T) {
		t.Setenv("MACROGO_JOBS", "5")
		t.Setenv("MACROGO_LOG_LEVEL", "warn")
		flags := newFlags(t, "--jobs=7", "--exclude=a/**,b/**")
		cfg, err := Load(t.TempDir(), "", flags)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Jobs)
		assert.Equal(t, []string{"a/**", "b/**"}, cfg.Exclude)
		assert.Equal(t, "warn", cfg.LogLevel, "unset flags keep lower layers")
		assert.True(t, cfg.IncludeTests)
	})

	t.Run("Should read an explicit config file", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "color: always\n")
		cfg, err := Load(t.TempDir(), path, newFlags(t, "--config="+path))
		require.NoError(t, err)
		assert.Equal(t, ColorAlways, cfg.Color)
		assert.Equal(t, path, cfg.FileUsed)
	})

	t.Run("Should fail on a missing explicit file", func(t *testing.T) {
		_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.yaml"), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})

	t.Run("Should reject invalid values", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "jobs: -1\nlog_level: loud\ncolor: sometimes\n")
		_, err := Load(dir, "", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jobs must not be negative")
		assert.Contains(t, err.Error(), `unknown log_level "loud"`)
		assert.Contains(t, err.Error(), "color must be one of")
	})
}

func TestLoggerConfig(t *testing.T) {
	cfg := &Config{LogLevel: "debug", LogJSON: true}
	lc := cfg.LoggerConfig()
	assert.Equal(t, logger.DebugLevel, lc.Level)
	assert.True(t, lc.JSON)
}
