// Package config loads macrogo settings from defaults, a YAML file, the
// environment and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/jhump/dimacros/internal/logger"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName  = ".macrogo.yaml"
	EnvPrefix = "MACROGO_"
)

// Color modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds the settings shared by all macrogo commands.
type Config struct {
	IncludeTests bool     `koanf:"include_tests"`
	Jobs         int      `koanf:"jobs"`
	Exclude      []string `koanf:"exclude"`
	LogLevel     string   `koanf:"log_level"`
	LogJSON      bool     `koanf:"log_json"`
	Color        string   `koanf:"color"`
	// MaxDiagnostics limits the diagnostics printed; 0 prints all.
	MaxDiagnostics int `koanf:"max_diagnostics"`

	// FileUsed is the config file that was read, if any.
	FileUsed string `koanf:"-"`
}

func defaults() map[string]any {
	return map[string]any{
		"include_tests":   true,
		"jobs":            0,
		"exclude":         []string{},
		"log_level":       string(logger.InfoLevel),
		"log_json":        false,
		"color":           ColorAuto,
		"max_diagnostics": 0,
	}
}

// Load loads configuration. Precedence (highest to lowest): flags that were
// explicitly set > env vars > config file > defaults. If cfgFile is empty,
// FileName in dir is used when it exists. flags may be nil.
func Load(dir, cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfgFile = candidate
		}
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// MACROGO_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.FileUsed = cfgFile
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.Jobs < 0 {
		errs = append(errs, fmt.Errorf("jobs must not be negative, got %d", c.Jobs))
	}
	if c.MaxDiagnostics < 0 {
		errs = append(errs, fmt.Errorf("max_diagnostics must not be negative, got %d", c.MaxDiagnostics))
	}
	switch logger.LogLevel(c.LogLevel) {
	case logger.DebugLevel, logger.InfoLevel, logger.WarnLevel, logger.ErrorLevel:
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		errs = append(errs, fmt.Errorf("color must be one of auto, always or never, got %q", c.Color))
	}
	return errors.Join(errs...)
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *logger.Config {
	lc := logger.DefaultConfig()
	lc.Level = logger.LogLevel(c.LogLevel)
	lc.JSON = c.LogJSON
	return lc
}
