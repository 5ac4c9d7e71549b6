// Package config loads spacedrep settings from defaults, a YAML file, the
// environment and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/spacedrep/internal/fsrs"
)

const (
	// EnvPrefix prefixes every environment override. Nested keys use a
	// double underscore, e.g. SPACEDREP_SCHEDULER__DESIRED_RETENTION.
	EnvPrefix = "SPACEDREP_"

	// LegacyDataPathEnv names the database path variable older installs used.
	LegacyDataPathEnv = "SPACED_REPETITION_DATA_PATH"
)

// Config is the full application configuration.
type Config struct {
	DB        string    `koanf:"db" validate:"required"`
	ReposDir  string    `koanf:"repos_dir" validate:"required"`
	HTTPAddr  string    `koanf:"http_addr" validate:"required,hostname_port"`
	LogLevel  string    `koanf:"log_level" validate:"oneof=debug info warn error"`
	Scheduler Scheduler `koanf:"scheduler"`
}

// Scheduler mirrors fsrs.Config in a file friendly shape.
type Scheduler struct {
	Weights           []float64 `koanf:"weights" validate:"omitempty,len=19"`
	EnableFuzz        bool      `koanf:"enable_fuzz"`
	MaximumInterval   int       `koanf:"maximum_interval" validate:"gte=1,lte=106751"`
	DesiredRetention  float64   `koanf:"desired_retention" validate:"gt=0,lt=1"`
	InitialStability  float64   `koanf:"initial_stability" validate:"gte=0.1"`
	InitialDifficulty float64   `koanf:"initial_difficulty" validate:"gte=1,lte=10"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"db":                "db",
	"repos-dir":         "repos_dir",
	"http-addr":         "http_addr",
	"log-level":         "log_level",
	"enable-fuzz":       "scheduler.enable_fuzz",
	"maximum-interval":  "scheduler.maximum_interval",
	"desired-retention": "scheduler.desired_retention",
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	dataDir := ".spacedrep"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".spacedrep")
	}
	return Config{
		DB:       filepath.Join(dataDir, "cards.db"),
		ReposDir: filepath.Join(dataDir, "repos"),
		HTTPAddr: "localhost:8080",
		LogLevel: "info",
		Scheduler: Scheduler{
			MaximumInterval:   fsrs.DefaultMaximumInterval,
			DesiredRetention:  fsrs.DefaultDesiredRetention,
			InitialStability:  fsrs.DefaultInitialStability,
			InitialDifficulty: fsrs.DefaultInitialDifficulty,
		},
	}
}

// RegisterFlags adds the configuration flags to fs with their defaults.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("db", d.DB, "Path to the SQLite database file")
	fs.String("repos-dir", d.ReposDir, "Directory for git source checkouts")
	fs.String("http-addr", d.HTTPAddr, "Listen address for the HTTP API")
	fs.String("log-level", d.LogLevel, "Log level: debug, info, warn or error")
	fs.Bool("enable-fuzz", d.Scheduler.EnableFuzz, "Randomize review intervals by ±5%")
	fs.Int("maximum-interval", d.Scheduler.MaximumInterval, "Longest review interval in days")
	fs.Float64("desired-retention", d.Scheduler.DesiredRetention, "Target recall probability")
}

// Load builds the configuration. configPath may be empty, and fs may be nil.
func Load(fs *pflag.FlagSet, configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if legacy := os.Getenv(LegacyDataPathEnv); legacy != "" {
		if err := k.Set("db", legacy); err != nil {
			return nil, fmt.Errorf("failed to apply %s: %w", LegacyDataPathEnv, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if fs != nil {
		err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		}), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// FSRS converts the scheduler section into an fsrs.Config.
func (c *Config) FSRS() fsrs.Config {
	out := fsrs.Config{
		EnableFuzz:        c.Scheduler.EnableFuzz,
		MaximumInterval:   c.Scheduler.MaximumInterval,
		DesiredRetention:  c.Scheduler.DesiredRetention,
		InitialStability:  c.Scheduler.InitialStability,
		InitialDifficulty: c.Scheduler.InitialDifficulty,
	}
	if len(c.Scheduler.Weights) == len(out.Weights) {
		copy(out.Weights[:], c.Scheduler.Weights)
	}
	return out
}

// SlogLevel returns the slog level for LogLevel.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
