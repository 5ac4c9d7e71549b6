package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/conorfennell/spacedrep/internal/fsrs"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spacedrep.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.DB != want.DB || cfg.HTTPAddr != want.HTTPAddr || cfg.LogLevel != "info" {
		t.Errorf("Expected defaults %+v, but got %+v", want, cfg)
	}
	if cfg.Scheduler.DesiredRetention != fsrs.DefaultDesiredRetention {
		t.Errorf("Expected retention %v, but got %v", fsrs.DefaultDesiredRetention, cfg.Scheduler.DesiredRetention)
	}
}

func TestLoadLayering(t *testing.T) {
	path := writeConfig(t, `
db: /tmp/from-file.db
http_addr: ":9000"
log_level: debug
scheduler:
  desired_retention: 0.85
  maximum_interval: 365
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(newFlags(t), path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DB != "/tmp/from-file.db" {
			t.Errorf("Expected db from file, but got %s", cfg.DB)
		}
		if cfg.HTTPAddr != ":9000" {
			t.Errorf("Expected http_addr :9000, but got %s", cfg.HTTPAddr)
		}
		if cfg.Scheduler.DesiredRetention != 0.85 || cfg.Scheduler.MaximumInterval != 365 {
			t.Errorf("Unexpected scheduler section %+v", cfg.Scheduler)
		}
		if cfg.Scheduler.EnableFuzz {
			t.Error("Expected enable_fuzz to keep its default of false")
		}
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("SPACEDREP_DB", "/tmp/from-env.db")
		t.Setenv("SPACEDREP_SCHEDULER__DESIRED_RETENTION", "0.8")
		cfg, err := Load(newFlags(t), path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DB != "/tmp/from-env.db" {
			t.Errorf("Expected db from env, but got %s", cfg.DB)
		}
		if cfg.Scheduler.DesiredRetention != 0.8 {
			t.Errorf("Expected retention 0.8, but got %v", cfg.Scheduler.DesiredRetention)
		}
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("SPACEDREP_DB", "/tmp/from-env.db")
		cfg, err := Load(newFlags(t, "--db", "/tmp/from-flag.db", "--enable-fuzz"), path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.DB != "/tmp/from-flag.db" {
			t.Errorf("Expected db from flag, but got %s", cfg.DB)
		}
		if !cfg.Scheduler.EnableFuzz {
			t.Error("Expected enable_fuzz true from flag")
		}
		if cfg.LogLevel != "debug" {
			t.Errorf("Expected unset flag to keep file value debug, but got %s", cfg.LogLevel)
		}
	})
}

func TestLegacyDataPath(t *testing.T) {
	t.Setenv(LegacyDataPathEnv, "/tmp/legacy.db")
	cfg, err := Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "/tmp/legacy.db" {
		t.Errorf("Expected legacy db path, but got %s", cfg.DB)
	}

	t.Setenv("SPACEDREP_DB", "/tmp/new.db")
	cfg, err = Load(nil, "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB != "/tmp/new.db" {
		t.Errorf("Expected SPACEDREP_DB to win, but got %s", cfg.DB)
	}
}

func TestWeights(t *testing.T) {
	weights := make([]string, 19)
	for i := range weights {
		weights[i] = "1.5"
	}
	path := writeConfig(t, "scheduler:\n  weights: ["+strings.Join(weights, ", ")+"]\n")
	cfg, err := Load(nil, path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	fc := cfg.FSRS()
	for i, w := range fc.Weights {
		if w != 1.5 {
			t.Fatalf("Expected w[%d] = 1.5, but got %v", i, w)
		}
	}

	short := writeConfig(t, "scheduler:\n  weights: [1, 2, 3]\n")
	if _, err := Load(nil, short); err == nil {
		t.Error("Expected error for a weight vector of the wrong length")
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"retention too high", "scheduler:\n  desired_retention: 1.2\n"},
		{"bad log level", "log_level: verbose\n"},
		{"bad difficulty", "scheduler:\n  initial_difficulty: 11\n"},
		{"bad address", "http_addr: nowhere\n"},
		{"maximum interval past time.Duration", "scheduler:\n  maximum_interval: 200000\n"},
		{"initial stability below floor", "scheduler:\n  initial_stability: 0.05\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(nil, writeConfig(t, tt.body)); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "warn"
	if got := cfg.SlogLevel().String(); got != "WARN" {
		t.Errorf("Expected WARN, but got %s", got)
	}
}

func TestFSRSDefaultsBuildScheduler(t *testing.T) {
	cfg := Default()
	s, err := fsrs.NewScheduler(cfg.FSRS())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	if s.Weights() != fsrs.DefaultWeights {
		t.Errorf("Expected default weights when none are configured")
	}
}
