package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Directory.LogPath != "database.txt" {
		t.Errorf("Directory.LogPath = %q, want %q", cfg.Directory.LogPath, "database.txt")
	}
	if cfg.Directory.Watch {
		t.Error("Directory.Watch should be false by default")
	}

	if cfg.Garden.Rows != 5 || cfg.Garden.Cols != 5 {
		t.Errorf("Garden size = %dx%d, want 5x5", cfg.Garden.Rows, cfg.Garden.Cols)
	}
	if cfg.Garden.DumpFile != "garden.txt" {
		t.Errorf("Garden.DumpFile = %q, want %q", cfg.Garden.DumpFile, "garden.txt")
	}
	if cfg.Garden.Color != "auto" {
		t.Errorf("Garden.Color = %q, want %q", cfg.Garden.Color, "auto")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be false by default")
	}
	if cfg.Metrics.Addr != ":9090" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9090")
	}
}

func TestGardenConfig_Intervals(t *testing.T) {
	g := Default().Garden

	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"water", g.WaterInterval(), 500 * time.Millisecond},
		{"mutate", g.MutateInterval(), 3 * time.Second},
		{"dump", g.DumpInterval(), 7 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("interval = %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("with XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/custom/config")
		if got, want := ConfigDir(), "/custom/config/keeper"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})

	t.Run("without XDG_CONFIG_HOME", func(t *testing.T) {
		home := t.TempDir()
		t.Setenv("XDG_CONFIG_HOME", "")
		t.Setenv("HOME", home)
		if got, want := ConfigDir(), filepath.Join(home, ".config", "keeper"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestConfigFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got, want := ConfigFile(), "/custom/config/keeper/config.yaml"; got != want {
		t.Errorf("ConfigFile() = %q, want %q", got, want)
	}
}

func TestGet(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()

	cfg := Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Garden.MutateIntervalMs != 3000 {
		t.Errorf("Get().Garden.MutateIntervalMs = %d, want 3000", cfg.Garden.MutateIntervalMs)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("garden.rows", 8)
	viper.Set("directory.log_path", "/tmp/phones.txt")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Garden.Rows != 8 {
		t.Errorf("Garden.Rows = %d, want 8", cfg.Garden.Rows)
	}
	if cfg.Garden.Cols != 5 {
		t.Errorf("Garden.Cols = %d, want default 5", cfg.Garden.Cols)
	}
	if cfg.Directory.LogPath != "/tmp/phones.txt" {
		t.Errorf("Directory.LogPath = %q, want %q", cfg.Directory.LogPath, "/tmp/phones.txt")
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("garden.rows", 0)

	_, err := Load()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Load() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 1 || verrs[0].Field != "garden.rows" {
		t.Errorf("Load() errors = %v, want one garden.rows error", verrs)
	}

	// Get falls back to defaults.
	if got := Get().Garden.Rows; got != 5 {
		t.Errorf("Get().Garden.Rows = %d, want 5", got)
	}
}
