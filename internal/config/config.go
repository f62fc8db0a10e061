package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete keeper configuration
type Config struct {
	Directory DirectoryConfig `mapstructure:"directory" yaml:"directory"`
	Garden    GardenConfig    `mapstructure:"garden" yaml:"garden"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
}

// DirectoryConfig controls the phone directory and its log file
type DirectoryConfig struct {
	// LogPath is the append-only log of directory entries
	LogPath string `mapstructure:"log_path" yaml:"log_path"`
	// SeedFile is an optional YAML file of entries loaded before a scenario run
	SeedFile string `mapstructure:"seed_file" yaml:"seed_file"`
	// Watch publishes an event whenever the log file changes on disk
	Watch bool `mapstructure:"watch" yaml:"watch"`
}

// GardenConfig controls the garden grid and its workers
type GardenConfig struct {
	Rows int `mapstructure:"rows" yaml:"rows"`
	Cols int `mapstructure:"cols" yaml:"cols"`
	// WaterIntervalMs is how often the gardener waters an unhealthy cell
	WaterIntervalMs int `mapstructure:"water_interval_ms" yaml:"water_interval_ms"`
	// MutateIntervalMs is how often nature damages a random cell
	MutateIntervalMs int `mapstructure:"mutate_interval_ms" yaml:"mutate_interval_ms"`
	// DumpIntervalMs is how often the monitors render the grid
	DumpIntervalMs int `mapstructure:"dump_interval_ms" yaml:"dump_interval_ms"`
	// DumpFile receives the file monitor's renders
	DumpFile string `mapstructure:"dump_file" yaml:"dump_file"`
	// Color controls console colours. Options: "auto", "always", "never"
	Color string `mapstructure:"color" yaml:"color"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level" yaml:"level"`
	// Dir holds keeper.log. Empty logs to stderr.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// MaxSizeMB rotates keeper.log at this size. 0 disables rotation.
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is how many rotated files to keep
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// WaterInterval returns WaterIntervalMs as a duration.
func (g GardenConfig) WaterInterval() time.Duration {
	return time.Duration(g.WaterIntervalMs) * time.Millisecond
}

// MutateInterval returns MutateIntervalMs as a duration.
func (g GardenConfig) MutateInterval() time.Duration {
	return time.Duration(g.MutateIntervalMs) * time.Millisecond
}

// DumpInterval returns DumpIntervalMs as a duration.
func (g GardenConfig) DumpInterval() time.Duration {
	return time.Duration(g.DumpIntervalMs) * time.Millisecond
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Directory: DirectoryConfig{
			LogPath: "database.txt",
		},
		Garden: GardenConfig{
			Rows:             5,
			Cols:             5,
			WaterIntervalMs:  500,
			MutateIntervalMs: 3000,
			DumpIntervalMs:   7000,
			DumpFile:         "garden.txt",
			Color:            "auto",
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("directory.log_path", defaults.Directory.LogPath)
	viper.SetDefault("directory.seed_file", defaults.Directory.SeedFile)
	viper.SetDefault("directory.watch", defaults.Directory.Watch)

	viper.SetDefault("garden.rows", defaults.Garden.Rows)
	viper.SetDefault("garden.cols", defaults.Garden.Cols)
	viper.SetDefault("garden.water_interval_ms", defaults.Garden.WaterIntervalMs)
	viper.SetDefault("garden.mutate_interval_ms", defaults.Garden.MutateIntervalMs)
	viper.SetDefault("garden.dump_interval_ms", defaults.Garden.DumpIntervalMs)
	viper.SetDefault("garden.dump_file", defaults.Garden.DumpFile)
	viper.SetDefault("garden.color", defaults.Garden.Color)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	viper.SetDefault("metrics.addr", defaults.Metrics.Addr)
}

// Load reads the configuration from viper and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "keeper")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".keeper"
	}
	return filepath.Join(home, ".config", "keeper")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
