package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/keeper/internal/grid"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "garden.rows")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidColorModes returns the accepted garden.color values
func ValidColorModes() []string {
	return []string{string(grid.ColorAuto), string(grid.ColorAlways), string(grid.ColorNever)}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError
	errors = append(errors, c.validateDirectory()...)
	errors = append(errors, c.validateGarden()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateMetrics()...)
	return errors
}

func (c *Config) validateDirectory() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Directory.LogPath) == "" {
		errors = append(errors, ValidationError{
			Field:   "directory.log_path",
			Value:   c.Directory.LogPath,
			Message: "must not be empty",
		})
	}
	if strings.ContainsRune(c.Directory.LogPath, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "directory.log_path",
			Value:   c.Directory.LogPath,
			Message: "contains invalid null character",
		})
	}

	return errors
}

func (c *Config) validateGarden() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
	}{
		{"garden.rows", c.Garden.Rows},
		{"garden.cols", c.Garden.Cols},
		{"garden.water_interval_ms", c.Garden.WaterIntervalMs},
		{"garden.mutate_interval_ms", c.Garden.MutateIntervalMs},
		{"garden.dump_interval_ms", c.Garden.DumpIntervalMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be positive",
			})
		}
	}

	if strings.TrimSpace(c.Garden.DumpFile) == "" {
		errors = append(errors, ValidationError{
			Field:   "garden.dump_file",
			Value:   c.Garden.DumpFile,
			Message: "must not be empty",
		})
	}

	// Empty means auto.
	if c.Garden.Color != "" && !slices.Contains(ValidColorModes(), c.Garden.Color) {
		errors = append(errors, ValidationError{
			Field:   "garden.color",
			Value:   c.Garden.Color,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	var errors []ValidationError

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errors = append(errors, ValidationError{
			Field:   "metrics.addr",
			Value:   c.Metrics.Addr,
			Message: "must be set when metrics are enabled",
		})
	}

	return errors
}
