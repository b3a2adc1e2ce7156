package model

import (
	"runtime"
	"time"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
)

// Config holds all clinmetrics settings
type Config struct {
	Import            ImportConfig      `yaml:"import" mapstructure:"import"`
	DefaultQualifiers map[string]string `yaml:"default_qualifiers,omitempty" mapstructure:"default_qualifiers"`
	Stats             StatsConfig       `yaml:"stats" mapstructure:"stats"`
	Output            OutputConfig      `yaml:"output" mapstructure:"output"`
	Log               LogConfig         `yaml:"log" mapstructure:"log"`
	Concurrency       ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Cache             CacheConfig       `yaml:"cache" mapstructure:"cache"`
}

// ImportConfig controls how annotation exports are read
type ImportConfig struct {
	StripSpans   bool   `yaml:"strip_spans" mapstructure:"strip_spans"`
	Cutset       string `yaml:"cutset" mapstructure:"cutset"`
	MaxFileBytes int64  `yaml:"max_file_bytes" mapstructure:"max_file_bytes"`
}

// StatsConfig bounds the frequency tables of the stats command
type StatsConfig struct {
	MaxSpans  int `yaml:"max_spans" mapstructure:"max_spans"`   // -1 for all
	MaxLabels int `yaml:"max_labels" mapstructure:"max_labels"` // -1 for all
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Format  string `yaml:"format" mapstructure:"format"` // text, json, yaml
	Verbose bool   `yaml:"verbose" mapstructure:"verbose"`
}

// LogConfig controls diagnostics on stderr
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // console, json
}

// ConcurrencyConfig controls the compare worker pool
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// CacheConfig controls the in-memory cache of input files
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Import: ImportConfig{
			StripSpans:   true,
			Cutset:       annotation.DefaultCutset,
			MaxFileBytes: 256 << 20,
		},
		Stats: StatsConfig{
			MaxSpans:  dataset.DefaultMaxEntries,
			MaxLabels: dataset.DefaultMaxEntries,
		},
		Output: OutputConfig{
			Format: FormatText,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Concurrency: ConcurrencyConfig{
			Workers: runtime.NumCPU(),
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     10 * time.Minute,
		},
	}
}
