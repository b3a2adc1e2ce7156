package model

import (
	"fmt"
	"time"

	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/ppiankov/clinmetrics/pkg/metrics"
)

// SourceFormat names an input file layout
type SourceFormat string

const (
	FormatExport   SourceFormat = "export"   // annotation tool JSON export
	FormatPipeline SourceFormat = "pipeline" // NLP pipeline JSON lines
)

// ParseSourceFormat validates a format name from a flag or config value
func ParseSourceFormat(s string) (SourceFormat, error) {
	switch SourceFormat(s) {
	case FormatExport, FormatPipeline:
		return SourceFormat(s), nil
	default:
		return "", fmt.Errorf("unknown input format %q (want %s or %s)", s, FormatExport, FormatPipeline)
	}
}

// Source is one input file
type Source struct {
	Path   string       `json:"path" yaml:"path"`
	Format SourceFormat `json:"format" yaml:"format"`
}

// SourceMeta describes an input file as it was read
type SourceMeta struct {
	Path   string       `json:"path" yaml:"path"`
	Format SourceFormat `json:"format" yaml:"format"`
	Bytes  int          `json:"bytes" yaml:"bytes"`
	SHA256 string       `json:"sha256" yaml:"sha256"`
	Cached bool         `json:"cached" yaml:"cached"`
}

// StatsReport is the output of the stats command
type StatsReport struct {
	Source            SourceMeta        `json:"source" yaml:"source"`
	Stats             dataset.Stats     `json:"stats" yaml:"stats"`
	DefaultQualifiers map[string]string `json:"default_qualifiers" yaml:"default_qualifiers"`
	Warnings          []string          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// CompareReport is the output of one gold/prediction comparison
type CompareReport struct {
	RunID       string          `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time       `json:"generated_at" yaml:"generated_at"`
	True        SourceMeta      `json:"true" yaml:"true"`
	Pred        SourceMeta      `json:"pred" yaml:"pred"`
	Filter      string          `json:"filter" yaml:"filter"` // all, non_default
	Metrics     *metrics.Report `json:"metrics" yaml:"metrics"`
	Warnings    []string        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Entity filters for the compare command
const (
	FilterAll        = "all"
	FilterNonDefault = "non_default"
)
