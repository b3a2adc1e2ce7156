package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/ppiankov/clinmetrics/pkg/spaneval"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// Renderer writes reports in one output format
type Renderer struct {
	format  string
	verbose bool
}

// NewRenderer validates format and creates a renderer
func NewRenderer(format string, verbose bool) (*Renderer, error) {
	switch format {
	case model.FormatText, model.FormatJSON, model.FormatYAML:
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
	return &Renderer{format: format, verbose: verbose}, nil
}

// Stats writes a statistics report
func (r *Renderer) Stats(w io.Writer, report *model.StatsReport) error {
	if r.format != model.FormatText {
		return r.encode(w, report)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Source:\t%s (%s, %d bytes)\n", report.Source.Path, report.Source.Format, report.Source.Bytes)
	fmt.Fprintf(tw, "Documents:\t%d\n", report.Stats.NumDocs)
	fmt.Fprintf(tw, "Annotations:\t%d\n", report.Stats.NumAnnotations)

	writeCounts(tw, "Spans", report.Stats.SpanCounts)
	writeCounts(tw, "Labels", report.Stats.LabelCounts)

	for _, name := range sortedKeys(report.Stats.QualifierCounts) {
		title := fmt.Sprintf("Qualifier %s (default %s)", name, report.DefaultQualifiers[name])
		writeCounts(tw, title, report.Stats.QualifierCounts[name])
	}

	r.writeWarnings(tw, report.Warnings)
	return tw.Flush()
}

// Compare writes one comparison report per prediction set
func (r *Renderer) Compare(w io.Writer, reports []*model.CompareReport) error {
	if r.format != model.FormatText {
		return r.encode(w, reports)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, report := range reports {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "True:\t%s\n", report.True.Path)
		fmt.Fprintf(tw, "Pred:\t%s\n", report.Pred.Path)
		fmt.Fprintf(tw, "Filter:\t%s\n", report.Filter)
		if r.verbose {
			fmt.Fprintf(tw, "Run:\t%s\n", report.RunID)
		}

		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Entities\tactual\tcorrect\tprecision\trecall\tf1")
		writeResults(tw, "", report.Metrics.Entities)

		for _, label := range sortedKeys(report.Metrics.EntitiesPerLabel) {
			writeResults(tw, label+" ", report.Metrics.EntitiesPerLabel[label])
		}

		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Qualifier\tn\tpositive\tprecision\trecall\tf1\tmisses")
		for _, name := range sortedKeys(report.Metrics.Qualifiers) {
			q := report.Metrics.Qualifiers[name]
			fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\t%.3f\t%.3f\t%d\n",
				name, q.Metrics.N, orDash(q.Metrics.PositiveLabel),
				q.Metrics.Precision, q.Metrics.Recall, q.Metrics.F1, len(q.Misses))
		}

		if r.verbose {
			for _, name := range sortedKeys(report.Metrics.Qualifiers) {
				for _, miss := range report.Metrics.Qualifiers[name].Misses {
					fmt.Fprintf(tw, "  miss\t%s\t%s [%d,%d) %q\t%s -> %s\n",
						miss.DocIdentifier, name, miss.Annotation.Start, miss.Annotation.End,
						miss.Annotation.Text, miss.TrueValue, miss.PredValue)
				}
			}
		}

		r.writeWarnings(tw, report.Warnings)
	}

	return tw.Flush()
}

func (r *Renderer) encode(w io.Writer, v any) error {
	switch r.format {
	case model.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
}

func (r *Renderer) writeWarnings(w io.Writer, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning:\t%s\n", msg)
	}
}

func writeCounts(w io.Writer, title string, counts dataset.Counts) {
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %s\t%d\n", strings.ReplaceAll(c.Value, "\n", " "), c.N)
	}
}

func writeResults(w io.Writer, prefix string, results spaneval.Results) {
	for _, name := range spaneval.Strategies() {
		res, _ := results.Strategy(name)
		fmt.Fprintf(w, "%s%s\t%d\t%d\t%.3f\t%.3f\t%.3f\n",
			prefix, name, res.Actual, res.Correct, res.Precision, res.Recall, res.F1)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
