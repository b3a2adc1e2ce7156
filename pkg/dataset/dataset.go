// Package dataset groups annotated documents and derives statistics and
// default qualifier values from them.
package dataset

import (
	"errors"
	"fmt"
	"maps"
	"sort"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/samber/lo"
)

// ErrMissingDefault is returned when a qualifier name has no default value.
var ErrMissingDefault = errors.New("no default value for qualifier")

// NoticeKind classifies a diagnostics notice.
type NoticeKind string

const (
	// NoticeDefaultsInferred is sent when default qualifier values were
	// taken from majority counts rather than from explicit flags.
	NoticeDefaultsInferred NoticeKind = "defaults_inferred"

	// NoticeDefaultsUnflagged is sent when every instance of a qualifier
	// carries an is-default flag but none is flagged default, so the
	// majority value is used although the producer flagged it non-default.
	NoticeDefaultsUnflagged NoticeKind = "defaults_unflagged"
)

// Notice is a non-fatal diagnostic emitted by a Dataset.
type Notice struct {
	Kind     NoticeKind
	Message  string
	Defaults map[string]string
}

// Notifier receives diagnostics. It is called synchronously.
type Notifier func(Notice)

// Option configures a Dataset.
type Option func(*Dataset)

// WithNotifier sets the diagnostics sink.
func WithNotifier(n Notifier) Option {
	return func(d *Dataset) {
		d.notifier = n
	}
}

// Dataset is an ordered collection of annotated documents.
type Dataset struct {
	Docs []*annotation.Document

	// DefaultQualifiers maps a qualifier name to its baseline value.
	DefaultQualifiers map[string]string

	notifier Notifier
}

// New creates a dataset and resolves its default qualifiers. Defaults come
// from the explicit is-default flags when every qualifier carries one, and
// from majority counts otherwise.
func New(docs []*annotation.Document, opts ...Option) *Dataset {
	d := &Dataset{Docs: docs}
	for _, opt := range opts {
		opt(d)
	}

	d.ResolveDefaultQualifiers()
	return d
}

// ResolveDefaultQualifiers recomputes DefaultQualifiers from the current
// documents. Call it after mutating Docs.
func (d *Dataset) ResolveDefaultQualifiers() {
	if defaults, unflagged, ok := d.explicitDefaults(); ok {
		d.DefaultQualifiers = defaults
		if len(unflagged) > 0 {
			msg := fmt.Sprintf("no value flagged default for %d qualifiers, using majority values flagged non-default", len(unflagged))
			d.notify(Notice{
				Kind:     NoticeDefaultsUnflagged,
				Message:  msg,
				Defaults: unflagged,
			})
		}
		return
	}

	defaults := d.InferDefaultQualifiers()

	// Every name seen in the dataset has an inferred value, so this cannot fail.
	_ = d.SetDefaultQualifiers(defaults)

	d.notify(Notice{
		Kind:     NoticeDefaultsInferred,
		Message:  fmt.Sprintf("inferred default values for %d qualifiers from majority counts", len(defaults)),
		Defaults: defaults,
	})
}

// explicitDefaults reads defaults from the is-default flags. It reports false
// when any qualifier instance lacks a flag. unflagged holds the names that
// had no instance flagged default, with the majority value used instead.
func (d *Dataset) explicitDefaults() (defaults, unflagged map[string]string, ok bool) {
	defaults = make(map[string]string)
	names := make(map[string]bool)

	for _, q := range d.qualifiers() {
		if !q.HasDefault {
			return nil, nil, false
		}
		names[q.Name] = true
		if _, seen := defaults[q.Name]; !seen && q.IsDefault {
			defaults[q.Name] = q.Value
		}
	}

	if len(defaults) < len(names) {
		inferred := d.InferDefaultQualifiers()
		unflagged = make(map[string]string)
		for name := range names {
			if _, found := defaults[name]; !found {
				defaults[name] = inferred[name]
				unflagged[name] = inferred[name]
			}
		}
	}

	return defaults, unflagged, true
}

func (d *Dataset) qualifiers() []*annotation.Qualifier {
	var out []*annotation.Qualifier
	for _, doc := range d.Docs {
		for _, ann := range doc.Annotations {
			for i := range ann.Qualifiers {
				out = append(out, &ann.Qualifiers[i])
			}
		}
	}
	return out
}

func (d *Dataset) notify(n Notice) {
	if d.notifier != nil {
		d.notifier(n)
	}
}

// NumDocs returns the number of documents.
func (d *Dataset) NumDocs() int {
	return len(d.Docs)
}

// NumAnnotations returns the number of annotations across all documents.
func (d *Dataset) NumAnnotations() int {
	return lo.SumBy(d.Docs, func(doc *annotation.Document) int {
		return len(doc.Annotations)
	})
}

// Labels returns the sorted union of labels of annotations passing filter.
func (d *Dataset) Labels(filter annotation.Filter) []string {
	labels := lo.Uniq(lo.FlatMap(d.Docs, func(doc *annotation.Document, _ int) []string {
		return doc.Labels(filter)
	}))

	sort.Strings(labels)
	return labels
}

// MatchRecords projects every document, one inner slice per document.
func (d *Dataset) MatchRecords(filter annotation.Filter) [][]annotation.MatchRecord {
	return lo.Map(d.Docs, func(doc *annotation.Document, _ int) []annotation.MatchRecord {
		return doc.MatchRecords(filter)
	})
}

// InferDefaultQualifiers picks the most frequent value per qualifier name.
// Ties go to the value seen first.
func (d *Dataset) InferDefaultQualifiers() map[string]string {
	defaults := make(map[string]string)

	for name, counts := range d.QualifierCounts() {
		best := counts[0]
		for _, row := range counts[1:] {
			if row.N > best.N {
				best = row
			}
		}
		defaults[name] = best.Value
	}

	return defaults
}

// SetDefaultQualifiers flags every qualifier as default when its value
// equals defaults[name]. Nothing is changed if a name is missing from defaults.
func (d *Dataset) SetDefaultQualifiers(defaults map[string]string) error {
	qualifiers := d.qualifiers()

	for _, q := range qualifiers {
		if _, ok := defaults[q.Name]; !ok {
			return fmt.Errorf("%w: %q", ErrMissingDefault, q.Name)
		}
	}

	for _, q := range qualifiers {
		q.SetDefault(defaults[q.Name] == q.Value)
	}

	d.DefaultQualifiers = maps.Clone(defaults)
	return nil
}

// DefaultValue returns the resolved default for a qualifier name.
func (d *Dataset) DefaultValue(name string) (string, error) {
	value, ok := d.DefaultQualifiers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingDefault, name)
	}
	return value, nil
}
