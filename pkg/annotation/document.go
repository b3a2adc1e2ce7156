package annotation

import (
	"sort"

	"github.com/samber/lo"
)

// Filter selects annotations. A nil Filter selects everything.
type Filter func(*Annotation) bool

func (f Filter) keep(a *Annotation) bool {
	return f == nil || f(a)
}

// AnyNonDefault selects annotations with at least one qualifier explicitly
// flagged as non-default.
func AnyNonDefault() Filter {
	return func(a *Annotation) bool {
		return lo.SomeBy(a.Qualifiers, func(q Qualifier) bool {
			return q.HasDefault && !q.IsDefault
		})
	}
}

// HasLabel selects annotations carrying one of the given labels.
func HasLabel(labels ...string) Filter {
	set := lo.SliceToMap(labels, func(l string) (string, struct{}) {
		return l, struct{}{}
	})

	return func(a *Annotation) bool {
		_, ok := set[a.Label]
		return ok
	}
}

// Document is an annotated piece of text.
type Document struct {
	Identifier  string        `json:"identifier" yaml:"identifier"`
	Text        string        `json:"text" yaml:"text"`
	Annotations []*Annotation `json:"annotations" yaml:"annotations"`
}

// MatchRecords projects the annotations passing filter, in document order.
func (d *Document) MatchRecords(filter Filter) []MatchRecord {
	records := make([]MatchRecord, 0, len(d.Annotations))

	for _, a := range d.Annotations {
		if filter.keep(a) {
			records = append(records, a.MatchRecord())
		}
	}

	return records
}

// Labels returns the sorted distinct labels of annotations passing filter.
func (d *Document) Labels(filter Filter) []string {
	labels := lo.Uniq(lo.FilterMap(d.Annotations, func(a *Annotation, _ int) (string, bool) {
		return a.Label, filter.keep(a)
	}))

	sort.Strings(labels)
	return labels
}

// AnnotationBySpan returns the first annotation with exactly this span.
func (d *Document) AnnotationBySpan(start, end int) (*Annotation, bool) {
	for _, a := range d.Annotations {
		if a.Start == start && a.End == end {
			return a, true
		}
	}

	return nil, false
}
