// Package annotation holds the in-memory model shared by importers, dataset
// statistics and the metrics engine: labeled spans with categorical
// qualifiers, and the documents that own them.
package annotation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultCutset is removed by the trim operations when no cutset is given.
const DefaultCutset = " ,"

var (
	// ErrQualifierNotFound is returned when an annotation has no qualifier with the requested name.
	ErrQualifierNotFound = errors.New("qualifier not found")

	// ErrInvalidAnnotation is returned by Validate.
	ErrInvalidAnnotation = errors.New("invalid annotation")
)

// Qualifier is a categorical attribute of an annotation, e.g. Negation=Negated.
type Qualifier struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`

	// IsDefault is only meaningful when HasDefault is set.
	IsDefault  bool `json:"is_default" yaml:"is_default"`
	HasDefault bool `json:"-" yaml:"-"`
}

// SetDefault marks whether the value is the dataset baseline for this qualifier.
func (q *Qualifier) SetDefault(isDefault bool) {
	q.IsDefault = isDefault
	q.HasDefault = true
}

// MarshalJSON omits is_default when the producer never stated it.
func (q Qualifier) MarshalJSON() ([]byte, error) {
	if !q.HasDefault {
		return json.Marshal(struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		}{q.Name, q.Value})
	}

	return json.Marshal(struct {
		Name      string `json:"name"`
		Value     string `json:"value"`
		IsDefault bool   `json:"is_default"`
	}{q.Name, q.Value, q.IsDefault})
}

// MatchRecord is the projection of an annotation used for span-overlap scoring.
type MatchRecord struct {
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
	Label string `json:"label" yaml:"label"`
}

// Annotation is a single labeled span of a document. Start and End are
// character offsets into the document text, End exclusive.
type Annotation struct {
	Text       string      `json:"text" yaml:"text"`
	Start      int         `json:"start" yaml:"start"`
	End        int         `json:"end" yaml:"end"`
	Label      string      `json:"label" yaml:"label"`
	Qualifiers []Qualifier `json:"qualifiers,omitempty" yaml:"qualifiers,omitempty"`
}

// Span returns the start and end offsets.
func (a *Annotation) Span() (int, int) {
	return a.Start, a.End
}

// TrimLeft removes leading characters in cutset and moves Start accordingly.
func (a *Annotation) TrimLeft(cutset string) {
	if cutset == "" {
		cutset = DefaultCutset
	}

	trimmed := strings.TrimLeft(a.Text, cutset)
	a.Start += utf8.RuneCountInString(a.Text) - utf8.RuneCountInString(trimmed)
	a.Text = trimmed
}

// TrimRight removes trailing characters in cutset and moves End accordingly.
func (a *Annotation) TrimRight(cutset string) {
	if cutset == "" {
		cutset = DefaultCutset
	}

	trimmed := strings.TrimRight(a.Text, cutset)
	a.End -= utf8.RuneCountInString(a.Text) - utf8.RuneCountInString(trimmed)
	a.Text = trimmed
}

// Trim removes leading and trailing characters in cutset, keeping the span
// aligned with the document text. An empty cutset means DefaultCutset.
func (a *Annotation) Trim(cutset string) {
	a.TrimLeft(cutset)
	a.TrimRight(cutset)
}

// QualifierNames returns the distinct qualifier names, sorted.
func (a *Annotation) QualifierNames() []string {
	seen := make(map[string]bool, len(a.Qualifiers))
	names := make([]string, 0, len(a.Qualifiers))

	for _, q := range a.Qualifiers {
		if !seen[q.Name] {
			seen[q.Name] = true
			names = append(names, q.Name)
		}
	}

	sort.Strings(names)
	return names
}

// QualifierByName returns the qualifier with the given name.
func (a *Annotation) QualifierByName(name string) (Qualifier, error) {
	for _, q := range a.Qualifiers {
		if q.Name == name {
			return q, nil
		}
	}

	return Qualifier{}, fmt.Errorf("%w: %q", ErrQualifierNotFound, name)
}

// MatchRecord projects the annotation for the span evaluator.
func (a *Annotation) MatchRecord() MatchRecord {
	return MatchRecord{
		Text:  a.Text,
		Start: a.Start,
		End:   a.End,
		Label: a.Label,
	}
}

// Validate checks offsets and qualifier name uniqueness.
func (a *Annotation) Validate() error {
	if a.Start < 0 || a.End < a.Start {
		return fmt.Errorf("%w: bad span [%d, %d)", ErrInvalidAnnotation, a.Start, a.End)
	}

	seen := make(map[string]bool, len(a.Qualifiers))
	for _, q := range a.Qualifiers {
		if seen[q.Name] {
			return fmt.Errorf("%w: duplicate qualifier %q at [%d, %d)", ErrInvalidAnnotation, q.Name, a.Start, a.End)
		}
		seen[q.Name] = true
	}

	return nil
}
