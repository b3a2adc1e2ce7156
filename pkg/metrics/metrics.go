// Package metrics compares a true and a predicted dataset at the entity
// level and at the qualifier level.
package metrics

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/ppiankov/clinmetrics/pkg/spaneval"
	"github.com/samber/lo"
)

var (
	// ErrInvalidInput is the parent of every input contract violation.
	ErrInvalidInput = errors.New("invalid metrics input")

	// ErrDatasetSizeMismatch is returned when the datasets differ in document count.
	ErrDatasetSizeMismatch = fmt.Errorf("%w: datasets have different numbers of documents", ErrInvalidInput)

	// ErrIdentifierMismatch is returned when positionally paired documents
	// carry different identifiers.
	ErrIdentifierMismatch = fmt.Errorf("%w: document identifiers do not match", ErrInvalidInput)
)

// Metrics holds a validated pair of datasets. Documents pair by position.
type Metrics struct {
	True *dataset.Dataset
	Pred *dataset.Dataset
}

// New validates that both datasets hold the same documents in the same order.
func New(trueDS, predDS *dataset.Dataset) (*Metrics, error) {
	if trueDS.NumDocs() != predDS.NumDocs() {
		return nil, fmt.Errorf("%w: %d true, %d pred", ErrDatasetSizeMismatch, trueDS.NumDocs(), predDS.NumDocs())
	}

	var mismatches []string
	for i, doc := range trueDS.Docs {
		if pred := predDS.Docs[i]; doc.Identifier != pred.Identifier {
			mismatches = append(mismatches, fmt.Sprintf("%d (%q != %q)", i, doc.Identifier, pred.Identifier))
		}
	}
	if len(mismatches) > 0 {
		return nil, fmt.Errorf("%w at positions %s", ErrIdentifierMismatch, strings.Join(mismatches, ", "))
	}

	return &Metrics{True: trueDS, Pred: predDS}, nil
}

// EntityMetrics scores the annotations passing filter under every span
// matching strategy, micro-averaged over all labels.
func (m *Metrics) EntityMetrics(filter annotation.Filter) (spaneval.Results, error) {
	overall, _, err := m.evaluator(filter).Evaluate()
	return overall, err
}

// EntityMetricsPerClass is EntityMetrics broken down by label.
func (m *Metrics) EntityMetricsPerClass(filter annotation.Filter) (map[string]spaneval.Results, error) {
	_, perLabel, err := m.evaluator(filter).Evaluate()
	return perLabel, err
}

func (m *Metrics) evaluator(filter annotation.Filter) *spaneval.Evaluator {
	labels := lo.Union(m.True.Labels(filter), m.Pred.Labels(filter))

	return spaneval.NewEvaluator(
		m.True.MatchRecords(filter),
		m.Pred.MatchRecords(filter),
		labels,
	)
}

// Report bundles every metric for a dataset pair.
type Report struct {
	Entities         spaneval.Results            `json:"entities" yaml:"entities"`
	EntitiesPerLabel map[string]spaneval.Results `json:"entities_per_label,omitempty" yaml:"entities_per_label,omitempty"`
	Qualifiers       map[string]QualifierResult  `json:"qualifiers" yaml:"qualifiers"`
}

// Report computes entity metrics over the annotations passing filter, and
// qualifier metrics over all annotations. perLabel adds the per-label breakdown.
func (m *Metrics) Report(filter annotation.Filter, perLabel bool) (*Report, error) {
	overall, byLabel, err := m.evaluator(filter).Evaluate()
	if err != nil {
		return nil, fmt.Errorf("entity metrics: %w", err)
	}

	qualifiers, err := m.QualifierMetrics()
	if err != nil {
		return nil, fmt.Errorf("qualifier metrics: %w", err)
	}

	report := &Report{Entities: overall, Qualifiers: qualifiers}
	if perLabel {
		report.EntitiesPerLabel = byLabel
	}
	return report, nil
}
