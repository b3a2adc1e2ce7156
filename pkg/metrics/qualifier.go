package metrics

import (
	"errors"
	"fmt"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/samber/lo"
)

// ErrNonBinaryQualifier is returned when a qualifier takes more than two
// distinct values across both datasets.
var ErrNonBinaryQualifier = fmt.Errorf("%w: binary qualifier values only", ErrInvalidInput)

// Miss is a qualifier disagreement on an aligned annotation.
type Miss struct {
	DocIdentifier string                 `json:"doc_identifier" yaml:"doc_identifier"`
	Annotation    annotation.MatchRecord `json:"annotation" yaml:"annotation"`
	Qualifier     string                 `json:"qualifier" yaml:"qualifier"`
	TrueValue     string                 `json:"true_qualifier" yaml:"true_qualifier"`
	PredValue     string                 `json:"pred_qualifier" yaml:"pred_qualifier"`
}

// QualifierScores are binary classification scores for one qualifier.
type QualifierScores struct {
	N             int       `json:"n" yaml:"n"`
	Precision     float64   `json:"precision" yaml:"precision"`
	Recall        float64   `json:"recall" yaml:"recall"`
	F1            float64   `json:"f1" yaml:"f1"`
	PositiveLabel string    `json:"positive_label" yaml:"positive_label"`
	Confusion     Confusion `json:"confusion" yaml:"confusion"`
}

// QualifierResult is the outcome for one qualifier name.
type QualifierResult struct {
	Metrics QualifierScores `json:"metrics" yaml:"metrics"`
	Misses  []Miss          `json:"misses" yaml:"misses"`
}

// qualifierValues collects paired values for one qualifier name.
type qualifierValues struct {
	trueVals []string
	predVals []string
	misses   []Miss
}

// QualifierMetrics compares qualifier values on annotations that have the
// exact same span in both datasets. True annotations without such a
// counterpart are skipped.
func (m *Metrics) QualifierMetrics() (map[string]QualifierResult, error) {
	collected := make(map[string]*qualifierValues)
	var order []string

	for i, trueDoc := range m.True.Docs {
		predDoc := m.Pred.Docs[i]

		for _, trueAnn := range trueDoc.Annotations {
			predAnn, ok := predDoc.AnnotationBySpan(trueAnn.Start, trueAnn.End)
			if !ok {
				continue
			}

			shared := lo.Intersect(trueAnn.QualifierNames(), predAnn.QualifierNames())
			for _, name := range shared {
				tq, _ := trueAnn.QualifierByName(name)
				pq, _ := predAnn.QualifierByName(name)

				values, seen := collected[name]
				if !seen {
					values = &qualifierValues{misses: []Miss{}}
					collected[name] = values
					order = append(order, name)
				}

				values.trueVals = append(values.trueVals, tq.Value)
				values.predVals = append(values.predVals, pq.Value)
				if tq.Value != pq.Value {
					values.misses = append(values.misses, Miss{
						DocIdentifier: trueDoc.Identifier,
						Annotation:    trueAnn.MatchRecord(),
						Qualifier:     name,
						TrueValue:     tq.Value,
						PredValue:     pq.Value,
					})
				}
			}
		}
	}

	results := make(map[string]QualifierResult, len(collected))
	for _, name := range order {
		values := collected[name]

		positive, err := m.positiveLabel(name, values)
		if err != nil {
			return nil, err
		}

		confusion := BinaryScores(values.trueVals, values.predVals, positive)
		results[name] = QualifierResult{
			Metrics: QualifierScores{
				N:             len(values.trueVals),
				Precision:     confusion.Precision(),
				Recall:        confusion.Recall(),
				F1:            confusion.F1(),
				PositiveLabel: positive,
				Confusion:     confusion,
			},
			Misses: values.misses,
		}
	}

	return results, nil
}

// positiveLabel returns the pooled value that is not the default. It is
// empty when every observed value is the default.
func (m *Metrics) positiveLabel(name string, values *qualifierValues) (string, error) {
	categories := lo.Uniq(append(append([]string{}, values.trueVals...), values.predVals...))
	if len(categories) > 2 {
		return "", fmt.Errorf("%w: %q has values %v", ErrNonBinaryQualifier, name, categories)
	}

	def, err := m.True.DefaultValue(name)
	if errors.Is(err, dataset.ErrMissingDefault) {
		def, err = m.Pred.DefaultValue(name)
	}
	if err != nil {
		return "", err
	}

	positive, _ := lo.Find(categories, func(v string) bool { return v != def })
	return positive, nil
}
