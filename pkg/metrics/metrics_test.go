package metrics

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/ppiankov/clinmetrics/pkg/dataset"
	"github.com/ppiankov/clinmetrics/pkg/spaneval"
)

func negation(value string) annotation.Qualifier {
	return annotation.Qualifier{Name: "Negation", Value: value, IsDefault: value == "Affirmed", HasDefault: true}
}

func ann(text string, start, end int, label string, qualifiers ...annotation.Qualifier) *annotation.Annotation {
	return &annotation.Annotation{Text: text, Start: start, End: end, Label: label, Qualifiers: qualifiers}
}

func doc(id string, anns ...*annotation.Annotation) *annotation.Document {
	return &annotation.Document{Identifier: id, Annotations: anns}
}

// pairedDatasets builds two datasets with one annotation per document at
// identical spans. predValues sets the pred Negation values.
func pairedDatasets(trueValues, predValues []string) (*dataset.Dataset, *dataset.Dataset) {
	var trueDocs, predDocs []*annotation.Document
	for i := range trueValues {
		id := string(rune('a' + i))
		trueDocs = append(trueDocs, doc(id, ann("koorts", 10, 16, "C0015967_koorts", negation(trueValues[i]))))
		predDocs = append(predDocs, doc(id, ann("koorts", 10, 16, "C0015967_koorts", negation(predValues[i]))))
	}
	return dataset.New(trueDocs), dataset.New(predDocs)
}

func TestNew_SizeMismatch(t *testing.T) {
	trueDS := dataset.New([]*annotation.Document{doc("a"), doc("b")})
	predDS := dataset.New([]*annotation.Document{doc("a")})

	_, err := New(trueDS, predDS)
	if !errors.Is(err, ErrDatasetSizeMismatch) {
		t.Errorf("Expected ErrDatasetSizeMismatch, got %v", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected error to wrap ErrInvalidInput, got %v", err)
	}
}

func TestNew_IdentifierMismatch(t *testing.T) {
	trueDS := dataset.New([]*annotation.Document{doc("a"), doc("b"), doc("c")})
	predDS := dataset.New([]*annotation.Document{doc("a"), doc("c"), doc("b")})

	_, err := New(trueDS, predDS)
	if !errors.Is(err, ErrIdentifierMismatch) {
		t.Fatalf("Expected ErrIdentifierMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 (") || !strings.Contains(err.Error(), "2 (") {
		t.Errorf("Expected both positions in error, got %v", err)
	}
}

func TestEntityMetrics_Identical(t *testing.T) {
	trueDS, predDS := pairedDatasets([]string{"Negated", "Affirmed"}, []string{"Negated", "Affirmed"})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.EntityMetrics(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	strict := results.Strict
	if strict.Precision != 1 || strict.Recall != 1 || strict.F1 != 1 {
		t.Errorf("Expected perfect strict scores, got %+v", strict)
	}
	if strict.Actual != trueDS.NumAnnotations() || strict.Correct != trueDS.NumAnnotations() {
		t.Errorf("Expected actual == correct == %d, got %+v", trueDS.NumAnnotations(), strict)
	}
}

func TestEntityMetrics_Filter(t *testing.T) {
	trueDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "C0015967_koorts", negation("Negated")),
		ann("anemie", 10, 16, "C0002871_anemie", negation("Affirmed")),
	)})
	predDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "C0015967_koorts", negation("Negated")),
	)})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	all, err := m.EntityMetrics(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if all.Strict.Missed != 1 || all.Strict.Correct != 1 {
		t.Errorf("Expected 1 correct and 1 missed, got %+v", all.Strict)
	}

	nonDefault, err := m.EntityMetrics(annotation.AnyNonDefault())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if nonDefault.Strict.F1 != 1 || nonDefault.Strict.Possible != 1 {
		t.Errorf("Expected only the negated annotation to count, got %+v", nonDefault.Strict)
	}

	perClass, err := m.EntityMetricsPerClass(nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if perClass["C0002871_anemie"].Strict.Missed != 1 || perClass["C0015967_koorts"].Strict.F1 != 1 {
		t.Errorf("Unexpected per-class results: %+v", perClass)
	}
}

func TestQualifierMetrics_Perfect(t *testing.T) {
	trueDS, predDS := pairedDatasets([]string{"Negated", "Affirmed"}, []string{"Negated", "Affirmed"})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	neg, ok := results["Negation"]
	if !ok {
		t.Fatal("Expected Negation result")
	}
	if neg.Metrics.N != 2 {
		t.Errorf("Expected n 2, got %d", neg.Metrics.N)
	}
	if neg.Metrics.Precision != 1 || neg.Metrics.Recall != 1 || neg.Metrics.F1 != 1 {
		t.Errorf("Expected perfect scores, got %+v", neg.Metrics)
	}
	if neg.Metrics.PositiveLabel != "Negated" {
		t.Errorf("Expected positive label Negated, got %q", neg.Metrics.PositiveLabel)
	}
	if len(neg.Misses) != 0 {
		t.Errorf("Expected no misses, got %+v", neg.Misses)
	}
}

func TestQualifierMetrics_Misses(t *testing.T) {
	trueDS, predDS := pairedDatasets(
		[]string{"Negated", "Negated", "Affirmed", "Affirmed"},
		[]string{"Negated", "Affirmed", "Negated", "Affirmed"},
	)

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	neg := results["Negation"]
	wantConfusion := Confusion{TP: 1, FP: 1, FN: 1, TN: 1}
	if diff := cmp.Diff(wantConfusion, neg.Metrics.Confusion); diff != "" {
		t.Errorf("confusion mismatch (-want +got):\n%s", diff)
	}
	if neg.Metrics.Precision != 0.5 || neg.Metrics.Recall != 0.5 || neg.Metrics.F1 != 0.5 {
		t.Errorf("Expected 0.5 scores, got %+v", neg.Metrics)
	}

	wantMisses := []Miss{
		{
			DocIdentifier: "b",
			Annotation:    annotation.MatchRecord{Text: "koorts", Start: 10, End: 16, Label: "C0015967_koorts"},
			Qualifier:     "Negation",
			TrueValue:     "Negated",
			PredValue:     "Affirmed",
		},
		{
			DocIdentifier: "c",
			Annotation:    annotation.MatchRecord{Text: "koorts", Start: 10, End: 16, Label: "C0015967_koorts"},
			Qualifier:     "Negation",
			TrueValue:     "Affirmed",
			PredValue:     "Negated",
		},
	}
	if diff := cmp.Diff(wantMisses, neg.Misses); diff != "" {
		t.Errorf("misses mismatch (-want +got):\n%s", diff)
	}
}

func TestQualifierMetrics_SkipsUnalignedSpans(t *testing.T) {
	trueDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "C0015967_koorts", negation("Negated")),
		ann("anemie", 10, 16, "C0002871_anemie", negation("Affirmed")),
	)})
	// The second annotation is shifted by one character and so is not aligned.
	predDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "C0002871_anemie", negation("Negated")),
		ann("nemie", 11, 16, "C0002871_anemie", negation("Negated")),
	)})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// Alignment ignores the label, so the first pair still counts.
	neg := results["Negation"]
	if neg.Metrics.N != 1 || len(neg.Misses) != 0 {
		t.Errorf("Expected one aligned pair without misses, got %+v", neg)
	}
}

func TestQualifierMetrics_SharedNamesOnly(t *testing.T) {
	experiencer := annotation.Qualifier{Name: "Experiencer", Value: "Patient", IsDefault: true, HasDefault: true}

	trueDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "L", negation("Negated"), experiencer),
	)})
	predDS := dataset.New([]*annotation.Document{doc("a",
		ann("koorts", 0, 6, "L", negation("Negated")),
	)})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := results["Experiencer"]; ok {
		t.Error("Expected Experiencer to be skipped when absent from pred")
	}
	if _, ok := results["Negation"]; !ok {
		t.Error("Expected Negation result")
	}
}

func TestQualifierMetrics_NonBinary(t *testing.T) {
	trueDS, predDS := pairedDatasets(
		[]string{"Negated", "Affirmed", "Affirmed"},
		[]string{"Negated", "Affirmed", "Possible"},
	)

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	_, err = m.QualifierMetrics()
	if !errors.Is(err, ErrNonBinaryQualifier) {
		t.Errorf("Expected ErrNonBinaryQualifier, got %v", err)
	}
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected error to wrap ErrInvalidInput, got %v", err)
	}
}

func TestQualifierMetrics_OnlyDefaultValues(t *testing.T) {
	trueDS, predDS := pairedDatasets([]string{"Affirmed", "Affirmed"}, []string{"Affirmed", "Affirmed"})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	neg := results["Negation"]
	if neg.Metrics.PositiveLabel != "" {
		t.Errorf("Expected no positive label, got %q", neg.Metrics.PositiveLabel)
	}
	if neg.Metrics.N != 2 || neg.Metrics.F1 != 0 || neg.Metrics.Confusion.TN != 2 {
		t.Errorf("Expected n 2, F1 0 and TN 2, got %+v", neg.Metrics)
	}
}

func TestQualifierMetrics_PredDefaultFallback(t *testing.T) {
	trueDS, predDS := pairedDatasets([]string{"Negated"}, []string{"Negated"})

	// Drop the true dataset's default so the pred one decides.
	delete(trueDS.DefaultQualifiers, "Negation")
	predDS.DefaultQualifiers["Negation"] = "Affirmed"

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	results, err := m.QualifierMetrics()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if results["Negation"].Metrics.PositiveLabel != "Negated" {
		t.Errorf("Expected positive label Negated, got %+v", results["Negation"].Metrics)
	}

	delete(predDS.DefaultQualifiers, "Negation")
	if _, err := m.QualifierMetrics(); !errors.Is(err, dataset.ErrMissingDefault) {
		t.Errorf("Expected ErrMissingDefault, got %v", err)
	}
}

func TestBinaryScores(t *testing.T) {
	tests := []struct {
		name     string
		trueVals []string
		predVals []string
		want     Confusion
		f1       float64
	}{
		{
			name:     "perfect",
			trueVals: []string{"Negated", "Affirmed"},
			predVals: []string{"Negated", "Affirmed"},
			want:     Confusion{TP: 1, TN: 1},
			f1:       1,
		},
		{
			name:     "no positive predictions",
			trueVals: []string{"Negated", "Affirmed"},
			predVals: []string{"Affirmed", "Affirmed"},
			want:     Confusion{FN: 1, TN: 1},
			f1:       0,
		},
		{
			name:     "empty",
			trueVals: nil,
			predVals: nil,
			want:     Confusion{},
			f1:       0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BinaryScores(tt.trueVals, tt.predVals, "Negated")
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("confusion mismatch (-want +got):\n%s", diff)
			}
			if got.F1() != tt.f1 {
				t.Errorf("Expected F1 %v, got %v", tt.f1, got.F1())
			}
		})
	}
}

func TestReport(t *testing.T) {
	trueDS, predDS := pairedDatasets([]string{"Negated", "Affirmed"}, []string{"Negated", "Negated"})

	m, err := New(trueDS, predDS)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	report, err := m.Report(nil, true)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Entities.Strict.F1 != 1 {
		t.Errorf("Expected strict F1 1, got %+v", report.Entities.Strict)
	}
	if _, ok := report.EntitiesPerLabel["C0015967_koorts"]; !ok {
		t.Error("Expected per-label entity results")
	}
	if len(report.Qualifiers["Negation"].Misses) != 1 {
		t.Errorf("Expected one Negation miss, got %+v", report.Qualifiers["Negation"].Misses)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Expected valid JSON, got %v", err)
	}
	for _, key := range []string{"entities", "entities_per_label", "qualifiers"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Expected key %q in report JSON", key)
		}
	}

	summary, err := m.Report(nil, false)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.EntitiesPerLabel != nil {
		t.Error("Expected no per-label results without perLabel")
	}
	if _, err := summary.Entities.Strategy(spaneval.StrategyExact); err != nil {
		t.Errorf("Expected exact strategy, got %v", err)
	}
}
