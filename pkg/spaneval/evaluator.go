// Package spaneval scores predicted entity spans against true spans under
// four matching strategies: strict, exact, partial and ent_type.
package spaneval

import (
	"errors"
	"fmt"

	"github.com/ppiankov/clinmetrics/pkg/annotation"
	"github.com/samber/lo"
)

// Strategy names.
const (
	StrategyStrict  = "strict"
	StrategyExact   = "exact"
	StrategyPartial = "partial"
	StrategyEntType = "ent_type"
)

// ErrDocumentCountMismatch is returned when True and Pred hold a different
// number of documents.
var ErrDocumentCountMismatch = errors.New("true and pred document counts differ")

// ErrUnknownStrategy is returned by Results.Strategy.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategies lists the strategy names in report order.
func Strategies() []string {
	return []string{StrategyStrict, StrategyExact, StrategyPartial, StrategyEntType}
}

// Result holds the counts and scores of one strategy.
type Result struct {
	Correct   int     `json:"correct" yaml:"correct"`
	Incorrect int     `json:"incorrect" yaml:"incorrect"`
	Partial   int     `json:"partial" yaml:"partial"`
	Missed    int     `json:"missed" yaml:"missed"`
	Spurious  int     `json:"spurious" yaml:"spurious"`
	Possible  int     `json:"possible" yaml:"possible"`
	Actual    int     `json:"actual" yaml:"actual"`
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
}

// Results holds one Result per strategy.
type Results struct {
	Strict  Result `json:"strict" yaml:"strict"`
	Exact   Result `json:"exact" yaml:"exact"`
	Partial Result `json:"partial" yaml:"partial"`
	EntType Result `json:"ent_type" yaml:"ent_type"`
}

// Strategy returns the result for a strategy name.
func (r Results) Strategy(name string) (Result, error) {
	switch name {
	case StrategyStrict:
		return r.Strict, nil
	case StrategyExact:
		return r.Exact, nil
	case StrategyPartial:
		return r.Partial, nil
	case StrategyEntType:
		return r.EntType, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// outcome is how one prediction or true entity counts under each strategy.
type outcome struct {
	strict, exact, partial, entType kind
}

type kind int

const (
	correct kind = iota
	incorrect
	partial
	missed
	spurious
)

var (
	allCorrect  = outcome{correct, correct, correct, correct}
	allSpurious = outcome{spurious, spurious, spurious, spurious}
	allMissed   = outcome{missed, missed, missed, missed}

	// Same boundaries, different label.
	wrongLabel = outcome{strict: incorrect, exact: correct, partial: correct, entType: incorrect}
	// Overlapping boundaries, same label.
	overlapSameLabel = outcome{strict: incorrect, exact: incorrect, partial: partial, entType: correct}
	// Overlapping boundaries, different label.
	overlapWrongLabel = outcome{strict: incorrect, exact: incorrect, partial: partial, entType: incorrect}
)

func (r *Result) add(k kind) {
	switch k {
	case correct:
		r.Correct++
	case incorrect:
		r.Incorrect++
	case partial:
		r.Partial++
	case missed:
		r.Missed++
	case spurious:
		r.Spurious++
	}
}

func (r *Results) add(o outcome) {
	r.Strict.add(o.strict)
	r.Exact.add(o.exact)
	r.Partial.add(o.partial)
	r.EntType.add(o.entType)
}

// finish derives possible, actual, precision, recall and F1 from the counts.
func (r *Result) finish(creditPartial bool) {
	r.Possible = r.Correct + r.Incorrect + r.Partial + r.Missed
	r.Actual = r.Correct + r.Incorrect + r.Partial + r.Spurious

	hits := float64(r.Correct)
	if creditPartial {
		hits += 0.5 * float64(r.Partial)
	}

	r.Precision = ratio(hits, r.Actual)
	r.Recall = ratio(hits, r.Possible)
	if r.Precision+r.Recall > 0 {
		r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
	} else {
		r.F1 = 0
	}
}

func (r *Results) finish() {
	r.Strict.finish(false)
	r.Exact.finish(false)
	r.Partial.finish(true)
	r.EntType.finish(true)
}

func ratio(num float64, den int) float64 {
	if den == 0 {
		return 0
	}
	return num / float64(den)
}

// Evaluator compares per-document span lists. True[i] and Pred[i] belong to
// the same document. Entities whose label is not in Labels are ignored.
type Evaluator struct {
	True   [][]annotation.MatchRecord
	Pred   [][]annotation.MatchRecord
	Labels []string
}

// NewEvaluator creates an evaluator.
func NewEvaluator(trueDocs, predDocs [][]annotation.MatchRecord, labels []string) *Evaluator {
	return &Evaluator{True: trueDocs, Pred: predDocs, Labels: labels}
}

// Evaluate returns the overall results and the results per label.
func (e *Evaluator) Evaluate() (Results, map[string]Results, error) {
	if len(e.True) != len(e.Pred) {
		return Results{}, nil, fmt.Errorf("%w: %d true, %d pred", ErrDocumentCountMismatch, len(e.True), len(e.Pred))
	}

	labels := lo.SliceToMap(e.Labels, func(l string) (string, bool) { return l, true })

	var overall Results
	perLabel := make(map[string]*Results, len(e.Labels))
	for _, l := range e.Labels {
		perLabel[l] = &Results{}
	}

	record := func(label string, o outcome) {
		overall.add(o)
		perLabel[label].add(o)
	}

	for i := range e.True {
		keep := func(m annotation.MatchRecord, _ int) bool { return labels[m.Label] }
		evaluateDocument(lo.Filter(e.True[i], keep), lo.Filter(e.Pred[i], keep), record)
	}

	overall.finish()
	out := make(map[string]Results, len(perLabel))
	for l, r := range perLabel {
		r.finish()
		out[l] = *r
	}

	return overall, out, nil
}

// evaluateDocument classifies every prediction and every unmatched true
// entity of one document.
func evaluateDocument(trueEnts, predEnts []annotation.MatchRecord, record func(string, outcome)) {
	matched := make([]bool, len(trueEnts))

	for _, pred := range predEnts {
		if i, ok := findExact(trueEnts, pred); ok {
			matched[i] = true
			record(pred.Label, allCorrect)
			continue
		}

		found := false
		for i, t := range trueEnts {
			if t.Start == pred.Start && t.End == pred.End {
				matched[i] = true
				record(t.Label, wrongLabel)
				found = true
				break
			}

			// The first overlapping true entity decides, even if an
			// earlier prediction already matched it.
			if overlaps(t, pred) {
				matched[i] = true
				if t.Label == pred.Label {
					record(t.Label, overlapSameLabel)
				} else {
					record(t.Label, overlapWrongLabel)
				}
				found = true
				break
			}
		}

		if !found {
			record(pred.Label, allSpurious)
		}
	}

	for i, t := range trueEnts {
		if !matched[i] {
			record(t.Label, allMissed)
		}
	}
}

func findExact(ents []annotation.MatchRecord, m annotation.MatchRecord) (int, bool) {
	for i, e := range ents {
		if e.Start == m.Start && e.End == m.End && e.Label == m.Label {
			return i, true
		}
	}
	return -1, false
}

// overlaps reports whether two half-open spans share at least one offset.
func overlaps(a, b annotation.MatchRecord) bool {
	return a.Start < b.End && b.Start < a.End
}
