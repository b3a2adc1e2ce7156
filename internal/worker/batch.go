package worker

import (
	"context"
	"fmt"

	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/ppiankov/clinmetrics/internal/pipeline"
)

// Comparer scores one prediction set against a gold set
type Comparer interface {
	Compare(ctx context.Context, gold, pred model.Source, opts pipeline.CompareOptions) (*model.CompareReport, error)
}

// CompareJob represents one gold/prediction comparison
type CompareJob struct {
	Index    int
	Gold     model.Source
	Pred     model.Source
	Options  pipeline.CompareOptions
	Comparer Comparer
}

// Execute runs the comparison
func (j *CompareJob) Execute(ctx context.Context) Result {
	report, err := j.Comparer.Compare(ctx, j.Gold, j.Pred, j.Options)
	return &CompareResult{
		Index:  j.Index,
		Pred:   j.Pred,
		Report: report,
		Error:  err,
	}
}

// CompareResult represents the result of a compare job
type CompareResult struct {
	Index  int
	Pred   model.Source
	Report *model.CompareReport
	Error  error
}

// GetError returns the error from the compare result
func (r *CompareResult) GetError() error {
	return r.Error
}

// BatchProcessor scores several prediction sets against one gold set concurrently
type BatchProcessor struct {
	comparer    Comparer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(comparer Comparer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		comparer:    comparer,
		concurrency: concurrency,
	}
}

// CompareAll returns one result per prediction set, in input order. A job
// that never ran because ctx ended carries the context error.
func (b *BatchProcessor) CompareAll(ctx context.Context, gold model.Source, preds []model.Source, opts pipeline.CompareOptions) []*CompareResult {
	if len(preds) == 0 {
		return []*CompareResult{}
	}

	pool := NewPool(ctx, min(b.concurrency, len(preds)))
	pool.Start()

	for i, pred := range preds {
		job := &CompareJob{
			Index:    i,
			Gold:     gold,
			Pred:     pred,
			Options:  opts,
			Comparer: b.comparer,
		}
		if err := pool.Submit(job); err != nil {
			break
		}
	}

	results := pool.Wait()

	out := make([]*CompareResult, len(preds))
	for _, result := range results {
		r := result.(*CompareResult)
		out[r.Index] = r
	}
	for i, r := range out {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = ErrPoolClosed
			}
			out[i] = &CompareResult{Index: i, Pred: preds[i], Error: fmt.Errorf("not run: %w", err)}
		}
	}

	return out
}
