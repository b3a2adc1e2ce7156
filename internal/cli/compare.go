package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/ppiankov/clinmetrics/internal/pipeline"
	"github.com/ppiankov/clinmetrics/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	truePath         string
	predPaths        []string
	trueFormat       string
	predFormat       string
	perLabel         bool
	filterNonDefault bool
	compareTimeout   time.Duration
)

// compareCmd represents the compare command
var compareCmd = &cobra.Command{
	Use:   "compare --true <gold> --pred <file> [--pred <file> ...]",
	Short: "Score prediction sets against a gold set",
	Long: `Compare scores one or more prediction sets against the same gold set:
- Entity spans under strict, exact, partial and ent_type matching
- Binary precision, recall and F1 per qualifier on exactly aligned spans
- Qualifier disagreements listed as misses (shown with --verbose)

Prediction sets are scored in parallel; reports are printed in input order.
Documents pair by position and must carry the same identifiers.

Example:
  clinmetrics compare --true gold.json --pred model.jsonl --pred-format pipeline
  clinmetrics compare --true gold.json --pred a.json --pred b.json --per-label
  clinmetrics compare --true gold.json --pred a.json --filter-non-default --format json`,
	Args: cobra.NoArgs,
	RunE: runCompare,
}

func init() {
	rootCmd.AddCommand(compareCmd)

	compareCmd.Flags().StringVar(&truePath, "true", "", "gold input file")
	compareCmd.Flags().StringArrayVar(&predPaths, "pred", nil, "prediction input file (repeatable)")
	compareCmd.Flags().StringVar(&trueFormat, "true-format", string(model.FormatExport), "gold input format (export, pipeline)")
	compareCmd.Flags().StringVar(&predFormat, "pred-format", string(model.FormatExport), "prediction input format (export, pipeline)")
	compareCmd.Flags().BoolVar(&perLabel, "per-label", false, "add entity metrics per label")
	compareCmd.Flags().BoolVar(&filterNonDefault, "filter-non-default", false, "score only entities with a non-default qualifier value")
	compareCmd.Flags().Int("workers", 0, "number of concurrent comparisons (default from config)")
	compareCmd.Flags().DurationVar(&compareTimeout, "timeout", 10*time.Minute, "total timeout")

	_ = compareCmd.MarkFlagRequired("true")
	_ = compareCmd.MarkFlagRequired("pred")
	_ = viper.BindPFlag("concurrency.workers", compareCmd.Flags().Lookup("workers"))
}

func runCompare(cmd *cobra.Command, args []string) error {
	goldFormat, err := model.ParseSourceFormat(trueFormat)
	if err != nil {
		return fmt.Errorf("--true-format: %w", err)
	}
	pFormat, err := model.ParseSourceFormat(predFormat)
	if err != nil {
		return fmt.Errorf("--pred-format: %w", err)
	}

	renderer, err := newRenderer()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), compareTimeout)
	defer cancel()

	gold := model.Source{Path: truePath, Format: goldFormat}
	preds := make([]model.Source, len(predPaths))
	for i, path := range predPaths {
		preds[i] = model.Source{Path: path, Format: pFormat}
	}

	logger.Info().
		Str("true", gold.Path).
		Int("pred_sets", len(preds)).
		Int("workers", cfg.Concurrency.Workers).
		Msg("comparing")

	processor := worker.NewBatchProcessor(newPipeline(), cfg.Concurrency.Workers)
	results := processor.CompareAll(ctx, gold, preds, pipeline.CompareOptions{
		PerLabel:   perLabel,
		NonDefault: filterNonDefault,
	})

	var (
		reports []*model.CompareReport
		errs    []error
	)
	for _, res := range results {
		if res.Error != nil {
			logger.Error().Err(res.Error).Str("pred", res.Pred.Path).Msg("comparison failed")
			errs = append(errs, fmt.Errorf("%s: %w", res.Pred.Path, res.Error))
			continue
		}
		reports = append(reports, res.Report)
	}

	if len(reports) > 0 {
		if err := renderer.Compare(cmd.OutOrStdout(), reports); err != nil {
			return fmt.Errorf("render: %w", err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d comparisons failed: %w", len(errs), len(results), errors.Join(errs...))
	}
	return nil
}
