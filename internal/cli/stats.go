package cli

import (
	"context"
	"fmt"

	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statsInputFormat string

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Summarize the annotations of one input file",
	Long: `Stats imports one input file and reports:
- Number of documents and annotations
- Most frequent annotated spans and labels
- Value frequencies per qualifier and the default value of each

Example:
  clinmetrics stats export.json
  clinmetrics stats export.json --max-spans -1 --format yaml
  clinmetrics stats output.jsonl --input-format pipeline`,
	Args: cobra.ExactArgs(1),
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsInputFormat, "input-format", string(model.FormatExport), "input format (export, pipeline)")
	statsCmd.Flags().Int("max-spans", 0, "span counts to show, -1 for all (default from config)")
	statsCmd.Flags().Int("max-labels", 0, "label counts to show, -1 for all (default from config)")

	_ = viper.BindPFlag("stats.max_spans", statsCmd.Flags().Lookup("max-spans"))
	_ = viper.BindPFlag("stats.max_labels", statsCmd.Flags().Lookup("max-labels"))
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := model.ParseSourceFormat(statsInputFormat)
	if err != nil {
		return err
	}

	renderer, err := newRenderer()
	if err != nil {
		return err
	}

	src := model.Source{Path: args[0], Format: format}
	logger.Debug().Str("path", src.Path).Str("format", string(format)).Msg("computing statistics")

	report, err := newPipeline().Stats(context.Background(), src)
	if err != nil {
		return fmt.Errorf("stats: %w", err)
	}

	return renderer.Stats(cmd.OutOrStdout(), report)
}
