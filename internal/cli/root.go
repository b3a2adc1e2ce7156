package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/clinmetrics/internal/cache"
	"github.com/ppiankov/clinmetrics/internal/logging"
	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/ppiankov/clinmetrics/internal/pipeline"
	"github.com/ppiankov/clinmetrics/pkg/importer"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is overridden at build time with -ldflags "-X ...cli.Version=..."
var Version = "0.1.0"

var (
	cfgFile      string
	verbose      bool
	noCache      bool
	noStrip      bool
	defaultQuals map[string]string

	cfg    *model.Config
	logger zerolog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "clinmetrics",
	Short: "clinmetrics - agreement metrics for clinical entity annotations",
	Long: `clinmetrics imports clinical entity annotations and measures how well
a prediction set agrees with a gold set.

Inputs are annotation tool exports (JSON) or NLP pipeline output (JSON lines).
Entities are scored under strict, exact, partial and ent_type span matching.
Qualifiers such as Negation or Experiencer are scored as binary labels on
annotations whose spans match exactly.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "clinmetrics v%s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: $HOME/.clinmetrics/config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output and debug logging")
	flags.String("format", model.FormatText, "output format (text, json, yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.BoolVar(&noCache, "no-cache", false, "disable the input file cache")
	flags.BoolVar(&noStrip, "no-strip", false, "keep leading and trailing cutset characters on export spans")
	flags.StringToStringVar(&defaultQuals, "default", nil, "default qualifier value, e.g. --default Negation=Affirmed (repeatable)")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("output.format", flags.Lookup("format"))
	_ = viper.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", flags.Lookup("log-format"))

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".clinmetrics"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// CLINMETRICS_OUTPUT_FORMAT maps to output.format
	viper.SetEnvPrefix("CLINMETRICS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults(model.DefaultConfig())

	_ = viper.ReadInConfig()
}

// setDefaults registers every key so environment variables can override
// keys that appear in no config file.
func setDefaults(d *model.Config) {
	viper.SetDefault("import.strip_spans", d.Import.StripSpans)
	viper.SetDefault("import.cutset", d.Import.Cutset)
	viper.SetDefault("import.max_file_bytes", d.Import.MaxFileBytes)
	viper.SetDefault("stats.max_spans", d.Stats.MaxSpans)
	viper.SetDefault("stats.max_labels", d.Stats.MaxLabels)
	viper.SetDefault("concurrency.workers", d.Concurrency.Workers)
	viper.SetDefault("cache.enabled", d.Cache.Enabled)
	viper.SetDefault("cache.ttl", d.Cache.TTL)
}

// loadConfig layers config file, environment and flags over the defaults
func loadConfig(cmd *cobra.Command) (*model.Config, error) {
	c := model.DefaultConfig()
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if noCache {
		c.Cache.Enabled = false
	}
	if noStrip {
		c.Import.StripSpans = false
	}
	if cmd.Flags().Changed("default") {
		c.DefaultQualifiers = defaultQuals
	}
	// Viper lowercases map keys read from config files.
	c.DefaultQualifiers = importer.NormalizeQualifiers(c.DefaultQualifiers)
	if c.Output.Verbose && !cmd.Flags().Changed("log-level") {
		c.Log.Level = "debug"
	}

	return c, nil
}

// setup loads the configuration and builds the logger for every command
func setup(cmd *cobra.Command, args []string) error {
	c, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	l, err := logging.New(cmd.ErrOrStderr(), c.Log.Level, c.Log.Format)
	if err != nil {
		return err
	}

	if file := viper.ConfigFileUsed(); file != "" {
		l.Debug().Str("file", file).Msg("using config file")
	}

	cfg, logger = c, l
	return nil
}

// newPipeline wires the cache and logger into a pipeline
func newPipeline() *pipeline.Pipeline {
	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewMemoryCache(cfg.Cache.TTL, time.Minute)
	}
	return pipeline.NewPipeline(cfg, c, logger)
}

// newRenderer builds the renderer for the configured output format
func newRenderer() (*pipeline.Renderer, error) {
	return pipeline.NewRenderer(cfg.Output.Format, cfg.Output.Verbose)
}
