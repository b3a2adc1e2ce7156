package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/clinmetrics/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const configHierarchy = `Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (CLINMETRICS_*, e.g. CLINMETRICS_OUTPUT_FORMAT=json)
  3. Config file (~/.clinmetrics/config.yaml)
  4. Defaults
`

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage clinmetrics configuration",
	Long:  "Manage clinmetrics configuration files and settings.\n\n" + configHierarchy,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after applying defaults, config file, environment variables and flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", file)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		fmt.Fprintln(out, string(yamlData))
		fmt.Fprint(cmd.ErrOrStderr(), configHierarchy)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.clinmetrics/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".clinmetrics", "config.yaml")
		if cfgFile != "" {
			configPath = cfgFile
		}

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "✓ Created default configuration: %s\n", configPath)
		fmt.Fprintf(out, "\nTo view the configuration:\n")
		fmt.Fprintf(out, "  clinmetrics config show\n")
		return nil
	},
}

// writeDefaultConfig writes the defaults as commented YAML. It refuses to
// overwrite an existing file.
func writeDefaultConfig(configPath string) (err error) {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'clinmetrics config show' to view it, or delete it first to recreate", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	printf := func(format string, a ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(f, format, a...)
	}

	printf("# clinmetrics configuration file\n")
	printf("#\n")
	for _, line := range []string{
		"Configuration hierarchy (highest to lowest priority):",
		"  1. CLI flags",
		"  2. Environment variables (CLINMETRICS_*)",
		"  3. This config file",
		"  4. Built-in defaults",
	} {
		printf("# %s\n", line)
	}
	printf("\n")

	yamlData, mErr := yaml.Marshal(model.DefaultConfig())
	if mErr != nil {
		return fmt.Errorf("error marshaling config: %w", mErr)
	}
	printf("%s", yamlData)

	printf("\n# Fix default qualifier values instead of inferring them from majority counts:\n")
	printf("# default_qualifiers:\n")
	printf("#   Negation: Affirmed\n")
	printf("#   Experiencer: Patient\n")

	return err
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
