package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/srcanalyze/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect srcanalyze configuration",
	Long: `Inspect srcanalyze configuration files and settings.

Examples:
  srcanalyze config show                          # Show effective configuration
  srcanalyze config validate                      # Validate current configuration
  srcanalyze config validate --file ci.yml        # Validate a specific file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after loading the config file, applying
SRCANALYZE_ environment overrides and filling defaults, as YAML.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a srcanalyze configuration file.

This command checks for:
- Worker counts and artifact extension format
- Empty or malformed analyzer tool names
- Missing tool and JDK directories
- Components that cannot own any file`,
	RunE: runConfigValidate,
}

var (
	configFile   string
	configStrict bool
)

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().
		StringVarP(&configFile, "file", "f", "", "Configuration file to validate (default: the loaded config)")
	configValidateCmd.Flags().BoolVar(&configStrict, "strict", false, "Treat warnings as errors")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return writeConfigYAML(cmd.OutOrStdout(), cfg)
}

func writeConfigYAML(w io.Writer, cfg *config.Config) error {
	fmt.Fprintln(w, "# Effective srcanalyze configuration")
	fmt.Fprintln(w, "# Resolved from all sources (file, env vars, defaults)")

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	return enc.Close()
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return fmt.Errorf("configuration file %s does not exist", configFile)
		}
		v = viper.New()
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file: %w", err)
		}
	}

	config.SetDefaults(v)
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	return reportValidation(cmd.OutOrStdout(), config.ValidateConfig(&cfg), configStrict)
}

func reportValidation(w io.Writer, result *config.ValidationResult, strict bool) error {
	if !result.HasErrors() && !result.HasWarnings() {
		fmt.Fprintln(w, "Configuration is valid.")
		return nil
	}

	fmt.Fprint(w, result.String())

	if result.HasErrors() {
		return fmt.Errorf("configuration validation failed with %d errors", len(result.Errors))
	}
	if strict {
		return fmt.Errorf("configuration validation failed in strict mode with %d warnings", len(result.Warnings))
	}
	fmt.Fprintf(w, "Configuration is valid with %d warnings. Use --strict to treat warnings as errors.\n",
		len(result.Warnings))
	return nil
}
