// Package cmd provides the command-line interface for srcanalyze with
// configuration management supporting multiple configuration sources.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with clear precedence:
//	1. Command-line flags (--src, --out, --workers, etc.) - highest priority
//	2. SRCANALYZE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SRCANALYZE_WORKERS, etc.)
//	4. Configuration files (.srcanalyze.yml) - lowest priority
//
// Environment Variables:
//
//	SRCANALYZE_CONFIG_FILE: Path to custom configuration file
//	SRCANALYZE_SOURCE_ROOT: Override the source root
//	SRCANALYZE_ANALYSIS_DIR: Override the analysis output directory
//	SRCANALYZE_TOOLS_JAVA_JDK_PATH: Override the JDK location
//	And many more following the SRCANALYZE_<SECTION>_<OPTION> pattern
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/srcanalyze/internal/config"
	"github.com/conneroisu/srcanalyze/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "srcanalyze",
	Short: "Incremental source analysis scheduler for C/C++ and Java trees",
	Long: `srcanalyze walks a source tree, finds every C/C++ and Java file whose
analysis artifact is missing or older than the source, and runs the matching
external analyzer for each one on a pool of workers.

Quick Start:
  srcanalyze analyze --src ./src --out ./analysis   Analyze stale files once
  srcanalyze watch --src ./src --out ./analysis     Re-analyze on change
  srcanalyze config show                            Show effective configuration

Command Aliases (for faster typing):
  analyze (a), watch (w)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .srcanalyze.yml, can also use SRCANALYZE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag: Explicitly specified config file path
//  2. SRCANALYZE_CONFIG_FILE environment variable: Custom config file path
//  3. Default: .srcanalyze.yml in current directory
//
// Every key can also be set through the environment with the SRCANALYZE_
// prefix, nested keys joined by underscores (SRCANALYZE_TOOLS_BIN_DIR).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SRCANALYZE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".srcanalyze")
	}

	viper.SetEnvPrefix("SRCANALYZE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing config file is not an error; defaults and flags still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the structured logger described by cfg.Log.
func newLogger(cfg *config.Config, out io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    out,
		Component: "cli",
	}), nil
}

// commandContext returns the command's context, or a background context when
// the command is invoked outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
