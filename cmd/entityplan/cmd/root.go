package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile      string
	logLevel     string
	logFormat    string
	storeBackend string
	schemaPath   string
	workers      int
)

var rootCmd = &cobra.Command{
	Use:   "entityplan",
	Short: "Deterministic identifier planner for knowledge-base ingestion",
	Long: `entityplan assigns stable, deterministic identifiers to every entity,
facet and relationship node derived from a batch of typed records.

Identifiers are derived from record content, so re-running the same batch
yields the same identifiers, and unchanged records keep theirs across runs.
The previous plan is kept in a plan store (file, MySQL or Redis) and only
new, changed and invalidated records are re-derived.`,
	Version:      Version,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "entityplan.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Planning overrides
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "",
		"Override plan store backend (memory, file, mysql, redis)")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "",
		"Override schema description file")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0,
		"Override number of fingerprinting workers (0 keeps the configured value)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides struct {
	LogLevel  string
	LogFormat string
	Store     string
	Schema    string
	Workers   int
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() CLIOverrides {
	return CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Store:     storeBackend,
		Schema:    schemaPath,
		Workers:   workers,
	}
}
