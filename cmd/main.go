// Command idnorm normalizes identity exports against a target schema.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/safer-strategy/data-transformation-tool/internal/config"
)

var version = "dev"

// errFailed marks a command that already reported its problems.
var errFailed = errors.New("failed")

func main() {
	os.Exit(Execute())
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// globalFlags override configuration for every subcommand.
type globalFlags struct {
	config   string
	logLevel string
	schema   string
	store    string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "idnorm",
		Short:         "Normalize identity exports",
		Long:          "Map messy user, group, role and resource exports onto a canonical schema, resolve relationships and split valid from invalid records.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if flags.config != "" {
				return os.Setenv(config.EnvConfigFile, flags.config)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.config, "config", "", "YAML config file (overrides "+config.EnvConfigFile+")")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.schema, "schema", "", "schema YAML file (default: embedded schema)")
	rootCmd.PersistentFlags().StringVar(&flags.store, "store", "", "SQLite file for saved mappings and run history")

	rootCmd.AddCommand(
		newNormalizeCmd(flags),
		newCheckCmd(flags),
		newServeCmd(flags),
		newRunsCmd(flags),
		newGenerateCmd(),
		newSchemaCmd(flags),
	)
	return rootCmd
}
