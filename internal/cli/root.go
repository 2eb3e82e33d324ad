// Package cli implements the dvaldb command tree.
package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "bson"
	ConfigPath string
	Driver     string
	DSN        string

	// session is set while a repl is running so every line shares one
	// connection and registry.
	session *Session
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "bson"}

// NewRootCommand creates the root command for the dvaldb CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Format: "text"})
}

// newRootCommand builds the tree over opts. Flag defaults are the current
// values of opts, so a tree rebuilt by the repl keeps the caller's settings.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dvaldb",
		Short: "dvaldb - Dval persistence engine",
		Long: `Store and query Dval objects in relational tables.

Tables are created from definitions, rows are inserted and fetched as
JSON objects, and relations between tables are followed on read.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", opts.Verbose, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", opts.Format, "output format (text|json|bson)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", opts.ConfigPath, "config file")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", opts.Driver, "store driver (sqlite3|postgres), overrides config")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", opts.DSN, "store DSN, overrides config")

	// Schema commands
	cmd.AddCommand(NewTablesCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewAddColumnCommand(opts))
	cmd.AddCommand(NewSetColumnCommand(opts))
	cmd.AddCommand(NewBeginMigrationCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))

	// Row commands
	cmd.AddCommand(NewInsertCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewTruncateCommand(opts))

	// Lock gate
	cmd.AddCommand(NewLockedCommand(opts))
	cmd.AddCommand(NewUnlockedCommand(opts))

	cmd.AddCommand(NewReplCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// newFormatter returns a formatter writing to the command's streams.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting structured output
		Verbose:   opts.Verbose,
	}
}
