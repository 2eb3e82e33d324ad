package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLockedCommand creates the locked command.
func NewLockedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locked <table>",
		Short: "Report whether a table holds rows",
		Long: `Report whether a table holds rows. Destructive schema edits are
refused on locked tables.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				locked, err := s.Engine.IsLocked(cmd.Context(), t)
				if err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintln(f.Writer, locked)
					return nil
				}
				return f.Success(map[string]any{"table": t.DisplayName, "locked": locked})
			})
		},
	}
}

// NewUnlockedCommand creates the unlocked command.
func NewUnlockedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "unlocked",
		Short:         "List tables that hold no rows",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				tables, err := s.Engine.FindUnlocked(cmd.Context(), s.Engine.Registry().Tables())
				if err != nil {
					return err
				}
				names := make([]string, len(tables))
				for i, t := range tables {
					names[i] = t.DisplayName
				}
				if f.Format == "text" {
					for _, name := range names {
						fmt.Fprintln(f.Writer, name)
					}
					return nil
				}
				return f.Success(map[string]any{"unlocked": names})
			})
		},
	}
}
