package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
)

// parseObject parses a JSON object argument and coerces it against t.
func parseObject(s *Session, t schema.Table, arg string) (dval.DObj, error) {
	v, err := dval.FromJSON([]byte(arg))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid JSON", err)
	}
	obj, ok := v.(dval.DObj)
	if !ok {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("expected a JSON object, got %s", dval.TipeOf(v)))
	}
	return s.Engine.Coerce(t, obj)
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <table> <json>",
		Short: "Insert a row",
		Long: `Insert a row from a JSON object and print its new id. Nested objects
under relation columns are inserted into the related table, or updated
when they carry an id.

Example:
  dvaldb insert Post '{"title":"Hello","author":{"name":"Ada"}}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				fields, err := parseObject(s, t, args[1])
				if err != nil {
					return err
				}
				id, err := s.Engine.Insert(cmd.Context(), t, fields)
				if err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintln(f.Writer, id)
					return nil
				}
				return f.Success(map[string]any{"id": id.String()})
			})
		},
	}
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <table> <json>",
		Short: "Update a row by id",
		Long: `Update the row identified by the object's "id" field. Only the given
fields are written.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				fields, err := parseObject(s, t, args[1])
				if err != nil {
					return err
				}
				if err := s.Engine.Update(cmd.Context(), t, fields); err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintln(f.Writer, "✓ Updated")
					return nil
				}
				return f.Success(map[string]any{"updated": true})
			})
		},
	}
}

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	By    string
	Value string
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <table>",
		Short: "Fetch rows",
		Long: `Fetch every row of a table, or the rows whose column equals a value.
Relations are resolved into nested objects.

Example:
  dvaldb fetch Person --by name --value '"Ada"'
  dvaldb fetch Post --format bson > posts.bson`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				return runFetch(opts, s, f, cmd, args[0])
			})
		},
	}

	cmd.Flags().StringVar(&opts.By, "by", "", "column to match")
	cmd.Flags().StringVar(&opts.Value, "value", "", "JSON value the column must equal")

	return cmd
}

func runFetch(opts *FetchOptions, s *Session, f *OutputFormatter, cmd *cobra.Command, table string) error {
	t, err := s.Engine.Table(table)
	if err != nil {
		return err
	}
	if opts.By == "" {
		rows, err := s.Engine.FetchAll(cmd.Context(), t)
		if err != nil {
			return err
		}
		return f.Rows(rows)
	}

	v, err := dval.FromJSON([]byte(opts.Value))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --value JSON", err)
	}
	coerced, err := s.Engine.Coerce(t, dval.DObj{opts.By: v})
	if err != nil {
		return err
	}
	rows, err := s.Engine.FetchBy(cmd.Context(), t, opts.By, coerced[opts.By])
	if err != nil {
		return err
	}
	return f.Rows(rows)
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "count <table>",
		Short:         "Count rows",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				n, err := s.Engine.Count(cmd.Context(), t)
				if err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintln(f.Writer, n)
					return nil
				}
				return f.Success(map[string]any{"count": n})
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <table> <id>",
		Short:         "Delete a row by id",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				id, err := uuid.Parse(args[1])
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid id", err)
				}
				if err := s.Engine.Delete(cmd.Context(), t, dval.DObj{schema.IDColumn: dval.NewID(id)}); err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintf(f.Writer, "✓ Deleted %s\n", id)
					return nil
				}
				return f.Success(map[string]any{"deleted": id.String()})
			})
		},
	}
}

// NewTruncateCommand creates the truncate command.
func NewTruncateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "truncate <table>",
		Short:         "Delete every row of a table",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				if err := s.Engine.DeleteAll(cmd.Context(), t); err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintf(f.Writer, "✓ Truncated %s\n", t.DisplayName)
					return nil
				}
				return f.Success(map[string]any{"truncated": t.DisplayName})
			})
		},
	}
}
