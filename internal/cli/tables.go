package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/dvaldb/internal/dval"
	"github.com/roach88/dvaldb/internal/schema"
	"github.com/roach88/dvaldb/internal/schemafile"
)

// TableInfo is the structured form of a table definition.
type TableInfo struct {
	Name       string       `json:"name" bson:"name"`
	ActualName string       `json:"actual_name" bson:"actual_name"`
	Version    int          `json:"version" bson:"version"`
	Columns    []ColumnInfo `json:"columns" bson:"columns"`
	Migration  string       `json:"migration,omitempty" bson:"migration,omitempty"`
}

// ColumnInfo is one live column.
type ColumnInfo struct {
	Name string `json:"name" bson:"name"`
	Type string `json:"type" bson:"type"`
}

func tableInfo(t schema.Table) TableInfo {
	info := TableInfo{
		Name:       t.DisplayName,
		ActualName: t.ActualName,
		Version:    t.Version,
		Columns:    []ColumnInfo{},
	}
	for _, c := range t.LiveColumns() {
		info.Columns = append(info.Columns, ColumnInfo{Name: c.Name, Type: c.Type.String()})
	}
	if m := t.ActiveMigration; m != nil {
		info.Migration = fmt.Sprintf("%s on slot %d since v%d", m.Kind, m.Target, m.StartingVersion)
	}
	return info
}

func (i TableInfo) String() string {
	cols := make([]string, len(i.Columns))
	for j, c := range i.Columns {
		cols[j] = c.Name + ":" + c.Type
	}
	s := fmt.Sprintf("%s (%s, v%d) %s", i.Name, i.ActualName, i.Version, strings.Join(cols, " "))
	if i.Migration != "" {
		s += " [migration: " + i.Migration + "]"
	}
	return strings.TrimSpace(s)
}

// NewTablesCommand creates the tables command.
func NewTablesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "tables",
		Short:         "List table definitions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				tables := s.Engine.Registry().Tables()
				infos := make([]TableInfo, len(tables))
				for i, t := range tables {
					infos[i] = tableInfo(t)
				}
				if f.Format == "text" {
					for _, info := range infos {
						fmt.Fprintln(f.Writer, info)
					}
					return nil
				}
				return f.Success(infos)
			})
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Host string
	File string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create [<table> <column:Type>...]",
		Short: "Create tables",
		Long: `Create a table from column arguments, or every missing table of a
CUE or YAML schema file.

Example:
  dvaldb create Person name:Str age:Int
  dvaldb create Post title:Str author:Person comments:[Comment]
  dvaldb create --file schema.cue`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				return runCreate(opts, s, f, cmd, args)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "host recorded on the table")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "CUE or YAML schema file")

	return cmd
}

func runCreate(opts *CreateOptions, s *Session, f *OutputFormatter, cmd *cobra.Command, args []string) error {
	if opts.File != "" {
		if len(args) > 0 {
			return NewExitError(ExitCommandError, "create takes either --file or column arguments")
		}
		created, err := s.ApplySchemaFile(cmd.Context(), opts.File)
		if err != nil {
			return err
		}
		f.VerboseLog("Loaded %s", opts.File)
		if f.Format == "text" {
			fmt.Fprintf(f.Writer, "✓ Created %d table(s)\n", len(created))
			for _, name := range created {
				fmt.Fprintf(f.Writer, "  %s\n", name)
			}
			return nil
		}
		return f.Success(map[string]any{"created": created})
	}

	if len(args) == 0 {
		return NewExitError(ExitCommandError, "create needs a table name or --file")
	}
	def := schemafile.Definition{Name: args[0], Host: opts.Host}
	for _, arg := range args[1:] {
		col, err := parseColumnArg(arg)
		if err != nil {
			return err
		}
		def.Columns = append(def.Columns, col)
	}

	t, err := s.Engine.CreateTable(cmd.Context(), def.Table(uuid.New(), s.Engine.HoleIDs().Next))
	if err != nil {
		return err
	}
	if f.Format == "text" {
		fmt.Fprintf(f.Writer, "✓ Created %s\n", tableInfo(t))
		return nil
	}
	return f.Success(tableInfo(t))
}

// parseColumnArg parses "name:Type".
func parseColumnArg(arg string) (schemafile.Column, error) {
	name, typ, ok := strings.Cut(arg, ":")
	if !ok || name == "" {
		return schemafile.Column{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid column %q: want name:Type", arg))
	}
	tipe, err := dval.ParseTipe(typ)
	if err != nil {
		return schemafile.Column{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid column %q", arg), err)
	}
	return schemafile.Column{Name: name, Type: tipe}, nil
}

// NewAddColumnCommand creates the add-column command.
func NewAddColumnCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add-column <table> <name> [type]",
		Short: "Add a column to a table",
		Long: `Add a column to a table. A column without a type is recorded but has no
physical column until set-column gives it one.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				nameID, typeID := s.Engine.HoleIDs().Next(), s.Engine.HoleIDs().Next()
				edits := []schema.Edit{
					schema.EditAddColumn(nameID, typeID),
					schema.EditSetColumnName(nameID, args[1]),
				}
				if len(args) == 3 {
					tipe, err := dval.ParseTipe(args[2])
					if err != nil {
						return WrapExitError(ExitCommandError, "invalid type", err)
					}
					edits = append(edits, schema.EditSetColumnType(typeID, tipe))
				}
				t, err := s.Engine.EditSchema(cmd.Context(), args[0], schema.Chain(edits...))
				if err != nil {
					return err
				}
				return outputTable(f, t)
			})
		},
	}
}

// SetColumnOptions holds flags for the set-column command.
type SetColumnOptions struct {
	*RootOptions
	Rename string
	Type   string
}

// NewSetColumnCommand creates the set-column command.
func NewSetColumnCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetColumnOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set-column <table> <column>",
		Short: "Rename a column or change its type",
		Long: `Rename a column or change its type.

Changing the type of a column on a table that holds rows is refused;
open a migration with begin-migration instead.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				return runSetColumn(opts, s, f, cmd, args[0], args[1])
			})
		},
	}

	cmd.Flags().StringVar(&opts.Rename, "rename", "", "new column name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "new column type")

	return cmd
}

func runSetColumn(opts *SetColumnOptions, s *Session, f *OutputFormatter, cmd *cobra.Command, table, column string) error {
	if opts.Rename == "" && opts.Type == "" {
		return NewExitError(ExitCommandError, "set-column needs --rename or --type")
	}
	t, err := s.Engine.Table(table)
	if err != nil {
		return err
	}
	col, ok := t.ColumnNamed(column)
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("table %s has no column %q", t.DisplayName, column))
	}

	var edits []schema.Edit
	if opts.Type != "" {
		tipe, err := dval.ParseTipe(opts.Type)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid type", err)
		}
		if col.Type.IsFull() {
			edits = append(edits, schema.EditChangeColumnType(col.Type.ID(), tipe))
		} else {
			edits = append(edits, schema.EditSetColumnType(col.Type.ID(), tipe))
		}
	}
	if opts.Rename != "" {
		edits = append(edits, schema.EditChangeColumnName(col.Name.ID(), opts.Rename))
	}

	t, err = s.Engine.EditSchema(cmd.Context(), table, schema.Chain(edits...))
	if err != nil {
		return err
	}
	return outputTable(f, t)
}

// NewBeginMigrationCommand creates the begin-migration command.
func NewBeginMigrationCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "begin-migration <table> <column>",
		Short: "Open a type-change migration on a column",
		Long: `Open a type-change migration on a column. The migration records the
table version it started from and two empty conversion slots. A table
has at most one open migration.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.Table(args[0])
				if err != nil {
					return err
				}
				col, ok := t.ColumnNamed(args[1])
				if !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("table %s has no column %q", t.DisplayName, args[1]))
				}
				holes := s.Engine.HoleIDs()
				t, err = s.Engine.BeginMigration(cmd.Context(), args[0], schema.ChangeColType, col.Type.ID(), holes.Next(), holes.Next())
				if err != nil {
					return err
				}
				return outputTable(f, t)
			})
		},
	}
}

func outputTable(f *OutputFormatter, t schema.Table) error {
	if f.Format == "text" {
		fmt.Fprintf(f.Writer, "✓ %s\n", tableInfo(t))
		return nil
	}
	return f.Success(tableInfo(t))
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop an empty table",
		Long: `Drop a table's physical table and catalog entry.

Tables holding rows are locked and must be truncated first. A table that
another table relates to cannot be dropped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithSession(rootOpts, cmd, func(s *Session, f *OutputFormatter) error {
				t, err := s.Engine.DropTable(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if f.Format == "text" {
					fmt.Fprintf(f.Writer, "✓ Dropped %s\n", t.DisplayName)
					return nil
				}
				return f.Success(map[string]any{"dropped": t.DisplayName})
			})
		},
	}
}
