package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/pkg/core"
)

// NewSchemaCommand creates the schema command group.
func NewSchemaCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and manage table schemas",
	}
	cmd.AddCommand(newSchemaShowCommand())
	cmd.AddCommand(newSchemaCreateCommand())
	cmd.AddCommand(newSchemaDropCommand())
	return cmd
}

func newSchemaShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table>",
		Short: "Print the normalized schema of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := EnvFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ts, err := a.GetTableSchema(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderSchema(cmd, ts)
			return nil
		},
	}
}

func renderSchema(cmd *cobra.Command, ts *core.TableSchema) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Table: %s\n", ts.Name)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Column", "Type", "Nullable", "Default", "PK"})
	for _, col := range ts.Columns {
		pk := ""
		if col.PrimaryKey {
			pk = "✓"
		}
		t.AppendRow(table.Row{col.Position, col.Name, col.Type, col.Nullable, formatValue(col.Default), pk})
	}
	t.Render()

	for _, idx := range ts.Indexes {
		kind := "index"
		if idx.Unique {
			kind = "unique index"
		}
		fmt.Fprintf(w, "%s %s (%s)\n", kind, idx.Name, strings.Join(idx.Columns, ", "))
	}
	for _, fk := range ts.ForeignKeys {
		fmt.Fprintf(w, "foreign key %s (%s) -> %s (%s)\n",
			fk.Name, strings.Join(fk.Columns, ", "), fk.RefTable, strings.Join(fk.RefColumns, ", "))
	}
}

// tableDoc is the YAML document schema create reads.
type tableDoc struct {
	Name    string `koanf:"name"`
	Columns []struct {
		Name       string `koanf:"name"`
		Type       string `koanf:"type"`
		Length     int    `koanf:"length"`
		Nullable   bool   `koanf:"nullable"`
		Default    any    `koanf:"default"`
		PrimaryKey bool   `koanf:"primary_key"`
	} `koanf:"columns"`
	Indexes []struct {
		Name    string   `koanf:"name"`
		Columns []string `koanf:"columns"`
		Unique  bool     `koanf:"unique"`
	} `koanf:"indexes"`
	ForeignKeys []struct {
		Name       string   `koanf:"name"`
		Columns    []string `koanf:"columns"`
		RefTable   string   `koanf:"ref_table"`
		RefColumns []string `koanf:"ref_columns"`
		OnDelete   string   `koanf:"on_delete"`
	} `koanf:"foreign_keys"`
}

func (d *tableDoc) toSchema() *core.TableSchema {
	ts := &core.TableSchema{Name: d.Name}
	for i, c := range d.Columns {
		ts.Columns = append(ts.Columns, core.ColumnDef{
			Name:       c.Name,
			Type:       core.ColumnType(c.Type),
			Length:     c.Length,
			Nullable:   c.Nullable,
			Default:    c.Default,
			PrimaryKey: c.PrimaryKey,
			Position:   i + 1,
		})
	}
	for _, idx := range d.Indexes {
		ts.Indexes = append(ts.Indexes, core.IndexDef{Name: idx.Name, Columns: idx.Columns, Unique: idx.Unique})
	}
	for _, fk := range d.ForeignKeys {
		ts.ForeignKeys = append(ts.ForeignKeys, core.ForeignKeyDef{
			Name:       fk.Name,
			Columns:    fk.Columns,
			RefTable:   fk.RefTable,
			RefColumns: fk.RefColumns,
			OnDelete:   fk.OnDelete,
		})
	}
	return ts
}

func newSchemaCreateCommand() *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "create -f <table.yaml>",
		Short: "Create a table from a YAML definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if defFile == "" {
				return fmt.Errorf("a table definition file is required, use -f")
			}
			k := koanf.New(".")
			if err := k.Load(file.Provider(defFile), yaml.Parser()); err != nil {
				return fmt.Errorf("error reading table definition %s: %w", defFile, err)
			}
			var doc tableDoc
			if err := k.Unmarshal("", &doc); err != nil {
				return fmt.Errorf("unable to decode table definition: %w", err)
			}

			env, err := EnvFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.CreateTable(cmd.Context(), doc.toSchema()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s created\n", doc.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&defFile, "file", "f", "", "YAML table definition")
	return cmd
}

func newSchemaDropCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := EnvFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.DropTable(cmd.Context(), args[0], strict); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "table %s dropped\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when the table does not exist")
	return cmd
}
