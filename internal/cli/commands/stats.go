package commands

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the stats command.
func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Connect and print pool statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := EnvFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s := a.Stats()
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Metric", "Value"})
			t.AppendRow(table.Row{"max_size", s.MaxSize})
			t.AppendRow(table.Row{"open", s.Open})
			t.AppendRow(table.Row{"idle", s.Idle})
			t.AppendRow(table.Row{"in_use", s.InUse})
			t.AppendRow(table.Row{"waiting", s.Waiting})
			t.AppendRow(table.Row{"created", s.Created})
			t.AppendRow(table.Row{"destroyed", s.Destroyed})
			t.AppendRow(table.Row{"broken", s.Broken})
			t.Render()
			return nil
		},
	}
}
