package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/pkg/core"
)

// NewExecCommand creates the exec command.
func NewExecCommand() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "exec <template>",
		Short: "Run a DML/DDL template and print the affected row count",
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

			bound, err := parseParams(params)
			if err != nil {
				return err
			}
			res, err := a.ExecuteQuery(cmd.Context(), args[0], bound, core.FetchNone)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", res.RowsAffected)
			if res.LastInsertID > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "last insert id: %d\n", res.LastInsertID)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Bind a placeholder as name=value (repeatable)")
	return cmd
}
