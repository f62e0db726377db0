package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/pkg/adapter"
	"github.com/dataforge-labs/dbridge/pkg/core"
)

// NewTxCommand creates the tx command.
func NewTxCommand() *cobra.Command {
	var stmts []string

	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Run several statements in one transaction",
		Long: `Runs every -e statement on a single connection inside one transaction.
If any statement fails the whole transaction is rolled back.

  dbridge tx \
    -e "INSERT INTO {accounts} (name) VALUES (:a)" \
    -e "INSERT INTO {accounts} (name) VALUES (:b)"

Statements share no parameters; bind values inline or use separate exec calls
for parameterized work.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(stmts) == 0 {
				return fmt.Errorf("no statements given, use -e at least once")
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

			batch := make([]adapter.Statement, len(stmts))
			for i, s := range stmts {
				batch[i] = adapter.Statement{Template: s, Fetch: core.FetchNone}
			}
			results, err := a.ExecuteTransaction(cmd.Context(), batch)
			if err != nil {
				return err
			}
			var affected int64
			for _, r := range results {
				affected += r.RowsAffected
			}
			fmt.Fprintf(cmd.OutOrStdout(), "committed %d statement(s), %d row(s) affected\n", len(results), affected)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&stmts, "exec", "e", nil, "Statement template to run (repeatable, in order)")
	return cmd
}
