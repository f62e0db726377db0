package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/translate"
)

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	var (
		params []string
		one    bool
		format string
	)

	cmd := &cobra.Command{
		Use:   "query <template>",
		Short: "Run a SELECT template and print the result",
		Long: `Runs one parameterized statement and prints the rows.

Templates use :name placeholders and {ident} identifier markers, which are
translated to the target dialect before execution:

  dbridge query 'SELECT * FROM {users} WHERE age > :min' -p min=30`,
		Args: cobra.ExactArgs(1),
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
			fetch := core.FetchAll
			if one {
				fetch = core.FetchOne
			}
			res, err := a.ExecuteQuery(cmd.Context(), args[0], bound, fetch)
			if err != nil {
				return err
			}
			return renderResult(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Bind a placeholder as name=value (repeatable)")
	cmd.Flags().BoolVar(&one, "one", false, "Fetch at most one row")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	return cmd
}

// parseParams converts name=value pairs into bound parameters, inferring the
// Go type from the value text. Quoting the value forces a string.
func parseParams(pairs []string) ([]translate.Param, error) {
	out := make([]translate.Param, 0, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q, want name=value", pair)
		}
		out = append(out, translate.Param{Name: name, Value: inferValue(raw)})
	}
	return out, nil
}

func inferValue(raw string) any {
	if len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'' {
		return raw[1 : len(raw)-1]
	}
	if raw == "null" {
		return nil
	}
	if b, err := strconv.ParseBool(raw); err == nil && (raw == "true" || raw == "false") {
		return b
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
