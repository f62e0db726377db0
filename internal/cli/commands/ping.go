package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewPingCommand creates the ping command.
func NewPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the target database is reachable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := EnvFrom(cmd.Context())
			if err != nil {
				return err
			}
			start := time.Now()
			a, err := env.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok (%s)\n", a.Dialect(), time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
