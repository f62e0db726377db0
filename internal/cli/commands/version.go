package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/pkg/dialect"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display dbridge version and the supported dialects.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dbridge v%s\n", version)
			for _, name := range dialect.List() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  dialect: %s\n", name)
			}
		},
	}
}
