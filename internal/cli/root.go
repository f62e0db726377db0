// Package cli provides the command-line interface for dbridge.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataforge-labs/dbridge/internal/cli/commands"
	"github.com/dataforge-labs/dbridge/internal/config"
)

var (
	cfgFile  string
	connFlag string
	urlFlag  string
	verbose  bool
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dbridge",
		Short: "dbridge - uniform access to heterogeneous SQL backends",
		Long: `dbridge gives PostgreSQL, MySQL and SQLite a single query surface:
one template syntax, one connection pool, one error taxonomy.

Connections come from dbridge.yaml, DBRIDGE_ environment variables, or a
connection URL passed with --url.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
			}

			env := &commands.Env{
				Config: cfg,
				URL:    urlFlag,
				Name:   connFlag,
				Logger: newLogger(cfg.Log),
			}
			cmd.SetContext(commands.WithEnv(cmd.Context(), env))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Uniform SQL access layer
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./dbridge.yaml)")
	rootCmd.PersistentFlags().StringVarP(&connFlag, "connection", "c", "", "Named connection from the config file")
	rootCmd.PersistentFlags().StringVar(&urlFlag, "url", "", "Connection URL (overrides --connection)")
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Help for dbridge")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(commands.NewPingCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewExecCommand())
	rootCmd.AddCommand(commands.NewTxCommand())
	rootCmd.AddCommand(commands.NewSchemaCommand())
	rootCmd.AddCommand(commands.NewStatsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadFromDir(".")
}

func newLogger(lc config.LogConfig) *slog.Logger {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if lc.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
