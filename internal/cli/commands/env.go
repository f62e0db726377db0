// Package commands implements the dbridge subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dataforge-labs/dbridge/internal/config"
	"github.com/dataforge-labs/dbridge/pkg/adapter"

	// Register the bundled drivers.
	_ "github.com/dataforge-labs/dbridge/pkg/adapters/mysql"
	_ "github.com/dataforge-labs/dbridge/pkg/adapters/postgres"
	_ "github.com/dataforge-labs/dbridge/pkg/adapters/sqlite"
)

// Env carries the resolved configuration into each command.
type Env struct {
	Config *config.Config
	URL    string // --url override
	Name   string // --connection
	Logger *slog.Logger
}

type envKey struct{}

// WithEnv stores the command environment in the context.
func WithEnv(ctx context.Context, e *Env) context.Context {
	return context.WithValue(ctx, envKey{}, e)
}

// EnvFrom retrieves the command environment from the context.
func EnvFrom(ctx context.Context) (*Env, error) {
	if e, ok := ctx.Value(envKey{}).(*Env); ok {
		return e, nil
	}
	return nil, fmt.Errorf("command environment not initialized")
}

// Open resolves the target connection and returns a connected adapter.
// The caller owns the adapter and must Close it.
func (e *Env) Open(ctx context.Context) (*adapter.Adapter, error) {
	url := e.URL
	if url == "" {
		conn, err := e.Config.Connection(e.Name)
		if err != nil {
			return nil, err
		}
		if conn.URL != "" {
			url = conn.URL
		} else {
			return e.openResolved(ctx, conn)
		}
	}

	a, err := adapter.Open(url, adapter.WithLogger(e.Logger))
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

func (e *Env) openResolved(ctx context.Context, conn *config.Connection) (*adapter.Adapter, error) {
	cfg, err := conn.Resolve()
	if err != nil {
		return nil, err
	}
	a, err := adapter.OpenConfig(cfg, adapter.WithLogger(e.Logger))
	if err != nil {
		return nil, err
	}
	if err := a.Connect(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
