// Package config loads dbridge configuration files. It is decoupled from CLI
// concerns so other tools can reuse it.
package config

import (
	"fmt"

	"github.com/dataforge-labs/dbridge/pkg/adapter"
	"github.com/dataforge-labs/dbridge/pkg/core"
	"github.com/dataforge-labs/dbridge/pkg/dialect"
)

// Connection describes one named database target. Either URL or the
// structured fields are used; URL wins when both are present.
type Connection struct {
	URL string `koanf:"url"`

	Dialect  string `koanf:"dialect"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`

	// File-based databases (SQLite)
	Path string `koanf:"path"`

	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	Pool core.PoolConfig `koanf:"pool"`
}

// Resolve converts the entry into a core.ConnConfig ready for adapter.Open.
func (c *Connection) Resolve() (core.ConnConfig, error) {
	if c.URL != "" {
		return adapter.ParseURL(c.URL)
	}

	cat, err := dialect.Lookup(c.Dialect)
	if err != nil {
		return core.ConnConfig{}, err
	}

	cfg := core.ConnConfig{
		Dialect:  cat.Name,
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Path:     c.Path,
		Username: c.Username,
		Password: c.Password,
		Options:  c.Options,
		Pool:     c.Pool,
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = cat.DefaultPort
	}
	cfg.Pool.Normalize()
	return cfg, nil
}

// LogConfig controls CLI logging output.
type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // text or json
}

// Config is the root configuration document.
type Config struct {
	// Default names the connection used when none is given on the command line.
	Default     string                 `koanf:"default"`
	Connections map[string]*Connection `koanf:"connections"`
	Log         LogConfig              `koanf:"log"`
}

// Connection returns the named connection, falling back to the default when
// name is empty.
func (c *Config) Connection(name string) (*Connection, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		if len(c.Connections) == 1 {
			for _, conn := range c.Connections {
				return conn, nil
			}
		}
		return nil, fmt.Errorf("no connection named and no default set")
	}
	conn, ok := c.Connections[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection %q", name)
	}
	return conn, nil
}

// ApplyDefaults fills zero-valued logging fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}
