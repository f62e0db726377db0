package core

import "time"

// ConnConfig holds the parsed pieces of a connection string plus pool sizing.
// Produced by adapter.ParseURL; consumed by the concrete driver packages.
type ConnConfig struct {
	Dialect  string
	Host     string
	Port     int
	Database string
	Path     string // file path for embedded databases; ":memory:" for in-memory
	Username string
	Password string
	Options  map[string]string
	Pool     PoolConfig
}

// PoolConfig controls the connection pool owned by one adapter instance.
type PoolConfig struct {
	// MinSize connections are opened eagerly on Connect and kept warm.
	MinSize int `koanf:"min_size"`

	// MaxSize bounds live physical connections. Demand beyond MaxSize queues
	// FIFO until a release or AcquireTimeout, whichever comes first.
	MaxSize int `koanf:"max_size"`

	// AcquireTimeout bounds how long an Acquire call may wait for a handle.
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`

	// IdleTimeout closes idle handles that have not been used for this long.
	IdleTimeout time.Duration `koanf:"idle_timeout"`

	// RecycleAfterUses closes a handle after this many checkouts. Zero disables.
	RecycleAfterUses int `koanf:"recycle_after_uses"`

	// RecycleAfterAge closes a handle older than this. Zero disables.
	RecycleAfterAge time.Duration `koanf:"recycle_after_age"`

	// HealthCheckInterval is the period of the background health-checker and
	// idle-reaper. Zero disables the background loop.
	HealthCheckInterval time.Duration `koanf:"health_check_interval"`
}

// DefaultPoolConfig returns the pool sizing used when the connection string
// carries no overrides.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:             1,
		MaxSize:             8,
		AcquireTimeout:      30 * time.Second,
		IdleTimeout:         5 * time.Minute,
		RecycleAfterUses:    0,
		RecycleAfterAge:     time.Hour,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Normalize fills zero-valued fields from DefaultPoolConfig and clamps
// inconsistent values (MinSize > MaxSize).
func (c *PoolConfig) Normalize() {
	def := DefaultPoolConfig()
	if c.MaxSize <= 0 {
		c.MaxSize = def.MaxSize
	}
	if c.MinSize < 0 {
		c.MinSize = 0
	}
	if c.MinSize > c.MaxSize {
		c.MinSize = c.MaxSize
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = def.AcquireTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.RecycleAfterAge < 0 {
		c.RecycleAfterAge = 0
	}
	if c.RecycleAfterUses < 0 {
		c.RecycleAfterUses = 0
	}
}
