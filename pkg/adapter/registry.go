package adapter

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dataforge-labs/dbridge/pkg/spi"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]spi.Driver)
)

// Register adds a driver to the registry. Called by driver implementations
// in their init() functions.
func Register(d spi.Driver) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Dialect()] = d
}

// Get retrieves a registered driver by dialect name.
func Get(dialect string) (spi.Driver, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[dialect]
	return d, ok
}

// ListDrivers returns all registered dialect names (sorted).
func ListDrivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnknownDialectError is returned when no driver serves the requested dialect.
type UnknownDialectError struct {
	Dialect   string
	Available []string
}

func (e *UnknownDialectError) Error() string {
	return fmt.Sprintf("no driver registered for dialect %q (available: %v); import the matching pkg/adapters package", e.Dialect, e.Available)
}
