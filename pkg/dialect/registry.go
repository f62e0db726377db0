package dialect

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Catalog registry
var (
	catalogsMu sync.RWMutex
	catalogs   = make(map[string]*Catalog)
)

// Register registers a catalog in the global registry. Called from init() in
// this package for the built-in dialects.
func Register(c *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[strings.ToLower(c.Name)] = c
}

// Lookup returns the catalog for a dialect name. Unknown dialects fail here,
// at construction time, never at first use.
func Lookup(name string) (*Catalog, error) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	c, ok := catalogs[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (available: %s)", name, strings.Join(listLocked(), ", "))
	}
	return c, nil
}

// List returns all registered dialect names (sorted).
func List() []string {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	return listLocked()
}

func listLocked() []string {
	names := make([]string, 0, len(catalogs))
	for name := range catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
