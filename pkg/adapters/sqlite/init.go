// This file registers the SQLite driver with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/dataforge-labs/dbridge/pkg/adapters/sqlite"
package sqlite

import "github.com/dataforge-labs/dbridge/pkg/adapter"

func init() {
	adapter.Register(New())
}
