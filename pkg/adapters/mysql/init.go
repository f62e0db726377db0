// This file registers the MySQL driver with the adapter registry.
// Import this package with a blank identifier to register it:
//
//	import _ "github.com/dataforge-labs/dbridge/pkg/adapters/mysql"
package mysql

import "github.com/dataforge-labs/dbridge/pkg/adapter"

func init() {
	adapter.Register(New())
}
