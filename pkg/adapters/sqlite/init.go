// Package sqlite provides the default, file-based SQLite adapter for claimjoin.
//
// It uses the pure-Go modernc.org/sqlite driver, so no cgo toolchain is
// required. Import this package with a blank identifier to register the adapter:
//
//	import _ "github.com/leapstack-labs/claimjoin/pkg/adapters/sqlite"
package sqlite

import (
	"log/slog"

	"github.com/leapstack-labs/claimjoin/pkg/adapter"
)

func init() {
	adapter.Register("sqlite", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
}
