// Package migrations embeds the postgres record store schema so the
// harvester binaries can migrate without a checkout next to them.
package migrations

import "embed"

// FS holds the numbered up/down SQL files.
//
//go:embed *.sql
var FS embed.FS
