// Package migrations embeds the SQLite schema migrations so the binary
// carries its own schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
