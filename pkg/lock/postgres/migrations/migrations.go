// Package migrations embeds the schema of the PostgreSQL lock store.
package migrations

import "embed"

// FS holds the golang-migrate up/down files.
//
//go:embed *.sql
var FS embed.FS
