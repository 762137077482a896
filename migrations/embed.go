// Package migrations holds the catalog schema, shared by PostgreSQL and SQLite.
package migrations

import "embed"

// FS contains every *.sql migration file.
//
//go:embed *.sql
var FS embed.FS
