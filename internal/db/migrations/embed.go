// Package migrations provides embedded PostgreSQL migration files for
// golang-migrate. SQLite databases use db.OpenSQLite's schema instead.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
