// Package migrations embeds the goose SQL migrations of the Postgres
// backend.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
