// Package migrations embeds the goose SQL migrations of the pgstore schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
