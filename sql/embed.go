// Package migrations embeds the goose migrations of the host registry database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
