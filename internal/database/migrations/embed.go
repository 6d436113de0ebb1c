// Package migrations embeds the goose SQL files for the users and
// refresh_tokens tables.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
