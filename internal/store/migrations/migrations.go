// Package migrations embeds the SQL migrations for the message database.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
