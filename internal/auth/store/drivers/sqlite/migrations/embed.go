// Package migrations embeds the SQL migration files so the binary can
// bootstrap or upgrade its own schema on startup.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
