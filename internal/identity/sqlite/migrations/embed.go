// Package migrations embeds the identity schema.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
