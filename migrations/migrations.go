// Package migrations embeds the schema migrations of every supported dialect.
package migrations

import "embed"

// FS holds the sqlite/ and postgres/ migration sets
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
