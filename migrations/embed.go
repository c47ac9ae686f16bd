// Package migrations embeds the SQL schema so binaries can migrate without
// shipping the directory.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
