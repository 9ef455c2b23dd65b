// Package migrations embeds the SQL schema for every supported driver.
package migrations

import "embed"

// FS holds one directory per database driver.
//
//go:embed postgres/*.sql sqlite/*.sql
var FS embed.FS
