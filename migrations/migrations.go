// Package migrations embeds the schema of the catalog and
// quality-condition tables, one directory per database driver.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
