// Package db holds the embedded SQL migrations and the migration runner
// for the ripple schema.
package db

import "embed"

// MigrationFS embeds the SQL migration files applied by cmd/migrate.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
