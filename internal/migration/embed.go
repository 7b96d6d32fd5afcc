package migration

import "embed"

const migrationsDir = "migrations"

// Migrations ship inside the binary so a fresh deploy needs nothing but
// the executable and a writable database path.
//
//go:embed migrations/*.up.sql
var embeddedMigrations embed.FS
