// Package sigstore holds the migrations for the decryption signature store.
package sigstore

import "github.com/uptrace/bun/migrate"

// Migrations is the ordered migration set for the signature store database.
var Migrations = migrate.NewMigrations()
