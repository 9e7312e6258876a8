package migrations

import "embed"

// FS contains embedded SQLite migrations for QR storage.
//
//go:embed *.sql
var FS embed.FS
