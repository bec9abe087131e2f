package migrations

import "embed"

// FS contains the embedded SQLite ledger migrations.
//
//go:embed *.sql
var FS embed.FS
