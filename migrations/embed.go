// Package migrations embeds the ledger's SQL migrations so that binaries
// can apply them without shipping the files.
package migrations

import "embed"

// FS holds every *.sql migration in this directory
//
//go:embed *.sql
var FS embed.FS
