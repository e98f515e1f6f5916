// Package migrations embeds the postgres schema for the document store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
