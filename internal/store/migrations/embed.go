// Package migrations holds the embedded SQL schema for the reference backend.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
