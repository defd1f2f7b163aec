// Package migrations embeds the database schema.
package migrations

import _ "embed"

// Schema creates every table and index. Each statement is idempotent.
//
//go:embed schema.sql
var Schema string
