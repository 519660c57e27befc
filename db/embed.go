// Package db bundles the PostgreSQL document table DDL and the default
// seed catalog.
package db

import _ "embed"

// Schema creates the documents table and its indexes. It is idempotent.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the demo catalog loaded by seed-db when no file is given.
//
//go:embed seed/catalog.json
var Catalog []byte
