// Package db embeds the SQL schema for the postgres document backend and the
// sample document used to provision new stores.
package db

import _ "embed"

// Schema creates the documents table that holds the versioned JSONB document.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedDocument is a small catalog with a regular user, an admin and one
// coupon.
//
//go:embed seed/data.json
var SeedDocument []byte
