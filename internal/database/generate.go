package database

import _ "embed"

// Schema is the full schema produced by applying every migration to an empty
// database. Tests apply it directly instead of running the migrations.
//
// To regenerate after adding a migration:
//
//	go generate ./internal/database
//
//go:embed schema.sql
var Schema string

//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
