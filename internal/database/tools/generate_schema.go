// Command generate_schema applies every migration to an empty in-memory
// database and writes the resulting schema to internal/database/schema.sql.
// With -check it exits non-zero instead when the file is stale.
package main

import (
	"bytes"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"acl-go/internal/database"
	"acl-go/internal/database/migrations"
)

const header = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/*.sql

`

func main() {
	// Relative to the module root; go:generate runs from there.
	out := flag.String("out", filepath.Join("internal", "database", "schema.sql"), "schema file to write")
	check := flag.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	flag.Parse()

	if err := run(*out, *check); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string, check bool) error {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrations.MigrateUp(db); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	stmts, err := extractSchema(db)
	if err != nil {
		return err
	}
	schema := []byte(header + strings.Join(stmts, "\n\n") + "\n\n")

	if check {
		current, err := os.ReadFile(outPath)
		if err != nil {
			return fmt.Errorf("reading %s: %w", outPath, err)
		}
		if !bytes.Equal(current, schema) {
			return fmt.Errorf("%s is stale; run 'go generate ./internal/database'", outPath)
		}
		fmt.Printf("%s is up to date (%d statements)\n", outPath, len(stmts))
		return nil
	}

	if err := os.WriteFile(outPath, schema, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	fmt.Printf("generated %s from migrations (%d statements)\n", outPath, len(stmts))
	return nil
}

// extractSchema returns every table and index definition, skipping SQLite
// internals and golang-migrate's bookkeeping. Tables sort before indexes,
// each group by name, so every index follows the table it references.
func extractSchema(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`
		SELECT sql || ';'
		FROM sqlite_master
		WHERE type IN ('table', 'index')
		  AND sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY CASE type WHEN 'table' THEN 1 ELSE 2 END, name`)
	if err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, fmt.Errorf("scanning schema: %w", err)
		}
		stmts = append(stmts, stmt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	return stmts, nil
}
