package migrations

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{
		"users", "groups", "group_members", "items", "grants",
		"permission_requests", "audit_log", "maintenance_runs", "schema_migrations",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestGetStatus(t *testing.T) {
	db := openTestDB(t)

	st, err := GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Version != 0 || st.Latest == 0 {
		t.Fatalf("fresh status = %+v, want version 0 and a positive latest", st)
	}
	if st.Pending() != st.Latest {
		t.Errorf("Pending() = %d, want %d", st.Pending(), st.Latest)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	st, err = GetStatus(db)
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if st.Version != st.Latest || st.Dirty || st.Pending() != 0 {
		t.Errorf("migrated status = %+v, want clean at latest", st)
	}
}

func TestCheckDBMigrationStatus_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	err := CheckDBMigrationStatus(db)
	if err == nil {
		t.Fatal("CheckDBMigrationStatus() expected error for fresh database, got nil")
	}
	if err.Error() != "database has no schema version (needs migration)" {
		t.Errorf("CheckDBMigrationStatus() error = %q, want error about needing migration", err.Error())
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestSchema_GrantConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, `INSERT INTO users (id, name, created_at) VALUES ('alice', 'Alice', 0), ('bob', 'Bob', 0)`)
	mustExec(t, db, `INSERT INTO groups (id, name, created_at) VALUES ('eng', 'Engineering', 0)`)
	mustExec(t, db, `INSERT INTO items (id, item_type, owner_id, created_at) VALUES ('doc', 'file', 'alice', 0)`)

	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{
			name:    "missing item",
			sql:     `INSERT INTO grants (item_id, user_id, permission_type, granted_by, granted_at) VALUES ('nope', 'bob', 'read', 'alice', 0)`,
			wantErr: true,
		},
		{
			name:    "both targets",
			sql:     `INSERT INTO grants (item_id, user_id, group_id, permission_type, granted_by, granted_at) VALUES ('doc', 'bob', 'eng', 'read', 'alice', 0)`,
			wantErr: true,
		},
		{
			name:    "no target",
			sql:     `INSERT INTO grants (item_id, permission_type, granted_by, granted_at) VALUES ('doc', 'read', 'alice', 0)`,
			wantErr: true,
		},
		{
			name:    "unknown permission type",
			sql:     `INSERT INTO grants (item_id, user_id, permission_type, granted_by, granted_at) VALUES ('doc', 'bob', 'execute', 'alice', 0)`,
			wantErr: true,
		},
		{
			name: "user grant",
			sql:  `INSERT INTO grants (item_id, user_id, permission_type, granted_by, granted_at) VALUES ('doc', 'bob', 'read', 'alice', 0)`,
		},
		{
			name:    "second active grant for the same triple",
			sql:     `INSERT INTO grants (item_id, user_id, permission_type, granted_by, granted_at) VALUES ('doc', 'bob', 'read', 'alice', 1)`,
			wantErr: true,
		},
		{
			name: "inactive duplicate is allowed",
			sql:  `INSERT INTO grants (item_id, user_id, permission_type, granted_by, granted_at, is_active) VALUES ('doc', 'bob', 'read', 'alice', 1, 0)`,
		},
		{
			name: "group grant",
			sql:  `INSERT INTO grants (item_id, group_id, permission_type, granted_by, granted_at) VALUES ('doc', 'eng', 'read', 'alice', 0)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := db.Exec(tt.sql)
			if (err != nil) != tt.wantErr {
				t.Errorf("Exec() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSchema_OnePendingRequestPerRequester(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}
	mustExec(t, db, `INSERT INTO users (id, name, created_at) VALUES ('alice', 'Alice', 0), ('bob', 'Bob', 0)`)
	mustExec(t, db, `INSERT INTO items (id, item_type, owner_id, created_at) VALUES ('doc', 'file', 'alice', 0)`)

	insert := `INSERT INTO permission_requests (item_id, requester_id, requested_permissions, created_at) VALUES ('doc', 'bob', 'write', 0)`
	mustExec(t, db, insert)

	if _, err := db.Exec(insert); err == nil {
		t.Fatal("second pending request succeeded, want unique violation")
	}

	mustExec(t, db, `UPDATE permission_requests SET status = 'denied'`)
	if _, err := db.Exec(insert); err != nil {
		t.Errorf("new request after denial failed: %v", err)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	return db
}

func mustExec(t *testing.T, db *sql.DB, query string) {
	t.Helper()
	if _, err := db.Exec(query); err != nil {
		t.Fatalf("Exec(%q) error = %v", query, err)
	}
}
