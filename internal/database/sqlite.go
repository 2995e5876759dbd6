package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"acl-go/internal/acl"
	"acl-go/internal/database/migrations"
)

// SQLiteDatabase implements acl.Store and acl.MembershipResolver on SQLite.
// All timestamps are stored as INTEGER unix milliseconds in UTC.
type SQLiteDatabase struct {
	db   *sql.DB
	path string
}

// NewSQLiteDatabase opens a SQLite database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteDatabase{db: db, path: path}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{db: db}
}

// OpenConnection opens and configures a SQLite connection pool.
// Exported for tools and tests that need a properly configured connection.
//
// Every pooled connection gets foreign keys and a busy timeout through the
// DSN. File databases use WAL and take the write lock at BEGIN, so
// concurrent writers queue on busy_timeout instead of failing on lock
// upgrade. An in-memory database exists per connection, so the pool is
// pinned to a single connection.
func OpenConnection(path string) (*sql.DB, error) {
	params := "_foreign_keys=on&_busy_timeout=5000"
	memory := path == ":memory:"
	if !memory {
		params += "&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", path+"?"+params)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// inTx runs fn inside a transaction, committing on success.
func (s *SQLiteDatabase) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin transaction", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storeError("commit", err)
	}
	return nil
}

// storeError wraps err and maps SQLite failures onto the engine's kinds:
// lock contention becomes acl.ErrBusy, a unique violation acl.ErrConflict,
// and a foreign key violation acl.ErrInvalidRequest.
func storeError(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %v", op, acl.ErrBusy, err)
		case se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return acl.ConflictError(op, "%v", err)
		case se.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return acl.InvalidError(op, "references a missing record")
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func millisPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// Item operations

const itemColumns = `id, name, item_type, parent_id, owner_id, visibility, created_at`

func scanItem(row interface{ Scan(...any) error }) (*acl.Item, error) {
	var (
		it        acl.Item
		parent    sql.NullString
		createdAt int64
	)
	if err := row.Scan(&it.ID, &it.Name, &it.Type, &parent, &it.OwnerID, &it.Visibility, &createdAt); err != nil {
		return nil, err
	}
	it.ParentID = parent.String
	it.CreatedAt = fromMillis(createdAt)
	return &it, nil
}

func (s *SQLiteDatabase) GetItem(ctx context.Context, id string) (*acl.Item, error) {
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q queryer, id string) (*acl.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, acl.NotFoundError("get item", "item %s", id)
		}
		return nil, storeError("get item", err)
	}
	return it, nil
}

func (s *SQLiteDatabase) ListChildren(ctx context.Context, parentID string) ([]*acl.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE parent_id = ? ORDER BY id`, parentID)
	if err != nil {
		return nil, storeError("list children", err)
	}
	defer rows.Close()

	var items []*acl.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, storeError("scan child", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list children", err)
	}
	return items, nil
}

func (s *SQLiteDatabase) CreateItem(ctx context.Context, item *acl.Item) (*acl.Item, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if item.ParentID != "" {
			if err := checkParent(ctx, tx, "create item", item.ParentID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, name, item_type, parent_id, owner_id, visibility, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.Name, item.Type, nullString(item.ParentID), item.OwnerID, item.Visibility, toMillis(item.CreatedAt))
		if err != nil {
			return storeError("create item", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, item.ID)
}

// checkParent verifies parentID exists and is a directory.
func checkParent(ctx context.Context, q queryer, op, parentID string) error {
	parent, err := getItem(ctx, q, parentID)
	if err != nil {
		return err
	}
	if !parent.IsDir() {
		return acl.InvalidError(op, "parent %s is not a directory", parentID)
	}
	return nil
}

func (s *SQLiteDatabase) MoveItem(ctx context.Context, id, newParentID string) error {
	const op = "move item"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := getItem(ctx, tx, id); err != nil {
			return err
		}
		if newParentID != "" {
			if err := checkParent(ctx, tx, op, newParentID); err != nil {
				return err
			}
			// Walk up from the new parent; finding id there would close a cycle.
			var cycle int
			err := tx.QueryRowContext(ctx, `
				WITH RECURSIVE chain(id, parent_id) AS (
					SELECT id, parent_id FROM items WHERE id = ?
					UNION
					SELECT i.id, i.parent_id FROM items i JOIN chain c ON i.id = c.parent_id
				)
				SELECT COUNT(*) FROM chain WHERE id = ?`, newParentID, id).Scan(&cycle)
			if err != nil {
				return storeError(op, err)
			}
			if cycle > 0 {
				return acl.InvalidError(op, "cannot move %s under its own descendant %s", id, newParentID)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE items SET parent_id = ? WHERE id = ?`, nullString(newParentID), id); err != nil {
			return storeError(op, err)
		}
		return nil
	})
}

// Principal operations

func (s *SQLiteDatabase) GetUser(ctx context.Context, id string) (*acl.User, error) {
	var (
		u         acl.User
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT id, name, is_superuser, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.IsSuperuser, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, acl.NotFoundError("get user", "user %s", id)
		}
		return nil, storeError("get user", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return &u, nil
}

func (s *SQLiteDatabase) CreateUser(ctx context.Context, user *acl.User) (*acl.User, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (id, name, is_superuser, created_at) VALUES (?, ?, ?, ?)`,
		user.ID, user.Name, user.IsSuperuser, toMillis(user.CreatedAt))
	if err != nil {
		return nil, storeError("create user", err)
	}
	return s.GetUser(ctx, user.ID)
}

func (s *SQLiteDatabase) CreateGroup(ctx context.Context, group *acl.Group) (*acl.Group, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)`,
		group.ID, group.Name, toMillis(group.CreatedAt))
	if err != nil {
		return nil, storeError("create group", err)
	}
	g := *group
	return &g, nil
}

func (s *SQLiteDatabase) AddGroupMember(ctx context.Context, groupID, userID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO group_members (group_id, user_id) VALUES (?, ?)`, groupID, userID)
	if err != nil {
		return storeError("add group member", err)
	}
	return nil
}

// GroupsForUser implements acl.MembershipResolver.
func (s *SQLiteDatabase) GroupsForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`, userID)
	if err != nil {
		return nil, storeError("list groups for user", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, storeError("scan group", err)
		}
		groups = append(groups, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list groups for user", err)
	}
	return groups, nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrationStatus reports the schema version against the embedded migrations.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.GetStatus(s.db)
}

// Migrate applies all pending migrations.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo writes a consistent copy of the database to destPath using VACUUM INTO.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, destPath string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ acl.Store              = (*SQLiteDatabase)(nil)
	_ acl.MembershipResolver = (*SQLiteDatabase)(nil)
)
