package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"acl-go/internal/acl"
)

const grantColumns = `id, item_id, user_id, group_id, permission_type, granted_by, granted_at, expires_at, is_active, deactivated_at`

func scanGrant(row interface{ Scan(...any) error }) (*acl.Grant, error) {
	var (
		g             acl.Grant
		userID        sql.NullString
		groupID       sql.NullString
		grantedAt     int64
		expiresAt     sql.NullInt64
		deactivatedAt sql.NullInt64
	)
	err := row.Scan(&g.ID, &g.ItemID, &userID, &groupID, &g.Permission, &g.GrantedBy,
		&grantedAt, &expiresAt, &g.IsActive, &deactivatedAt)
	if err != nil {
		return nil, err
	}
	if userID.Valid {
		g.Target = acl.UserTarget(userID.String)
	} else {
		g.Target = acl.GroupTarget(groupID.String)
	}
	g.GrantedAt = fromMillis(grantedAt)
	g.ExpiresAt = millisPtr(expiresAt)
	g.DeactivatedAt = millisPtr(deactivatedAt)
	return &g, nil
}

func scanGrants(rows *sql.Rows, op string) ([]*acl.Grant, error) {
	defer rows.Close()
	var grants []*acl.Grant
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, storeError(op, err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return grants, nil
}

// targetColumn returns the column holding the target's id.
func targetColumn(t acl.GrantTarget) string {
	if t.IsGroup() {
		return "group_id"
	}
	return "user_id"
}

func (s *SQLiteDatabase) GetGrant(ctx context.Context, id int64) (*acl.Grant, error) {
	return getGrant(ctx, s.db, id)
}

func getGrant(ctx context.Context, q queryer, id int64) (*acl.Grant, error) {
	g, err := scanGrant(q.QueryRowContext(ctx, `SELECT `+grantColumns+` FROM grants WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, acl.NotFoundError("get grant", "grant %d", id)
		}
		return nil, storeError("get grant", err)
	}
	return g, nil
}

func (s *SQLiteDatabase) ListGrants(ctx context.Context, itemID string, includeInactive bool) ([]*acl.Grant, error) {
	query := `SELECT ` + grantColumns + ` FROM grants WHERE item_id = ?`
	if !includeInactive {
		query += ` AND is_active = 1`
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY id`, itemID)
	if err != nil {
		return nil, storeError("list grants", err)
	}
	return scanGrants(rows, "list grants")
}

// ListInheritedGrants walks the ancestor chain with a recursive CTE and
// returns the qualifying grants on any item in it. UNION (not UNION ALL)
// stops the walk if the chain ever loops.
func (s *SQLiteDatabase) ListInheritedGrants(ctx context.Context, itemID, userID string, groupIDs []string, now time.Time) ([]*acl.Grant, error) {
	args := []any{itemID, toMillis(now), userID}
	targetClause := `g.user_id = ?`
	if len(groupIDs) > 0 {
		targetClause = `(g.user_id = ? OR g.group_id IN (` + placeholders(len(groupIDs)) + `))`
		for _, id := range groupIDs {
			args = append(args, id)
		}
	}

	query := `
		WITH RECURSIVE chain(id, parent_id) AS (
			SELECT id, parent_id FROM items WHERE id = ?
			UNION
			SELECT i.id, i.parent_id FROM items i JOIN chain c ON i.id = c.parent_id
		)
		SELECT g.id, g.item_id, g.user_id, g.group_id, g.permission_type, g.granted_by,
		       g.granted_at, g.expires_at, g.is_active, g.deactivated_at
		FROM grants g
		JOIN chain c ON g.item_id = c.id
		WHERE g.is_active = 1
		  AND (g.expires_at IS NULL OR g.expires_at > ?)
		  AND ` + targetClause + `
		ORDER BY g.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list inherited grants", err)
	}
	return scanGrants(rows, "list inherited grants")
}

func (s *SQLiteDatabase) CreateGrant(ctx context.Context, spec acl.GrantSpec) (*acl.Grant, error) {
	var g *acl.Grant
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		g, err = applyGrant(ctx, tx, spec, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (s *SQLiteDatabase) ApplyGrants(ctx context.Context, specs []acl.GrantSpec) ([]*acl.Grant, error) {
	grants := make([]*acl.Grant, 0, len(specs))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, spec := range specs {
			g, err := applyGrant(ctx, tx, spec, false)
			if err != nil {
				return err
			}
			grants = append(grants, g)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// applyGrant makes spec's triple hold exactly one active grant. An active
// grant is refreshed (or rejected when failIfActive is set); otherwise the
// newest inactive grant is reactivated; otherwise a row is inserted. The
// partial unique indexes turn a concurrent writer that wins the race into a
// constraint error, which storeError maps to acl.ErrConflict.
func applyGrant(ctx context.Context, tx *sql.Tx, spec acl.GrantSpec, failIfActive bool) (*acl.Grant, error) {
	const op = "apply grant"
	if err := spec.Target.Validate(); err != nil {
		return nil, err
	}
	col := targetColumn(spec.Target)

	var id int64
	err := tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM grants WHERE item_id = ? AND %s = ? AND permission_type = ? AND is_active = 1`, col),
		spec.ItemID, spec.Target.ID(), spec.Permission).Scan(&id)
	switch {
	case err == nil:
		if failIfActive {
			return nil, acl.ConflictError("create grant", "%s already holds %s on %s (grant %d)", spec.Target, spec.Permission, spec.ItemID, id)
		}
		_, err = tx.ExecContext(ctx, `UPDATE grants SET granted_by = ?, expires_at = ? WHERE id = ?`,
			spec.GrantedBy, nullMillis(spec.ExpiresAt), id)
		if err != nil {
			return nil, storeError(op, err)
		}
		return getGrant(ctx, tx, id)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, storeError(op, err)
	}

	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id FROM grants WHERE item_id = ? AND %s = ? AND permission_type = ? AND is_active = 0 ORDER BY id DESC LIMIT 1`, col),
		spec.ItemID, spec.Target.ID(), spec.Permission).Scan(&id)
	switch {
	case err == nil:
		_, err = tx.ExecContext(ctx,
			`UPDATE grants SET is_active = 1, deactivated_at = NULL, granted_by = ?, granted_at = ?, expires_at = ? WHERE id = ?`,
			spec.GrantedBy, toMillis(spec.GrantedAt), nullMillis(spec.ExpiresAt), id)
		if err != nil {
			return nil, storeError(op, err)
		}
		return getGrant(ctx, tx, id)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, storeError(op, err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO grants (item_id, user_id, group_id, permission_type, granted_by, granted_at, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		spec.ItemID, nullString(spec.Target.UserID()), nullString(spec.Target.GroupID()), spec.Permission,
		spec.GrantedBy, toMillis(spec.GrantedAt), nullMillis(spec.ExpiresAt))
	if err != nil {
		return nil, storeError(op, err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return nil, storeError(op, err)
	}
	return getGrant(ctx, tx, id)
}

func (s *SQLiteDatabase) UpdateGrantExpiry(ctx context.Context, id int64, expiresAt *time.Time) (*acl.Grant, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE grants SET expires_at = ? WHERE id = ? AND is_active = 1`, nullMillis(expiresAt), id)
	if err != nil {
		return nil, storeError("update grant", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetGrant(ctx, id); err != nil {
			return nil, err
		}
		return nil, acl.InvalidError("update grant", "grant %d is inactive", id)
	}
	return s.GetGrant(ctx, id)
}

func (s *SQLiteDatabase) DeactivateGrant(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE grants SET is_active = 0, deactivated_at = ? WHERE id = ? AND is_active = 1`, toMillis(at), id)
	if err != nil {
		return false, storeError("deactivate grant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storeError("deactivate grant", err)
	}
	if n == 0 {
		if _, err := s.GetGrant(ctx, id); err != nil {
			return false, err
		}
	}
	return n > 0, nil
}

func (s *SQLiteDatabase) DeactivateMatching(ctx context.Context, itemID string, target acl.GrantTarget, perms acl.PermissionSet, at time.Time) (int, error) {
	if err := target.Validate(); err != nil {
		return 0, err
	}
	list := perms.List()
	if len(list) == 0 {
		return 0, nil
	}
	args := []any{toMillis(at), itemID, target.ID()}
	for _, p := range list {
		args = append(args, p)
	}
	query := fmt.Sprintf(`UPDATE grants SET is_active = 0, deactivated_at = ?
		WHERE item_id = ? AND %s = ? AND is_active = 1 AND permission_type IN (%s)`,
		targetColumn(target), placeholders(len(list)))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, storeError("deactivate matching grants", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("deactivate matching grants", err)
	}
	return int(n), nil
}
