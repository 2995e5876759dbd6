package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"acl-go/internal/acl"
)

const requestColumns = `id, item_id, requester_id, requested_permissions, reason, status, review_notes, reviewed_by, reviewed_at, created_at`

func scanRequest(row interface{ Scan(...any) error }) (*acl.PermissionRequest, error) {
	var (
		r          acl.PermissionRequest
		perms      string
		reviewedBy sql.NullString
		reviewedAt sql.NullInt64
		createdAt  int64
	)
	err := row.Scan(&r.ID, &r.ItemID, &r.RequesterID, &perms, &r.Reason, &r.Status, &r.ReviewNotes,
		&reviewedBy, &reviewedAt, &createdAt)
	if err != nil {
		return nil, err
	}
	set, err := acl.ParsePermissionSet(perms)
	if err != nil {
		return nil, fmt.Errorf("request %d: %w", r.ID, err)
	}
	r.Permissions = set
	r.ReviewedBy = reviewedBy.String
	r.ReviewedAt = millisPtr(reviewedAt)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

func (s *SQLiteDatabase) CreateRequest(ctx context.Context, req *acl.PermissionRequest) (*acl.PermissionRequest, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO permission_requests (item_id, requester_id, requested_permissions, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		req.ItemID, req.RequesterID, req.Permissions.String(), req.Reason, acl.RequestPending, toMillis(req.CreatedAt))
	if err != nil {
		return nil, storeError("create request", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, storeError("create request", err)
	}
	return s.GetRequest(ctx, id)
}

func (s *SQLiteDatabase) GetRequest(ctx context.Context, id int64) (*acl.PermissionRequest, error) {
	return getRequest(ctx, s.db, id)
}

func getRequest(ctx context.Context, q queryer, id int64) (*acl.PermissionRequest, error) {
	r, err := scanRequest(q.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM permission_requests WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, acl.NotFoundError("get request", "request %d", id)
		}
		return nil, storeError("get request", err)
	}
	return r, nil
}

func (s *SQLiteDatabase) ListRequests(ctx context.Context, filter acl.RequestFilter) ([]*acl.PermissionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM permission_requests WHERE 1 = 1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, filter.ItemID)
	}
	if filter.RequesterID != "" {
		query += ` AND requester_id = ?`
		args = append(args, filter.RequesterID)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list requests", err)
	}
	defer rows.Close()

	var out []*acl.PermissionRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, storeError("scan request", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list requests", err)
	}
	return out, nil
}

// ResolveRequest guards the transition with status = 'pending', so of two
// concurrent reviews exactly one succeeds.
func (s *SQLiteDatabase) ResolveRequest(ctx context.Context, id int64, status acl.RequestStatus, reviewerID, notes string, at time.Time, grants []acl.GrantSpec) (*acl.PermissionRequest, []*acl.Grant, error) {
	const op = "resolve request"
	var (
		resolved *acl.PermissionRequest
		created  []*acl.Grant
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE permission_requests SET status = ?, review_notes = ?, reviewed_by = ?, reviewed_at = ?
			 WHERE id = ? AND status = 'pending'`,
			status, notes, reviewerID, toMillis(at), id)
		if err != nil {
			return storeError(op, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			current, err := getRequest(ctx, tx, id)
			if err != nil {
				return err
			}
			return &acl.Error{Kind: acl.ErrAlreadyResolved, Op: op, Msg: fmt.Sprintf("request %d is %s", id, current.Status)}
		}

		for _, spec := range grants {
			g, err := applyGrant(ctx, tx, spec, false)
			if err != nil {
				return err
			}
			created = append(created, g)
		}

		resolved, err = getRequest(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return resolved, created, nil
}
