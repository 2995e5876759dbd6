package database

import (
	"context"
	"database/sql"
	"time"

	"acl-go/internal/acl"
)

func (s *SQLiteDatabase) RecordAudit(ctx context.Context, rec *acl.AuditRecord) error {
	return insertAudit(ctx, s.db, rec)
}

func insertAudit(ctx context.Context, q queryer, rec *acl.AuditRecord) error {
	var grantID sql.NullInt64
	if rec.GrantID != 0 {
		grantID = sql.NullInt64{Int64: rec.GrantID, Valid: true}
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO audit_log (action, actor_id, item_id, grant_id, target, permission_type, detail, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Action, rec.ActorID, rec.ItemID, grantID, rec.Target, rec.Permission, rec.Detail, toMillis(rec.RecordedAt))
	if err != nil {
		return storeError("record audit", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storeError("record audit", err)
	}
	rec.ID = id
	return nil
}

// ListAudit returns the newest records first. An empty itemID lists all items.
func (s *SQLiteDatabase) ListAudit(ctx context.Context, itemID string, limit int) ([]*acl.AuditRecord, error) {
	query := `SELECT id, action, actor_id, item_id, grant_id, target, permission_type, detail, recorded_at FROM audit_log`
	var args []any
	if itemID != "" {
		query += ` WHERE item_id = ?`
		args = append(args, itemID)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("list audit", err)
	}
	defer rows.Close()

	var out []*acl.AuditRecord
	for rows.Next() {
		var (
			rec        acl.AuditRecord
			grantID    sql.NullInt64
			recordedAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.ActorID, &rec.ItemID, &grantID,
			&rec.Target, &rec.Permission, &rec.Detail, &recordedAt); err != nil {
			return nil, storeError("scan audit", err)
		}
		rec.GrantID = grantID.Int64
		rec.RecordedAt = fromMillis(recordedAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list audit", err)
	}
	return out, nil
}

// MaintenanceRun is one recorded CLI invocation that mutated the database.
type MaintenanceRun struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
}

func (s *SQLiteDatabase) CreateMaintenanceRun(ctx context.Context, operation, parameters string, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO maintenance_runs (operation, parameters, status, started_at) VALUES (?, ?, 'running', ?)`,
		operation, parameters, toMillis(startedAt))
	if err != nil {
		return 0, storeError("create maintenance run", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeError("create maintenance run", err)
	}
	return id, nil
}

func (s *SQLiteDatabase) FinishMaintenanceRun(ctx context.Context, id int64, status string, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE maintenance_runs SET status = ?, finished_at = ? WHERE id = ?`,
		status, toMillis(finishedAt), id)
	if err != nil {
		return storeError("finish maintenance run", err)
	}
	return nil
}

// ListMaintenanceRuns returns the most recent runs, newest first.
func (s *SQLiteDatabase) ListMaintenanceRuns(ctx context.Context, limit int) ([]*MaintenanceRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation, parameters, status, started_at, finished_at FROM maintenance_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, storeError("list maintenance runs", err)
	}
	defer rows.Close()

	var out []*MaintenanceRun
	for rows.Next() {
		var (
			r         MaintenanceRun
			startedAt int64
			finished  sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.Parameters, &r.Status, &startedAt, &finished); err != nil {
			return nil, storeError("scan maintenance run", err)
		}
		r.StartedAt = fromMillis(startedAt)
		r.FinishedAt = millisPtr(finished)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list maintenance runs", err)
	}
	return out, nil
}
