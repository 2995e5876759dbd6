package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"acl-go/internal/acl"
)

// Cleanup queries. Expired means active with expires_at <= now. Purgeable
// means inactive since before the cutoff; grants deactivated before the
// deactivated_at column existed fall back to granted_at.

const (
	expiredPredicate   = `is_active = 1 AND expires_at IS NOT NULL AND expires_at <= ?`
	purgeablePredicate = `is_active = 0 AND COALESCE(deactivated_at, granted_at) < ?`
)

func (s *SQLiteDatabase) CountExpiredGrants(ctx context.Context, now time.Time) (int, error) {
	return s.countGrants(ctx, "count expired grants", expiredPredicate, toMillis(now))
}

func (s *SQLiteDatabase) ExpiredGrantIDs(ctx context.Context, afterID int64, now time.Time, limit int) ([]int64, error) {
	return s.grantIDs(ctx, "scan expired grants", expiredPredicate, toMillis(now), afterID, limit)
}

// DeactivateExpiredGrants is a single UPDATE and so commits atomically. The
// predicate is re-applied so ids that changed since the scan are skipped.
func (s *SQLiteDatabase) DeactivateExpiredGrants(ctx context.Context, ids []int64, now time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{toMillis(now)}, int64Args(ids)...)
	args = append(args, toMillis(now))
	res, err := s.db.ExecContext(ctx,
		`UPDATE grants SET is_active = 0, deactivated_at = ?
		 WHERE id IN (`+placeholders(len(ids))+`) AND `+expiredPredicate, args...)
	if err != nil {
		return 0, storeError("deactivate expired grants", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("deactivate expired grants", err)
	}
	return int(n), nil
}

func (s *SQLiteDatabase) CountPurgeableGrants(ctx context.Context, cutoff time.Time) (int, error) {
	return s.countGrants(ctx, "count purgeable grants", purgeablePredicate, toMillis(cutoff))
}

func (s *SQLiteDatabase) PurgeableGrantIDs(ctx context.Context, afterID int64, cutoff time.Time, limit int) ([]int64, error) {
	return s.grantIDs(ctx, "scan purgeable grants", purgeablePredicate, toMillis(cutoff), afterID, limit)
}

// PurgeGrants writes the audit rows and deletes the grants in one transaction:
// a grant is never gone without its grant_purged record.
func (s *SQLiteDatabase) PurgeGrants(ctx context.Context, ids []int64, cutoff time.Time, actorID string, at time.Time) ([]*acl.AuditRecord, error) {
	const op = "purge grants"
	if len(ids) == 0 {
		return nil, nil
	}

	var records []*acl.AuditRecord
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		args := append(int64Args(ids), toMillis(cutoff))
		rows, err := tx.QueryContext(ctx,
			`SELECT `+grantColumns+` FROM grants WHERE id IN (`+placeholders(len(ids))+`) AND `+purgeablePredicate+` ORDER BY id`,
			args...)
		if err != nil {
			return storeError(op, err)
		}
		victims, err := scanGrants(rows, op)
		if err != nil {
			return err
		}
		if len(victims) == 0 {
			return nil
		}

		deleteIDs := make([]int64, 0, len(victims))
		for _, g := range victims {
			rec := &acl.AuditRecord{
				Action:     acl.AuditGrantPurged,
				ActorID:    actorID,
				ItemID:     g.ItemID,
				GrantID:    g.ID,
				Target:     g.Target.String(),
				Permission: string(g.Permission),
				Detail:     purgeDetail(g),
				RecordedAt: at,
			}
			if err := insertAudit(ctx, tx, rec); err != nil {
				return err
			}
			records = append(records, rec)
			deleteIDs = append(deleteIDs, g.ID)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM grants WHERE id IN (`+placeholders(len(deleteIDs))+`)`, int64Args(deleteIDs)...); err != nil {
			return storeError(op, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// purgeDetail keeps enough of a deleted grant to answer who granted it and when.
func purgeDetail(g *acl.Grant) string {
	detail := fmt.Sprintf("granted_by=%s granted_at=%s", g.GrantedBy, g.GrantedAt.Format(time.RFC3339))
	if g.DeactivatedAt != nil {
		detail += " deactivated_at=" + g.DeactivatedAt.Format(time.RFC3339)
	}
	if g.ExpiresAt != nil {
		detail += " expires_at=" + g.ExpiresAt.Format(time.RFC3339)
	}
	return detail
}

func (s *SQLiteDatabase) countGrants(ctx context.Context, op, predicate string, arg int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM grants WHERE `+predicate, arg).Scan(&n); err != nil {
		return 0, storeError(op, err)
	}
	return n, nil
}

func (s *SQLiteDatabase) grantIDs(ctx context.Context, op, predicate string, arg int64, afterID int64, limit int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM grants WHERE `+predicate+` AND id > ? ORDER BY id LIMIT ?`, arg, afterID, limit)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeError(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return ids, nil
}
