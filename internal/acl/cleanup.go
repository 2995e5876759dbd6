package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SweepOptions bound a single cleanup sweep.
type SweepOptions struct {
	BatchSize int  // rows per transaction; defaults to 1000
	MaxRows   int  // stop after this many rows are processed; 0 means no cap
	DryRun    bool // count candidates without mutating anything
	ActorID   string
}

const defaultBatchSize = 1000

// SweepResult summarizes one sweep. In dry-run mode only Candidates is set.
type SweepResult struct {
	Candidates    int
	Processed     int
	Batches       int
	FailedBatches int
	DryRun        bool
}

// ErrSweepFailed is returned when every batch of a sweep failed.
var ErrSweepFailed = errors.New("cleanup sweep failed")

// DeactivateExpired flips every active grant whose expiry has passed to
// inactive. Re-running it without the clock advancing changes nothing.
func (s *Service) DeactivateExpired(ctx context.Context, opts SweepOptions) (*SweepResult, error) {
	now := s.clock.Now()
	return s.sweep(ctx, "deactivate expired", opts,
		func(ctx context.Context) (int, error) { return s.store.CountExpiredGrants(ctx, now) },
		func(ctx context.Context, after int64, limit int) ([]int64, error) {
			return s.store.ExpiredGrantIDs(ctx, after, now, limit)
		},
		func(ctx context.Context, ids []int64) (int, error) {
			return s.store.DeactivateExpiredGrants(ctx, ids, now)
		},
	)
}

// PurgeInactive hard-deletes grants that have been inactive for longer than
// retentionDays. Each deleted grant leaves a grant_purged audit record written
// in the same transaction; the records of each batch are then exported to the
// archive, if one is configured.
func (s *Service) PurgeInactive(ctx context.Context, retentionDays int, opts SweepOptions) (*SweepResult, error) {
	if retentionDays < 0 {
		return nil, invalidf("purge inactive", "retention days must not be negative, got %d", retentionDays)
	}
	now := s.clock.Now()
	cutoff := now.Add(-time.Duration(retentionDays) * 24 * time.Hour)
	actor := opts.ActorID
	if actor == "" {
		actor = "system"
	}

	return s.sweep(ctx, "purge inactive", opts,
		func(ctx context.Context) (int, error) { return s.store.CountPurgeableGrants(ctx, cutoff) },
		func(ctx context.Context, after int64, limit int) ([]int64, error) {
			return s.store.PurgeableGrantIDs(ctx, after, cutoff, limit)
		},
		func(ctx context.Context, ids []int64) (int, error) {
			records, err := s.store.PurgeGrants(ctx, ids, cutoff, actor, now)
			if err != nil {
				return 0, err
			}
			s.exportAudit(ctx, records)
			return len(records), nil
		},
	)
}

// sweep runs a keyset-paginated batch job. A failing batch is logged, counted
// and skipped; a failing candidate scan, or every batch failing, ends the
// sweep with an error. Progress made by earlier batches is kept either way.
func (s *Service) sweep(
	ctx context.Context,
	name string,
	opts SweepOptions,
	count func(ctx context.Context) (int, error),
	scan func(ctx context.Context, after int64, limit int) ([]int64, error),
	process func(ctx context.Context, ids []int64) (int, error),
) (*SweepResult, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	result := &SweepResult{DryRun: opts.DryRun}

	cctx, cancel := s.storeCtx(ctx)
	candidates, err := count(cctx)
	cancel()
	if err != nil {
		return result, fmt.Errorf("%s: counting candidates: %w", name, err)
	}
	result.Candidates = candidates
	if opts.DryRun || candidates == 0 {
		s.logger.Info("cleanup sweep finished", "sweep", name, "candidates", candidates, "dry_run", opts.DryRun)
		return result, nil
	}

	var cursor int64
	for {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("%s: %w", name, err)
		}
		limit := batchSize
		if opts.MaxRows > 0 {
			remaining := opts.MaxRows - result.Processed
			if remaining <= 0 {
				break
			}
			limit = min(limit, remaining)
		}

		sctx, cancel := s.storeCtx(ctx)
		ids, err := scan(sctx, cursor, limit)
		cancel()
		if err != nil {
			return result, fmt.Errorf("%s: scanning candidates after id %d: %w", name, cursor, err)
		}
		if len(ids) == 0 {
			break
		}
		cursor = ids[len(ids)-1]
		result.Batches++

		bctx, cancel := s.storeCtx(ctx)
		n, err := process(bctx, ids)
		cancel()
		if err != nil {
			result.FailedBatches++
			s.logger.Error("cleanup batch failed", "sweep", name, "first_id", ids[0], "last_id", cursor, "error", err)
			continue
		}
		result.Processed += n
		s.logger.Debug("cleanup batch committed", "sweep", name, "rows", n, "last_id", cursor)
	}

	s.logger.Info("cleanup sweep finished", "sweep", name,
		"candidates", result.Candidates, "processed", result.Processed,
		"batches", result.Batches, "failed_batches", result.FailedBatches)
	if result.Batches > 0 && result.FailedBatches == result.Batches {
		return result, fmt.Errorf("%s: %w: all %d batches failed", name, ErrSweepFailed, result.Batches)
	}
	return result, nil
}

// exportAudit writes records as a JSON-lines segment to the archive. The
// purge has already committed, so failures are only logged.
func (s *Service) exportAudit(ctx context.Context, records []*AuditRecord) {
	if s.archive == nil || len(records) == 0 {
		return
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			s.logger.Error("encoding audit segment", "error", err)
			return
		}
	}
	key := fmt.Sprintf("audit/%s-%s.jsonl", s.clock.Now().UTC().Format("20060102T150405Z"), s.idgen.New())
	if err := s.archive.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		s.logger.Error("exporting audit segment", "key", key, "records", len(records), "error", err)
		return
	}
	s.logger.Info("audit segment exported", "key", key, "records", len(records))
}

// CleanupPolicy selects what a combined cleanup run does. It is passed in
// explicitly by the caller; the engine holds no cleanup settings of its own.
type CleanupPolicy struct {
	DeactivateExpired bool
	PurgeInactive     bool
	RetentionDays     int
	BatchSize         int
	MaxPerRun         int
	DryRun            bool
}

// CleanupReport holds the results of a combined run. A nil entry means that
// sweep was not selected.
type CleanupReport struct {
	Expired *SweepResult
	Purged  *SweepResult
}

// RunCleanup deactivates expired grants and then purges old inactive ones,
// as selected by policy. Both sweeps run even if the first fails.
func (s *Service) RunCleanup(ctx context.Context, policy CleanupPolicy) (*CleanupReport, error) {
	opts := SweepOptions{BatchSize: policy.BatchSize, MaxRows: policy.MaxPerRun, DryRun: policy.DryRun}
	report := &CleanupReport{}
	var errs []error

	if policy.DeactivateExpired {
		res, err := s.DeactivateExpired(ctx, opts)
		report.Expired = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	if policy.PurgeInactive {
		res, err := s.PurgeInactive(ctx, policy.RetentionDays, opts)
		report.Purged = res
		if err != nil {
			errs = append(errs, err)
		}
	}
	return report, errors.Join(errs...)
}
