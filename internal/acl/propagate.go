package acl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ItemFailure records why propagation could not be applied to one item.
type ItemFailure struct {
	ItemID string
	Reason string
}

// PropagationReport is the outcome of a recursive share or unshare. Failures
// on individual items are collected here instead of aborting the walk.
type PropagationReport struct {
	Total   int // items visited
	Granted int // grants created, reactivated or refreshed
	Revoked int // grants deactivated
	Failed  []ItemFailure
}

// PartialFailure reports whether any item failed.
func (r *PropagationReport) PartialFailure() bool { return len(r.Failed) > 0 }

// Succeeded is the number of visited items that did not fail.
func (r *PropagationReport) Succeeded() int { return r.Total - len(r.Failed) }

// ShareRecursively grants perms to target on itemID and, for a directory,
// on every descendant. The actor needs share on itemID.
func (s *Service) ShareRecursively(ctx context.Context, actorID, itemID string, target GrantTarget, perms PermissionSet, expiresAt *time.Time) (*PropagationReport, error) {
	const op = "share"
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if perms.IsEmpty() {
		return nil, invalidf(op, "at least one permission type is required")
	}
	now := s.clock.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, invalidf(op, "expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}

	root, err := s.authorizeRoot(ctx, op, actorID, itemID)
	if err != nil {
		return nil, err
	}

	report, applied := s.walk(ctx, root, func(ctx context.Context, item *Item) (int, error) {
		specs := make([]GrantSpec, 0, 5)
		for _, p := range perms.List() {
			specs = append(specs, GrantSpec{
				ItemID:     item.ID,
				Target:     target,
				Permission: p,
				GrantedBy:  actorID,
				GrantedAt:  now,
				ExpiresAt:  expiresAt,
			})
		}
		grants, err := s.retry(ctx, func(ctx context.Context) ([]*Grant, error) {
			return s.store.ApplyGrants(ctx, specs)
		})
		return len(grants), err
	})
	report.Granted = applied

	s.logger.Info("recursive share finished",
		"item", itemID, "target", target, "permissions", perms,
		"items", report.Total, "grants", report.Granted, "failed", len(report.Failed))
	s.audit(ctx, &AuditRecord{
		Action:     AuditRecursiveShare,
		ActorID:    actorID,
		ItemID:     itemID,
		Target:     target.String(),
		Permission: perms.String(),
		Detail:     fmt.Sprintf("items=%d granted=%d failed=%d", report.Total, report.Granted, len(report.Failed)),
	})
	return report, nil
}

// UnshareRecursively deactivates the active grants for target on itemID and
// every descendant whose permission type is in perms. An empty perms revokes
// every permission type. Grants are never deleted here.
func (s *Service) UnshareRecursively(ctx context.Context, actorID, itemID string, target GrantTarget, perms PermissionSet) (*PropagationReport, error) {
	const op = "unshare"
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if perms.IsEmpty() {
		perms = FullPermissions
	}

	root, err := s.authorizeRoot(ctx, op, actorID, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	report, revoked := s.walk(ctx, root, func(ctx context.Context, item *Item) (int, error) {
		return s.retryCount(ctx, func(ctx context.Context) (int, error) {
			return s.store.DeactivateMatching(ctx, item.ID, target, perms, now)
		})
	})
	report.Revoked = revoked

	s.logger.Info("recursive unshare finished",
		"item", itemID, "target", target, "permissions", perms,
		"items", report.Total, "revoked", report.Revoked, "failed", len(report.Failed))
	s.audit(ctx, &AuditRecord{
		Action:     AuditRecursiveUnshare,
		ActorID:    actorID,
		ItemID:     itemID,
		Target:     target.String(),
		Permission: perms.String(),
		Detail:     fmt.Sprintf("items=%d revoked=%d failed=%d", report.Total, report.Revoked, len(report.Failed)),
	})
	return report, nil
}

// authorizeRoot loads the root of a propagation and checks the actor holds share on it.
func (s *Service) authorizeRoot(ctx context.Context, op, actorID, itemID string) (*Item, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	item, err := s.store.GetItem(sctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.require(sctx, op, actorID, item, PermShare); err != nil {
		return nil, err
	}
	return item, nil
}

// walk visits root and, for directories, every descendant, breadth first over
// the children index. Each level's items are applied concurrently, bounded by
// the configured worker count. apply runs under the per-item timeout; its
// error, or a failure to list a directory's children, is recorded against
// that item and never stops the walk. The counts apply reports for
// successful items are summed into the second return value.
func (s *Service) walk(ctx context.Context, root *Item, apply func(ctx context.Context, item *Item) (int, error)) (*PropagationReport, int) {
	report := &PropagationReport{}
	applied := 0
	var mu sync.Mutex
	fail := func(itemID string, err error) {
		mu.Lock()
		report.Failed = append(report.Failed, ItemFailure{ItemID: itemID, Reason: err.Error()})
		mu.Unlock()
	}

	level := []*Item{root}
	seen := map[string]bool{root.ID: true}
	for len(level) > 0 {
		report.Total += len(level)
		var next []*Item

		// Plain Group, not WithContext: one item failing must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(s.opts.Workers)
		for _, item := range level {
			g.Go(func() error {
				if n, err := s.applyItem(ctx, item, apply); err != nil {
					fail(item.ID, err)
					s.logger.Warn("propagation failed for item", "item", item.ID, "error", err)
				} else {
					mu.Lock()
					applied += n
					mu.Unlock()
				}
				if !item.IsDir() {
					return nil
				}

				// A timed-out write on a directory still lists its children.
				lctx, cancel := context.WithTimeout(ctx, s.opts.ItemTimeout)
				defer cancel()
				children, err := s.store.ListChildren(lctx, item.ID)
				if err != nil {
					fail(item.ID, fmt.Errorf("listing children: %w", err))
					s.logger.Warn("listing children failed", "item", item.ID, "error", err)
					return nil
				}
				mu.Lock()
				for _, c := range children {
					if !seen[c.ID] {
						seen[c.ID] = true
						next = append(next, c)
					}
				}
				mu.Unlock()
				return nil
			})
		}
		g.Wait()
		level = next
	}
	return report, applied
}

func (s *Service) applyItem(ctx context.Context, item *Item, apply func(ctx context.Context, item *Item) (int, error)) (int, error) {
	ictx, cancel := context.WithTimeout(ctx, s.opts.ItemTimeout)
	defer cancel()
	return apply(ictx, item)
}

// retry runs fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent.
func (s *Service) retry(ctx context.Context, fn func(ctx context.Context) ([]*Grant, error)) ([]*Grant, error) {
	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		grants, err := fn(ctx)
		if err == nil {
			return grants, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("retrying grant write", "attempt", attempt+1, "error", err)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", s.opts.MaxRetries+1, lastErr)
}

func (s *Service) retryCount(ctx context.Context, fn func(ctx context.Context) (int, error)) (int, error) {
	var n int
	_, err := s.retry(ctx, func(ctx context.Context) ([]*Grant, error) {
		var err error
		n, err = fn(ctx)
		return nil, err
	})
	return n, err
}
