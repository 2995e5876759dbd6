package acl

import (
	"context"
	"time"
)

// CreateGrant creates a single grant on one item. The actor needs share on
// the item. An active grant for the same (item, target, permission) triple
// is a conflict; an inactive one is reactivated instead of duplicated.
func (s *Service) CreateGrant(ctx context.Context, actorID, itemID string, target GrantTarget, perm PermissionType, expiresAt *time.Time) (*Grant, error) {
	const op = "create grant"
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if !perm.Valid() {
		return nil, invalidf(op, "unknown permission type %q", perm)
	}
	now := s.clock.Now()
	if expiresAt != nil && !expiresAt.After(now) {
		return nil, invalidf(op, "expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	item, err := s.store.GetItem(sctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.require(sctx, op, actorID, item, PermShare); err != nil {
		return nil, err
	}

	g, err := s.store.CreateGrant(sctx, GrantSpec{
		ItemID:     itemID,
		Target:     target,
		Permission: perm,
		GrantedBy:  actorID,
		GrantedAt:  now,
		ExpiresAt:  expiresAt,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("grant created", "grant", g.ID, "item", itemID, "target", target, "permission", perm)
	s.audit(ctx, &AuditRecord{
		Action:     AuditGrantCreated,
		ActorID:    actorID,
		ItemID:     itemID,
		GrantID:    g.ID,
		Target:     target.String(),
		Permission: string(perm),
	})
	return g, nil
}

// UpdateGrant changes the expiry of an active grant. A nil expiresAt makes
// the grant permanent.
func (s *Service) UpdateGrant(ctx context.Context, actorID string, grantID int64, expiresAt *time.Time) (*Grant, error) {
	const op = "update grant"
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	g, item, err := s.grantForActor(sctx, op, actorID, grantID)
	if err != nil {
		return nil, err
	}
	if !g.IsActive {
		return nil, invalidf(op, "grant %d is inactive", grantID)
	}
	if expiresAt != nil && !expiresAt.After(s.clock.Now()) {
		return nil, invalidf(op, "expiry %s is not in the future", expiresAt.Format(time.RFC3339))
	}

	updated, err := s.store.UpdateGrantExpiry(sctx, grantID, expiresAt)
	if err != nil {
		return nil, err
	}

	detail := "permanent"
	if expiresAt != nil {
		detail = "expires " + expiresAt.UTC().Format(time.RFC3339)
	}
	s.logger.Info("grant updated", "grant", grantID, "item", item.ID, "expiry", detail)
	s.audit(ctx, &AuditRecord{
		Action:     AuditGrantUpdated,
		ActorID:    actorID,
		ItemID:     item.ID,
		GrantID:    grantID,
		Target:     g.Target.String(),
		Permission: string(g.Permission),
		Detail:     detail,
	})
	return updated, nil
}

// RevokeGrant deactivates a grant. Revoking an inactive grant is a no-op.
// It reports whether the grant changed state.
func (s *Service) RevokeGrant(ctx context.Context, actorID string, grantID int64) (bool, error) {
	const op = "revoke grant"
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	g, item, err := s.grantForActor(sctx, op, actorID, grantID)
	if err != nil {
		return false, err
	}
	changed, err := s.store.DeactivateGrant(sctx, grantID, s.clock.Now())
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	s.logger.Info("grant revoked", "grant", grantID, "item", item.ID, "target", g.Target)
	s.audit(ctx, &AuditRecord{
		Action:     AuditGrantRevoked,
		ActorID:    actorID,
		ItemID:     item.ID,
		GrantID:    grantID,
		Target:     g.Target.String(),
		Permission: string(g.Permission),
	})
	return true, nil
}

// ListGrants returns the grants recorded directly on an item. The actor
// needs admin on the item.
func (s *Service) ListGrants(ctx context.Context, actorID, itemID string, includeInactive bool) ([]*Grant, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	item, err := s.store.GetItem(sctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.require(sctx, "list grants", actorID, item, PermAdmin); err != nil {
		return nil, err
	}
	return s.store.ListGrants(sctx, itemID, includeInactive)
}

// grantForActor loads a grant and its item and checks the actor holds share on it.
func (s *Service) grantForActor(ctx context.Context, op, actorID string, grantID int64) (*Grant, *Item, error) {
	g, err := s.store.GetGrant(ctx, grantID)
	if err != nil {
		return nil, nil, err
	}
	item, err := s.store.GetItem(ctx, g.ItemID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.require(ctx, op, actorID, item, PermShare); err != nil {
		return nil, nil, err
	}
	return g, item, nil
}
