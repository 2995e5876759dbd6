package acl

import (
	"context"
	"errors"
	"fmt"
)

// RequestAccess files a request by requesterID for perms on itemID.
//
// The requester must already be able to read the item. Requests for
// permissions the requester fully holds, and a second pending request for
// the same (requester, item), are rejected with ErrInvalidRequest.
func (s *Service) RequestAccess(ctx context.Context, requesterID, itemID string, perms PermissionSet, reason string) (*PermissionRequest, error) {
	const op = "request access"
	if perms.IsEmpty() {
		return nil, invalidf(op, "at least one permission type is required")
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	item, err := s.store.GetItem(sctx, itemID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(sctx, requesterID)
	if err != nil {
		return nil, err
	}
	held, err := s.resolve(sctx, user, item)
	if err != nil {
		return nil, err
	}
	if held.HasAll(perms) {
		return nil, invalidf(op, "%s already holds %s on %s", requesterID, perms, itemID)
	}
	if !held.CanRead() {
		return nil, forbiddenf(op, "%s cannot read %s", requesterID, itemID)
	}

	req, err := s.store.CreateRequest(sctx, &PermissionRequest{
		ItemID:      itemID,
		RequesterID: requesterID,
		Permissions: perms,
		Reason:      reason,
		Status:      RequestPending,
		CreatedAt:   s.clock.Now(),
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, invalidf(op, "%s already has a pending request on %s", requesterID, itemID)
		}
		return nil, err
	}

	s.logger.Info("access requested", "request", req.ID, "item", itemID, "requester", requesterID, "permissions", perms)
	s.audit(ctx, &AuditRecord{
		Action:     AuditRequestCreated,
		ActorID:    requesterID,
		ItemID:     itemID,
		Permission: perms.String(),
		Detail:     fmt.Sprintf("request=%d", req.ID),
	})
	return req, nil
}

// ListRequests returns permission requests matching filter, newest first.
func (s *Service) ListRequests(ctx context.Context, filter RequestFilter) ([]*PermissionRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalidf("list requests", "unknown status %q", filter.Status)
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.ListRequests(sctx, filter)
}

// ReviewOutcome is the result of a review. Grants is empty on denial.
type ReviewOutcome struct {
	Request *PermissionRequest
	Grants  []*Grant
}

// Review approves or denies a pending request. The reviewer needs admin or
// share on the item. Approval creates one grant per requested permission,
// granted by the reviewer, in the same transaction as the status change.
func (s *Service) Review(ctx context.Context, reviewerID string, requestID int64, decision Decision, notes string) (*ReviewOutcome, error) {
	const op = "review"
	if _, err := ParseDecision(string(decision)); err != nil {
		return nil, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	req, err := s.store.GetRequest(sctx, requestID)
	if err != nil {
		return nil, err
	}
	item, err := s.store.GetItem(sctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if err := s.require(sctx, op, reviewerID, item, PermAdmin, PermShare); err != nil {
		return nil, err
	}
	if req.Status != RequestPending {
		return nil, &Error{Kind: ErrAlreadyResolved, Op: op, Msg: fmt.Sprintf("request %d is %s", requestID, req.Status)}
	}

	now := s.clock.Now()
	status := RequestDenied
	var specs []GrantSpec
	if decision == DecisionApprove {
		status = RequestApproved
		for _, p := range req.Permissions.List() {
			specs = append(specs, GrantSpec{
				ItemID:     req.ItemID,
				Target:     UserTarget(req.RequesterID),
				Permission: p,
				GrantedBy:  reviewerID,
				GrantedAt:  now,
			})
		}
	}

	resolved, grants, err := s.store.ResolveRequest(sctx, requestID, status, reviewerID, notes, now, specs)
	if err != nil {
		return nil, err
	}

	action := AuditRequestDenied
	if status == RequestApproved {
		action = AuditRequestApproved
	}
	s.logger.Info("request reviewed", "request", requestID, "item", req.ItemID, "status", status, "grants", len(grants))
	s.audit(ctx, &AuditRecord{
		Action:     action,
		ActorID:    reviewerID,
		ItemID:     req.ItemID,
		Target:     UserTarget(req.RequesterID).String(),
		Permission: req.Permissions.String(),
		Detail:     fmt.Sprintf("request=%d", requestID),
	})
	return &ReviewOutcome{Request: resolved, Grants: grants}, nil
}
