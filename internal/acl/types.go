package acl

import "time"

// ItemType distinguishes files from directories.
type ItemType string

const (
	ItemFile      ItemType = "file"
	ItemDirectory ItemType = "directory"
)

func (t ItemType) Valid() bool { return t == ItemFile || t == ItemDirectory }

// Visibility is the coarse sharing flag on an item. Only VisibilityPublic
// carries permission semantics (implicit read); the others are informational.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityUser    Visibility = "user"
	VisibilityGroup   Visibility = "group"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPrivate, VisibilityUser, VisibilityGroup, VisibilityPublic:
		return true
	}
	return false
}

// Item is a file or directory as seen by the access-control engine.
// ParentID is empty for roots.
type Item struct {
	ID         string
	Name       string
	Type       ItemType
	ParentID   string
	OwnerID    string
	Visibility Visibility
	CreatedAt  time.Time
}

func (i *Item) IsDir() bool { return i.Type == ItemDirectory }

// User is a principal that can own items and receive grants.
type User struct {
	ID          string
	Name        string
	IsSuperuser bool
	CreatedAt   time.Time
}

// Group is a named set of users. Membership is read through MembershipResolver.
type Group struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Grant authorizes one target to exercise one permission type on one item.
type Grant struct {
	ID            int64
	ItemID        string
	Target        GrantTarget
	Permission    PermissionType
	GrantedBy     string
	GrantedAt     time.Time
	ExpiresAt     *time.Time
	IsActive      bool
	DeactivatedAt *time.Time
}

// Expired reports whether the grant has an expiry at or before now.
func (g *Grant) Expired(now time.Time) bool {
	return g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// Effective reports whether the grant counts during resolution at now.
func (g *Grant) Effective(now time.Time) bool {
	return g.IsActive && !g.Expired(now)
}

// GrantSpec describes a grant to create or reactivate.
type GrantSpec struct {
	ItemID     string
	Target     GrantTarget
	Permission PermissionType
	GrantedBy  string
	GrantedAt  time.Time
	ExpiresAt  *time.Time
}

// RequestStatus is the lifecycle state of a permission request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

func (s RequestStatus) Valid() bool {
	return s == RequestPending || s == RequestApproved || s == RequestDenied
}

// PermissionRequest is a user's ask for permissions they do not hold.
type PermissionRequest struct {
	ID          int64
	ItemID      string
	RequesterID string
	Permissions PermissionSet
	Reason      string
	Status      RequestStatus
	ReviewNotes string
	ReviewedBy  string
	ReviewedAt  *time.Time
	CreatedAt   time.Time
}

// RequestFilter narrows ListRequests. Empty fields match everything.
type RequestFilter struct {
	Status      RequestStatus
	ItemID      string
	RequesterID string
	Limit       int
}

// Decision is a reviewer's verdict on a pending request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionApprove, DecisionDeny:
		return Decision(s), nil
	}
	return "", invalidf("parse decision", "decision must be %q or %q, got %q", DecisionApprove, DecisionDeny, s)
}

// Audit actions.
const (
	AuditGrantCreated     = "grant_created"
	AuditGrantUpdated     = "grant_updated"
	AuditGrantRevoked     = "grant_revoked"
	AuditRecursiveShare   = "recursive_share"
	AuditRecursiveUnshare = "recursive_unshare"
	AuditRequestCreated   = "request_created"
	AuditRequestApproved  = "request_approved"
	AuditRequestDenied    = "request_denied"
	AuditGrantPurged      = "grant_purged"
)

// AuditRecord is a durable who/what/when line. Target and Permission are
// empty for actions that do not concern a single grant.
type AuditRecord struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	ActorID    string    `json:"actor_id"`
	ItemID     string    `json:"item_id"`
	GrantID    int64     `json:"grant_id,omitempty"`
	Target     string    `json:"target,omitempty"`
	Permission string    `json:"permission,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}
