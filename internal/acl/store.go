package acl

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// ItemStore exposes the item tree. Items are owned by the file-operations
// subsystem; the engine only creates them for seeding and tooling.
type ItemStore interface {
	// GetItem returns ErrNotFound if the item does not exist.
	GetItem(ctx context.Context, id string) (*Item, error)

	// ListChildren returns the direct children of a directory.
	ListChildren(ctx context.Context, parentID string) ([]*Item, error)

	// CreateItem inserts a new item. The parent, if set, must be a directory.
	CreateItem(ctx context.Context, item *Item) (*Item, error)

	// MoveItem reparents an item. Moving an item under itself or one of its
	// descendants fails with ErrInvalidRequest.
	MoveItem(ctx context.Context, id, newParentID string) error
}

// PrincipalStore holds users and groups.
type PrincipalStore interface {
	GetUser(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)
	CreateGroup(ctx context.Context, group *Group) (*Group, error)
	AddGroupMember(ctx context.Context, groupID, userID string) error
}

// GrantStore is the durable home of grants. Grants are soft-deleted through
// the Deactivate* methods; only PurgeGrants removes rows.
type GrantStore interface {
	GetGrant(ctx context.Context, id int64) (*Grant, error)

	// ListGrants returns the grants on a single item, oldest first.
	ListGrants(ctx context.Context, itemID string, includeInactive bool) ([]*Grant, error)

	// ListInheritedGrants returns active grants with no expiry or an expiry
	// after now, on the item or any ancestor, whose target is the user or
	// one of the groups.
	ListInheritedGrants(ctx context.Context, itemID, userID string, groupIDs []string, now time.Time) ([]*Grant, error)

	// CreateGrant inserts a grant, reactivating the newest inactive grant for
	// the same triple if one exists. Returns ErrConflict if an active grant
	// for the triple already exists.
	CreateGrant(ctx context.Context, spec GrantSpec) (*Grant, error)

	// ApplyGrants creates, reactivates or refreshes one grant per spec in a
	// single transaction. A concurrent writer racing on the same triple
	// surfaces as ErrConflict or ErrBusy and the whole call may be retried.
	ApplyGrants(ctx context.Context, specs []GrantSpec) ([]*Grant, error)

	// UpdateGrantExpiry sets or clears expires_at on an active grant.
	UpdateGrantExpiry(ctx context.Context, id int64, expiresAt *time.Time) (*Grant, error)

	// DeactivateGrant flips an active grant to inactive. It reports false if
	// the grant was already inactive.
	DeactivateGrant(ctx context.Context, id int64, at time.Time) (bool, error)

	// DeactivateMatching deactivates the active grants on one item for the
	// target whose permission type is in perms. Returns the number changed.
	DeactivateMatching(ctx context.Context, itemID string, target GrantTarget, perms PermissionSet, at time.Time) (int, error)
}

// RequestStore persists permission requests.
type RequestStore interface {
	// CreateRequest returns ErrConflict if the requester already has a
	// pending request on the item.
	CreateRequest(ctx context.Context, req *PermissionRequest) (*PermissionRequest, error)
	GetRequest(ctx context.Context, id int64) (*PermissionRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]*PermissionRequest, error)

	// ResolveRequest moves a pending request to a terminal status and applies
	// the grants in the same transaction. Returns ErrAlreadyResolved if the
	// request is no longer pending.
	ResolveRequest(ctx context.Context, id int64, status RequestStatus, reviewerID, notes string, at time.Time, grants []GrantSpec) (*PermissionRequest, []*Grant, error)
}

// SweepStore backs the cleanup engine. Candidate scans are keyset paginated
// on grant id: they return up to limit ids greater than afterID, ascending.
type SweepStore interface {
	CountExpiredGrants(ctx context.Context, now time.Time) (int, error)
	ExpiredGrantIDs(ctx context.Context, afterID int64, now time.Time, limit int) ([]int64, error)

	// DeactivateExpiredGrants deactivates those of ids that are still active
	// and expired at now, in one transaction.
	DeactivateExpiredGrants(ctx context.Context, ids []int64, now time.Time) (int, error)

	CountPurgeableGrants(ctx context.Context, cutoff time.Time) (int, error)
	PurgeableGrantIDs(ctx context.Context, afterID int64, cutoff time.Time, limit int) ([]int64, error)

	// PurgeGrants deletes those of ids that are inactive and were deactivated
	// before cutoff. In the same transaction, before deleting, it writes one
	// grant_purged audit record per row; those records are returned.
	PurgeGrants(ctx context.Context, ids []int64, cutoff time.Time, actorID string, at time.Time) ([]*AuditRecord, error)
}

// AuditStore holds the audit log.
type AuditStore interface {
	RecordAudit(ctx context.Context, rec *AuditRecord) error
	ListAudit(ctx context.Context, itemID string, limit int) ([]*AuditRecord, error)
}

// Store is everything the engine needs from durable storage.
type Store interface {
	ItemStore
	PrincipalStore
	GrantStore
	RequestStore
	SweepStore
	AuditStore
}

// MembershipResolver returns the ids of the groups a user belongs to.
type MembershipResolver interface {
	GroupsForUser(ctx context.Context, userID string) ([]string, error)
}

// Archive is blob storage for exported audit segments.
type Archive interface {
	// Put stores the segment under key. size is the number of bytes in r.
	Put(ctx context.Context, key string, r io.Reader, size int64) error

	// Get writes the segment stored under key to w.
	Get(ctx context.Context, key string, w io.Writer) error
}

// Logger provides structured logging for the engine.
// The args follow slog conventions: alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger discards everything. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}

// Clock lets tests pin "now". Expiry checks only ever use the injected clock.
type Clock interface {
	Now() time.Time
}

// RealClock is the wall clock in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator produces item and run identifiers.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }
