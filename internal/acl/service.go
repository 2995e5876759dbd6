package acl

import (
	"context"
	"time"
)

// Options tunes the engine. Zero values fall back to the defaults below.
type Options struct {
	// Workers bounds concurrent per-item applications during propagation.
	Workers int
	// ItemTimeout bounds a single item's store call during propagation.
	ItemTimeout time.Duration
	// MaxRetries bounds retries of a per-item write that lost a race.
	MaxRetries int
	// StoreTimeout bounds every other store call made by the engine.
	StoreTimeout time.Duration
}

const (
	defaultWorkers      = 4
	defaultMaxRetries   = 3
	defaultItemTimeout  = 5 * time.Second
	defaultStoreTimeout = 10 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.ItemTimeout <= 0 {
		o.ItemTimeout = defaultItemTimeout
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	return o
}

// Service is the access-control engine: permission resolution, grant
// management, recursive propagation, the request workflow and cleanup.
type Service struct {
	store      Store
	membership MembershipResolver
	archive    Archive
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	opts       Options
}

// NewService creates a Service. archive may be nil, in which case purged
// audit records are kept only in the audit log.
func NewService(store Store, membership MembershipResolver, archive Archive, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	return &Service{
		store:      store,
		membership: membership,
		archive:    archive,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		opts:       opts.withDefaults(),
	}
}

// storeCtx derives the context used for a single non-propagation store call.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// audit writes rec to the audit log. Failures are logged, never returned:
// the mutation the record describes has already committed.
func (s *Service) audit(ctx context.Context, rec *AuditRecord) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = s.clock.Now()
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.RecordAudit(sctx, rec); err != nil {
		s.logger.Warn("audit write failed", "action", rec.Action, "item", rec.ItemID, "error", err)
	}
}

// CreateItem registers a file or directory owned by ownerID.
func (s *Service) CreateItem(ctx context.Context, item *Item) (*Item, error) {
	if item.ID == "" {
		item.ID = s.idgen.New()
	}
	if !item.Type.Valid() {
		return nil, invalidf("create item", "unknown item type %q", item.Type)
	}
	if item.Visibility == "" {
		item.Visibility = VisibilityPrivate
	}
	if !item.Visibility.Valid() {
		return nil, invalidf("create item", "unknown visibility %q", item.Visibility)
	}
	if item.OwnerID == "" {
		return nil, invalidf("create item", "owner is required")
	}
	item.CreatedAt = s.clock.Now()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	created, err := s.store.CreateItem(sctx, item)
	if err != nil {
		return nil, err
	}
	s.logger.Info("item created", "item", created.ID, "type", created.Type, "parent", created.ParentID)
	return created, nil
}

// MoveItem reparents an item. newParentID may be empty to make it a root.
func (s *Service) MoveItem(ctx context.Context, id, newParentID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.MoveItem(sctx, id, newParentID); err != nil {
		return err
	}
	s.logger.Info("item moved", "item", id, "parent", newParentID)
	return nil
}

// History returns the most recent audit records, optionally for one item.
func (s *Service) History(ctx context.Context, itemID string, limit int) ([]*AuditRecord, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.store.ListAudit(sctx, itemID, limit)
}

// CreateUser registers a principal. Users are seeded by operators; the
// engine itself never creates them.
func (s *Service) CreateUser(ctx context.Context, user *User) (*User, error) {
	if user.ID == "" {
		return nil, invalidf("create user", "id is required")
	}
	if user.Name == "" {
		user.Name = user.ID
	}
	user.CreatedAt = s.clock.Now()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	created, err := s.store.CreateUser(sctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user created", "user", created.ID, "superuser", created.IsSuperuser)
	return created, nil
}

func (s *Service) CreateGroup(ctx context.Context, group *Group) (*Group, error) {
	if group.ID == "" {
		return nil, invalidf("create group", "id is required")
	}
	if group.Name == "" {
		group.Name = group.ID
	}
	group.CreatedAt = s.clock.Now()

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	created, err := s.store.CreateGroup(sctx, group)
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created", "group", created.ID)
	return created, nil
}

// AddGroupMember is idempotent. Unknown group or user is ErrInvalidRequest.
func (s *Service) AddGroupMember(ctx context.Context, groupID, userID string) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.store.AddGroupMember(sctx, groupID, userID); err != nil {
		return err
	}
	s.logger.Info("group member added", "group", groupID, "user", userID)
	return nil
}
