package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"acl-go/internal/acl"
	"acl-go/internal/archive"
	"acl-go/internal/config"
	"acl-go/internal/database"
	"acl-go/internal/database/migrations"
	"acl-go/internal/membership"
)

// ACLApp is the application layer between the CLI and acl.Service.
// It constructs all dependencies from config, exposes operations that accept
// raw strings from the command line, and records mutating invocations as
// maintenance runs.
type ACLApp struct {
	cfg       *config.Config
	cleanup   config.CleanupSettings
	db        *database.SQLiteDatabase
	archive   archive.Store
	cache     *membership.RedisCache
	service   *acl.Service
	clock     acl.Clock
	logger    acl.Logger
	scheduler *acl.Scheduler
	op        *Operation
	runID     string
	logFile   *os.File
}

// NewACLApp creates a fully wired ACLApp from the given config.
// operation names the CLI command being run (e.g. "Share", "CleanupAll") and
// args are recorded with it. The caller must call Close when done.
func NewACLApp(ctx context.Context, cfg *config.Config, operation string, args ...string) (*ACLApp, error) {
	return newACLApp(ctx, cfg, acl.RealClock{}, operation, args...)
}

func newACLApp(ctx context.Context, cfg *config.Config, clock acl.Clock, operation string, args ...string) (*ACLApp, error) {
	cleanup, err := cfg.Cleanup.Settings()
	if err != nil {
		return nil, fmt.Errorf("invalid cleanup config: %w", err)
	}

	runID := uuid.NewString()
	sl, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: sl}

	a := &ACLApp{
		cfg:     cfg,
		cleanup: cleanup,
		clock:   clock,
		logger:  logger,
		op:      NewOperation(operation, args...),
		runID:   runID,
		logFile: logFile,
	}

	a.db, err = database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("creating database: %w", err)
	}

	// An in-memory database starts empty on every run.
	if cfg.Database.Type == "memory" {
		err = a.db.Migrate()
	} else {
		err = a.db.CheckMigrations()
		if err != nil {
			err = fmt.Errorf("database schema out of date (run `acl db migrate`): %w", err)
		}
	}
	if err != nil {
		a.closeResources()
		return nil, err
	}

	a.archive, err = archive.NewArchiveFromConfig(ctx, cfg.Archive)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("creating archive: %w", err)
	}

	var resolver acl.MembershipResolver = a.db
	switch cfg.Membership.Cache {
	case "", "none":
	case "redis":
		a.cache, err = membership.NewRedisCache(cfg.Membership.RedisURL, a.db, cfg.Membership.TTL(), logger)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("creating membership cache: %w", err)
		}
		resolver = a.cache
	default:
		a.closeResources()
		return nil, fmt.Errorf("unknown membership cache: %s", cfg.Membership.Cache)
	}

	var arc acl.Archive
	if a.archive != nil {
		arc = a.archive
	}

	a.service = acl.NewService(a.db, resolver, arc, logger, clock, acl.UUIDGenerator{}, acl.Options{
		Workers:      cfg.Propagation.Workers,
		ItemTimeout:  cfg.Propagation.ItemTimeout(),
		MaxRetries:   cfg.Propagation.MaxRetries,
		StoreTimeout: cfg.Store.Timeout(),
	})
	return a, nil
}

// persistOperation records the invocation as a maintenance run so history
// shows it. It is called only by mutating commands.
func (a *ACLApp) persistOperation(ctx context.Context) error {
	if a.op.Persisted() {
		return nil
	}
	id, err := a.db.CreateMaintenanceRun(ctx, a.op.Operation, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = id
	a.logger.Debug("operation started", "run", a.op.ID, "operation", a.op.Operation, "parameters", a.op.Parameters)
	return nil
}

// Principals and items

func (a *ACLApp) AddUser(ctx context.Context, id, name string, superuser bool) (*acl.User, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	u, err := a.service.CreateUser(ctx, &acl.User{ID: id, Name: name, IsSuperuser: superuser})
	return u, a.op.Fail(err)
}

func (a *ACLApp) AddGroup(ctx context.Context, id, name string) (*acl.Group, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	g, err := a.service.CreateGroup(ctx, &acl.Group{ID: id, Name: name})
	return g, a.op.Fail(err)
}

// JoinGroup adds userID to groupID and drops the user's cached membership.
func (a *ACLApp) JoinGroup(ctx context.Context, groupID, userID string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	if err := a.service.AddGroupMember(ctx, groupID, userID); err != nil {
		return a.op.Fail(err)
	}
	if a.cache != nil {
		if err := a.cache.Invalidate(ctx, userID); err != nil {
			a.logger.Warn("invalidating cached membership", "user", userID, "error", err)
		}
	}
	return nil
}

// AddItem registers a file or directory. An empty id is generated.
func (a *ACLApp) AddItem(ctx context.Context, id, name, itemType, parentID, ownerID, visibility string) (*acl.Item, error) {
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	item, err := a.service.CreateItem(ctx, &acl.Item{
		ID:         id,
		Name:       name,
		Type:       acl.ItemType(itemType),
		ParentID:   parentID,
		OwnerID:    ownerID,
		Visibility: acl.Visibility(visibility),
	})
	return item, a.op.Fail(err)
}

func (a *ACLApp) MoveItem(ctx context.Context, id, newParentID string) error {
	if err := a.persistOperation(ctx); err != nil {
		return err
	}
	return a.op.Fail(a.service.MoveItem(ctx, id, newParentID))
}

// Resolve returns the effective permissions of userID on itemID.
func (a *ACLApp) Resolve(ctx context.Context, userID, itemID string) (acl.PermissionSet, error) {
	return a.service.ResolvePermissions(ctx, userID, itemID)
}

// Grants

func (a *ACLApp) CreateGrant(ctx context.Context, actorID, itemID, rawTarget, rawPerm, rawExpiry string) (*acl.Grant, error) {
	target, err := acl.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	perm, err := acl.ParsePermissionType(rawPerm)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseExpiry(rawExpiry, a.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	g, err := a.service.CreateGrant(ctx, actorID, itemID, target, perm, expiresAt)
	return g, a.op.Fail(err)
}

// UpdateGrant changes a grant's expiry. "" or "never" clears it.
func (a *ACLApp) UpdateGrant(ctx context.Context, actorID, rawGrantID, rawExpiry string) (*acl.Grant, error) {
	id, err := parseID("grant", rawGrantID)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseExpiry(rawExpiry, a.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	g, err := a.service.UpdateGrant(ctx, actorID, id, expiresAt)
	return g, a.op.Fail(err)
}

// RevokeGrant deactivates a grant. It reports false if it was already inactive.
func (a *ACLApp) RevokeGrant(ctx context.Context, actorID, rawGrantID string) (bool, error) {
	id, err := parseID("grant", rawGrantID)
	if err != nil {
		return false, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return false, err
	}
	changed, err := a.service.RevokeGrant(ctx, actorID, id)
	if err != nil {
		return false, a.op.Fail(err)
	}
	if changed {
		a.afterDeactivation(ctx)
	}
	return changed, nil
}

func (a *ACLApp) ListGrants(ctx context.Context, actorID, itemID string, includeInactive bool) ([]*acl.Grant, error) {
	return a.service.ListGrants(ctx, actorID, itemID, includeInactive)
}

// Share grants rawPerms to rawTarget on itemID and every descendant.
func (a *ACLApp) Share(ctx context.Context, actorID, itemID, rawTarget, rawPerms, rawExpiry string) (*acl.PropagationReport, error) {
	target, err := acl.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	perms, err := parsePermissions(rawPerms)
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseExpiry(rawExpiry, a.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	report, err := a.service.ShareRecursively(ctx, actorID, itemID, target, perms, expiresAt)
	if err == nil && report.PartialFailure() {
		a.op.Status = "partial"
	}
	return report, a.op.Fail(err)
}

// Unshare revokes rawPerms (every type when empty) from rawTarget on itemID
// and every descendant.
func (a *ACLApp) Unshare(ctx context.Context, actorID, itemID, rawTarget, rawPerms string) (*acl.PropagationReport, error) {
	target, err := acl.ParseTarget(rawTarget)
	if err != nil {
		return nil, err
	}
	perms, err := parsePermissions(rawPerms)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	report, err := a.service.UnshareRecursively(ctx, actorID, itemID, target, perms)
	if err != nil {
		return nil, a.op.Fail(err)
	}
	if report.PartialFailure() {
		a.op.Status = "partial"
	}
	if report.Revoked > 0 {
		a.afterDeactivation(ctx)
	}
	return report, nil
}

// afterDeactivation triggers cleanup once grants were revoked, when the
// policy asks for it. A running scheduler is notified; otherwise expired
// grants are swept inline.
func (a *ACLApp) afterDeactivation(ctx context.Context) {
	if !a.cleanup.CleanupOnDeactivation {
		return
	}
	if a.scheduler != nil {
		a.scheduler.Notify()
		return
	}
	res, err := a.service.DeactivateExpired(ctx, acl.SweepOptions{BatchSize: a.cleanup.BatchSize, MaxRows: a.cleanup.MaxPerRun})
	if err != nil {
		a.logger.Warn("cleanup after deactivation failed", "error", err)
		return
	}
	a.logger.Debug("cleanup after deactivation", "deactivated", res.Processed)
}

// Requests

func (a *ACLApp) RequestAccess(ctx context.Context, requesterID, itemID, rawPerms, reason string) (*acl.PermissionRequest, error) {
	perms, err := parsePermissions(rawPerms)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	req, err := a.service.RequestAccess(ctx, requesterID, itemID, perms, reason)
	return req, a.op.Fail(err)
}

func (a *ACLApp) ListRequests(ctx context.Context, status, itemID, requesterID string, limit int) ([]*acl.PermissionRequest, error) {
	return a.service.ListRequests(ctx, acl.RequestFilter{
		Status:      acl.RequestStatus(status),
		ItemID:      itemID,
		RequesterID: requesterID,
		Limit:       limit,
	})
}

func (a *ACLApp) Review(ctx context.Context, reviewerID, rawRequestID, rawDecision, notes string) (*acl.ReviewOutcome, error) {
	id, err := parseID("request", rawRequestID)
	if err != nil {
		return nil, err
	}
	decision, err := acl.ParseDecision(rawDecision)
	if err != nil {
		return nil, err
	}
	if err := a.persistOperation(ctx); err != nil {
		return nil, err
	}
	out, err := a.service.Review(ctx, reviewerID, id, decision, notes)
	return out, a.op.Fail(err)
}

// Cleanup

// CleanupOptions are command-line overrides of the configured cleanup policy.
type CleanupOptions struct {
	DryRun        bool
	BatchSize     int  // 0 keeps the configured batch size
	RetentionDays *int // nil keeps the configured retention
	SkipExpired   bool
	SkipInactive  bool
}

// Policy resolves the effective cleanup policy for opts.
func (a *ACLApp) Policy(opts CleanupOptions) acl.CleanupPolicy {
	p := acl.CleanupPolicy{
		DeactivateExpired: a.cleanup.DeactivateExpired && !opts.SkipExpired,
		PurgeInactive:     a.cleanup.PurgeInactive && !opts.SkipInactive,
		RetentionDays:     a.cleanup.RetentionDays,
		BatchSize:         a.cleanup.BatchSize,
		MaxPerRun:         a.cleanup.MaxPerRun,
		DryRun:            opts.DryRun,
	}
	if opts.BatchSize > 0 {
		p.BatchSize = opts.BatchSize
	}
	if opts.RetentionDays != nil {
		p.RetentionDays = *opts.RetentionDays
	}
	return p
}

func (a *ACLApp) CleanupExpired(ctx context.Context, opts CleanupOptions) (*acl.SweepResult, error) {
	p := a.Policy(opts)
	if !p.DryRun {
		if err := a.persistOperation(ctx); err != nil {
			return nil, err
		}
	}
	res, err := a.service.DeactivateExpired(ctx, acl.SweepOptions{BatchSize: p.BatchSize, MaxRows: p.MaxPerRun, DryRun: p.DryRun})
	return res, a.op.Fail(err)
}

// CleanupInactive purges inactive grants older than the retention period,
// regardless of whether the configured profile enables purging.
func (a *ACLApp) CleanupInactive(ctx context.Context, opts CleanupOptions) (*acl.SweepResult, error) {
	p := a.Policy(opts)
	if !p.DryRun {
		if err := a.persistOperation(ctx); err != nil {
			return nil, err
		}
	}
	res, err := a.service.PurgeInactive(ctx, p.RetentionDays, acl.SweepOptions{BatchSize: p.BatchSize, MaxRows: p.MaxPerRun, DryRun: p.DryRun})
	return res, a.op.Fail(err)
}

// PurgeCandidates counts the grants CleanupInactive would delete.
func (a *ACLApp) PurgeCandidates(ctx context.Context, opts CleanupOptions) (int, error) {
	opts.DryRun = true
	res, err := a.CleanupInactive(ctx, opts)
	if err != nil {
		return 0, err
	}
	return res.Candidates, nil
}

// CleanupAll runs both sweeps as selected by the configured policy and opts.
func (a *ACLApp) CleanupAll(ctx context.Context, opts CleanupOptions) (*acl.CleanupReport, error) {
	p := a.Policy(opts)
	if !p.DryRun {
		if err := a.persistOperation(ctx); err != nil {
			return nil, err
		}
	}
	report, err := a.service.RunCleanup(ctx, p)
	return report, a.op.Fail(err)
}

// Scheduler returns the cleanup scheduler for this app, creating it on first
// use. Once it exists, revocations notify it instead of sweeping inline.
func (a *ACLApp) Scheduler(opts CleanupOptions) *acl.Scheduler {
	if a.scheduler == nil {
		a.scheduler = a.service.NewScheduler(a.Policy(opts), a.cfg.Cleanup.Interval())
	}
	return a.scheduler
}

// History and archive

func (a *ACLApp) History(ctx context.Context, itemID string, limit int) ([]*acl.AuditRecord, error) {
	return a.service.History(ctx, itemID, limit)
}

func (a *ACLApp) Runs(ctx context.Context, limit int) ([]*database.MaintenanceRun, error) {
	return a.db.ListMaintenanceRuns(ctx, limit)
}

// BackupDatabase snapshots the database into the archive and returns its key.
func (a *ACLApp) BackupDatabase(ctx context.Context) (string, error) {
	if a.archive == nil {
		return "", fmt.Errorf("no archive configured")
	}
	return a.snapshot(ctx)
}

func (a *ACLApp) ListArchive(ctx context.Context, prefix string) ([]string, error) {
	if a.archive == nil {
		return nil, fmt.Errorf("no archive configured")
	}
	return a.archive.List(ctx, prefix)
}

// ShowArchive copies the archived object at key to w.
func (a *ACLApp) ShowArchive(ctx context.Context, key string, w io.Writer) error {
	if a.archive == nil {
		return fmt.Errorf("no archive configured")
	}
	return a.archive.Get(ctx, key, w)
}

// snapshot writes a consistent copy of the database to a temp file and
// uploads it under db/.
func (a *ACLApp) snapshot(ctx context.Context) (string, error) {
	tmp, err := os.CreateTemp("", "acl-db-backup-*.db")
	if err != nil {
		return "", fmt.Errorf("creating temp file for db backup: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if err := a.db.BackupTo(ctx, tmpPath); err != nil {
		return "", err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return "", fmt.Errorf("opening db backup for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat db backup: %w", err)
	}

	key := fmt.Sprintf("db/%s-%s.db", a.clock.Now().UTC().Format("20060102T150405Z"), a.runID)
	if err := a.archive.Put(ctx, key, f, info.Size()); err != nil {
		return "", fmt.Errorf("uploading db backup: %w", err)
	}
	a.logger.Info("database snapshot archived", "key", key, "size", info.Size())
	return key, nil
}

// Close finishes the operation record and releases every resource.
// Persisted operations also snapshot the database into the archive when
// one is configured.
func (a *ACLApp) Close() error {
	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if a.op.Persisted() {
		if err := a.db.FinishMaintenanceRun(ctx, a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			errs = append(errs, fmt.Errorf("finishing operation: %w", err))
		}
		if a.archive != nil && a.op.Status != "error" {
			if _, err := a.snapshot(ctx); err != nil {
				errs = append(errs, err)
			}
		}
	}

	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *ACLApp) closeResources() error {
	var errs []error
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing membership cache: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, acl.InvalidError("parse id", "invalid %s id %q", kind, raw)
	}
	return id, nil
}

// MigrateDatabase applies pending migrations to the configured database.
func MigrateDatabase(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return migrations.Status{}, err
	}
	return db.MigrationStatus()
}

// DatabaseStatus reports the configured database's schema version.
func DatabaseStatus(cfg *config.Config) (migrations.Status, error) {
	db, err := database.NewDatabaseFromConfig(cfg.Database)
	if err != nil {
		return migrations.Status{}, fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()
	return db.MigrationStatus()
}
