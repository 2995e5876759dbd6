package testutil

import (
	"context"
	"sync"
	"time"

	"acl-go/internal/acl"
)

// FaultyStore wraps a Store and fails chosen calls. The zero fault set
// passes everything through.
type FaultyStore struct {
	acl.Store

	mu sync.Mutex
	// applyErr fails ApplyGrants and DeactivateMatching for an item.
	applyErr map[string]error
	// applyFailures limits applyErr to the first n calls per item; 0 is unlimited.
	applyFailures map[string]int
	listErr       map[string]error
	slow          map[string]time.Duration
	purgeErr      map[int]error
	purgeCalls    int
	calls         map[string]int
}

func NewFaultyStore(inner acl.Store) *FaultyStore {
	return &FaultyStore{
		Store:         inner,
		applyErr:      map[string]error{},
		applyFailures: map[string]int{},
		listErr:       map[string]error{},
		slow:          map[string]time.Duration{},
		purgeErr:      map[int]error{},
		calls:         map[string]int{},
	}
}

// FailApply makes grant writes on itemID fail with err.
func (f *FaultyStore) FailApply(itemID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr[itemID] = err
}

// FailApplyTimes makes the first n grant writes on itemID fail with err.
func (f *FaultyStore) FailApplyTimes(itemID string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applyErr[itemID] = err
	f.applyFailures[itemID] = n
}

// FailList makes ListChildren of parentID fail with err.
func (f *FaultyStore) FailList(parentID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr[parentID] = err
}

// Delay makes grant writes on itemID block for d or until ctx is done.
func (f *FaultyStore) Delay(itemID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slow[itemID] = d
}

// FailPurgeBatch makes the n-th PurgeGrants call (1-based) fail with err.
func (f *FaultyStore) FailPurgeBatch(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purgeErr[n] = err
}

// Calls returns how many grant writes reached itemID, failed or not.
func (f *FaultyStore) Calls(itemID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[itemID]
}

func (f *FaultyStore) before(ctx context.Context, itemID string) error {
	f.mu.Lock()
	f.calls[itemID]++
	delay := f.slow[itemID]
	err := f.applyErr[itemID]
	if err != nil && f.applyFailures[itemID] > 0 {
		f.applyFailures[itemID]--
		if f.applyFailures[itemID] == 0 {
			delete(f.applyErr, itemID)
		}
	}
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *FaultyStore) ApplyGrants(ctx context.Context, specs []acl.GrantSpec) ([]*acl.Grant, error) {
	if len(specs) > 0 {
		if err := f.before(ctx, specs[0].ItemID); err != nil {
			return nil, err
		}
	}
	return f.Store.ApplyGrants(ctx, specs)
}

func (f *FaultyStore) DeactivateMatching(ctx context.Context, itemID string, target acl.GrantTarget, perms acl.PermissionSet, at time.Time) (int, error) {
	if err := f.before(ctx, itemID); err != nil {
		return 0, err
	}
	return f.Store.DeactivateMatching(ctx, itemID, target, perms, at)
}

func (f *FaultyStore) ListChildren(ctx context.Context, parentID string) ([]*acl.Item, error) {
	f.mu.Lock()
	err := f.listErr[parentID]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.ListChildren(ctx, parentID)
}

func (f *FaultyStore) PurgeGrants(ctx context.Context, ids []int64, cutoff time.Time, actorID string, at time.Time) ([]*acl.AuditRecord, error) {
	f.mu.Lock()
	f.purgeCalls++
	err := f.purgeErr[f.purgeCalls]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.PurgeGrants(ctx, ids, cutoff, actorID, at)
}

var _ acl.Store = (*FaultyStore)(nil)
