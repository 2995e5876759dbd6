package testutil

import (
	"context"
	"testing"
	"time"

	"acl-go/internal/acl"
	"acl-go/internal/database"
)

// NewTestDatabase creates a new in-memory SQLite database with schema applied.
// The database is automatically closed when the test completes.
func NewTestDatabase(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	if _, err := sqlDB.Exec(database.Schema); err != nil {
		sqlDB.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(sqlDB)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// seedTime is the created_at of every fixture row.
var seedTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// SeedUser inserts a user directly through the store.
func SeedUser(t *testing.T, store acl.PrincipalStore, id string, superuser bool) *acl.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), &acl.User{ID: id, Name: id, IsSuperuser: superuser, CreatedAt: seedTime})
	if err != nil {
		t.Fatalf("seeding user %s: %v", id, err)
	}
	return u
}

// SeedGroup inserts a group and its members.
func SeedGroup(t *testing.T, store acl.PrincipalStore, id string, members ...string) *acl.Group {
	t.Helper()
	ctx := context.Background()
	g, err := store.CreateGroup(ctx, &acl.Group{ID: id, Name: id, CreatedAt: seedTime})
	if err != nil {
		t.Fatalf("seeding group %s: %v", id, err)
	}
	for _, m := range members {
		if err := store.AddGroupMember(ctx, id, m); err != nil {
			t.Fatalf("adding %s to group %s: %v", m, id, err)
		}
	}
	return g
}

// SeedItem inserts an item with private visibility. parentID may be empty.
func SeedItem(t *testing.T, store acl.ItemStore, id string, typ acl.ItemType, parentID, ownerID string) *acl.Item {
	t.Helper()
	return SeedItemWithVisibility(t, store, id, typ, parentID, ownerID, acl.VisibilityPrivate)
}

func SeedItemWithVisibility(t *testing.T, store acl.ItemStore, id string, typ acl.ItemType, parentID, ownerID string, vis acl.Visibility) *acl.Item {
	t.Helper()
	item, err := store.CreateItem(context.Background(), &acl.Item{
		ID:         id,
		Name:       id,
		Type:       typ,
		ParentID:   parentID,
		OwnerID:    ownerID,
		Visibility: vis,
		CreatedAt:  seedTime,
	})
	if err != nil {
		t.Fatalf("seeding item %s: %v", id, err)
	}
	return item
}

// SeedGrant inserts an active grant directly through the store, bypassing
// authorization.
func SeedGrant(t *testing.T, store acl.GrantStore, spec acl.GrantSpec) *acl.Grant {
	t.Helper()
	if spec.GrantedBy == "" {
		spec.GrantedBy = "seed"
	}
	if spec.GrantedAt.IsZero() {
		spec.GrantedAt = seedTime
	}
	g, err := store.CreateGrant(context.Background(), spec)
	if err != nil {
		t.Fatalf("seeding grant on %s: %v", spec.ItemID, err)
	}
	return g
}
