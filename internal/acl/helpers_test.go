package acl_test

import (
	"context"
	"testing"
	"time"

	"acl-go/internal/acl"
	"acl-go/internal/testutil"
)

// Tree used by most tests, all owned by "owner":
//
//	docs/            directory
//	docs/a.txt       file
//	docs/sub/        directory
//	docs/sub/b.txt   file
//	public.txt       file, public visibility
//
// Users: owner, alice, bob (member of eng), root (superuser).
func newTreeEnv(t *testing.T) *testutil.Env {
	t.Helper()
	return seedTree(t, testutil.NewTestEnv(t))
}

func seedTree(t *testing.T, env *testutil.Env) *testutil.Env {
	t.Helper()
	db := env.DB
	for _, u := range []string{"owner", "alice", "bob"} {
		testutil.SeedUser(t, db, u, false)
	}
	testutil.SeedUser(t, db, "root", true)
	testutil.SeedGroup(t, db, "eng", "bob")

	testutil.SeedItem(t, db, "docs", acl.ItemDirectory, "", "owner")
	testutil.SeedItem(t, db, "docs/a.txt", acl.ItemFile, "docs", "owner")
	testutil.SeedItem(t, db, "docs/sub", acl.ItemDirectory, "docs", "owner")
	testutil.SeedItem(t, db, "docs/sub/b.txt", acl.ItemFile, "docs/sub", "owner")
	testutil.SeedItemWithVisibility(t, db, "public.txt", acl.ItemFile, "", "owner", acl.VisibilityPublic)
	return env
}

var allTreeItems = []string{"docs", "docs/a.txt", "docs/sub", "docs/sub/b.txt"}

func perms(ps ...acl.PermissionType) acl.PermissionSet { return acl.NewPermissionSet(ps...) }

func timePtr(t time.Time) *time.Time { return &t }

func mustResolve(t *testing.T, svc *acl.Service, userID, itemID string) acl.PermissionSet {
	t.Helper()
	got, err := svc.ResolvePermissions(context.Background(), userID, itemID)
	if err != nil {
		t.Fatalf("ResolvePermissions(%s, %s) error = %v", userID, itemID, err)
	}
	return got
}

// activeGrants returns the active grants on itemID for target.
func activeGrants(t *testing.T, env *testutil.Env, itemID string, target acl.GrantTarget) []*acl.Grant {
	t.Helper()
	all, err := env.DB.ListGrants(context.Background(), itemID, false)
	if err != nil {
		t.Fatalf("ListGrants(%s) error = %v", itemID, err)
	}
	var out []*acl.Grant
	for _, g := range all {
		if g.Target == target {
			out = append(out, g)
		}
	}
	return out
}
