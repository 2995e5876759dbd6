package acl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"acl-go/internal/acl"
	"acl-go/internal/testutil"
)

func TestService_ResolvePermissions(t *testing.T) {
	ctx := context.Background()

	t.Run("owner holds everything regardless of grants", func(t *testing.T) {
		env := newTreeEnv(t)
		past := env.Clock.Now().Add(-time.Hour)
		// An expired grant on the owner's own item changes nothing.
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("owner"), Permission: acl.PermRead, ExpiresAt: &past})

		for _, item := range allTreeItems {
			if got := mustResolve(t, env.Service, "owner", item); got != acl.FullPermissions {
				t.Errorf("resolve(owner, %s) = %s, want full set", item, got)
			}
		}
	})

	t.Run("superuser holds everything", func(t *testing.T) {
		env := newTreeEnv(t)
		if got := mustResolve(t, env.Service, "root", "docs/sub/b.txt"); got != acl.FullPermissions {
			t.Errorf("resolve(root) = %s, want full set", got)
		}
	})

	t.Run("private item without grants resolves to nothing", func(t *testing.T) {
		env := newTreeEnv(t)
		if got := mustResolve(t, env.Service, "alice", "docs"); !got.IsEmpty() {
			t.Errorf("resolve(alice, docs) = %s, want empty", got)
		}
	})

	t.Run("public visibility grants read only", func(t *testing.T) {
		env := newTreeEnv(t)
		if got := mustResolve(t, env.Service, "alice", "public.txt"); got != perms(acl.PermRead) {
			t.Errorf("resolve(alice, public.txt) = %s, want read", got)
		}
	})

	t.Run("public read unions with grants", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "public.txt", Target: acl.UserTarget("alice"), Permission: acl.PermWrite})
		if got := mustResolve(t, env.Service, "alice", "public.txt"); got != perms(acl.PermRead, acl.PermWrite) {
			t.Errorf("resolve(alice, public.txt) = %s, want read,write", got)
		}
	})

	t.Run("group visibility alone grants nothing", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedItemWithVisibility(t, env.DB, "team.txt", acl.ItemFile, "", "owner", acl.VisibilityGroup)
		if got := mustResolve(t, env.Service, "bob", "team.txt"); !got.IsEmpty() {
			t.Errorf("resolve(bob, team.txt) = %s, want empty", got)
		}
	})

	t.Run("directory grant is inherited by every descendant", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead})

		for _, item := range allTreeItems {
			if got := mustResolve(t, env.Service, "alice", item); !got.CanRead() {
				t.Errorf("resolve(alice, %s) = %s, want read", item, got)
			}
		}
	})

	t.Run("grants union across the ancestor chain", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead})
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs/sub", Target: acl.UserTarget("alice"), Permission: acl.PermWrite})
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs/sub/b.txt", Target: acl.UserTarget("alice"), Permission: acl.PermDelete})

		want := perms(acl.PermRead, acl.PermWrite, acl.PermDelete)
		if got := mustResolve(t, env.Service, "alice", "docs/sub/b.txt"); got != want {
			t.Errorf("resolve(alice, b.txt) = %s, want %s", got, want)
		}
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got != perms(acl.PermRead) {
			t.Errorf("resolve(alice, a.txt) = %s, want read", got)
		}
	})

	t.Run("group grants apply to members only", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.GroupTarget("eng"), Permission: acl.PermWrite})

		if got := mustResolve(t, env.Service, "bob", "docs/a.txt"); got != perms(acl.PermWrite) {
			t.Errorf("resolve(bob) = %s, want write", got)
		}
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); !got.IsEmpty() {
			t.Errorf("resolve(alice) = %s, want empty", got)
		}
	})

	t.Run("expired grant is ignored before the sweep runs", func(t *testing.T) {
		env := newTreeEnv(t)
		yesterday := env.Clock.Now().Add(-24 * time.Hour)
		g := testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead, ExpiresAt: &yesterday})
		if !g.IsActive {
			t.Fatal("seeded grant is not active")
		}

		if got := mustResolve(t, env.Service, "alice", "docs"); got.CanRead() {
			t.Errorf("resolve(alice, docs) = %s, want read excluded", got)
		}
	})

	t.Run("grant stops counting the instant it expires", func(t *testing.T) {
		env := newTreeEnv(t)
		at := env.Clock.Now().Add(time.Minute)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead, ExpiresAt: &at})

		if got := mustResolve(t, env.Service, "alice", "docs"); !got.CanRead() {
			t.Fatalf("before expiry: resolve = %s, want read", got)
		}
		env.Clock.Set(at)
		if got := mustResolve(t, env.Service, "alice", "docs"); got.CanRead() {
			t.Errorf("at expiry: resolve = %s, want read excluded", got)
		}
	})

	t.Run("inactive grant is ignored", func(t *testing.T) {
		env := newTreeEnv(t)
		g := testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead})
		if _, err := env.DB.DeactivateGrant(ctx, g.ID, env.Clock.Now()); err != nil {
			t.Fatalf("DeactivateGrant() error = %v", err)
		}
		if got := mustResolve(t, env.Service, "alice", "docs"); !got.IsEmpty() {
			t.Errorf("resolve = %s, want empty", got)
		}
	})

	t.Run("ancestor share does not imply re-share", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermShare})
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermAdmin})

		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got != perms(acl.PermShare, acl.PermAdmin) {
			t.Errorf("resolve = %s, want share,admin only", got)
		}
		if got := activeGrants(t, env, "docs/a.txt", acl.UserTarget("alice")); len(got) != 0 {
			t.Errorf("descendant has %d grants, want none", len(got))
		}
	})

	t.Run("unknown item or user is NotFound", func(t *testing.T) {
		env := newTreeEnv(t)
		if _, err := env.Service.ResolvePermissions(ctx, "alice", "nope"); !errors.Is(err, acl.ErrNotFound) {
			t.Errorf("unknown item: error = %v, want ErrNotFound", err)
		}
		if _, err := env.Service.ResolvePermissions(ctx, "nobody", "docs"); !errors.Is(err, acl.ErrNotFound) {
			t.Errorf("unknown user: error = %v, want ErrNotFound", err)
		}
	})

	t.Run("moved item inherits from its new ancestors", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedItem(t, env.DB, "shared", acl.ItemDirectory, "", "owner")
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "shared", Target: acl.UserTarget("alice"), Permission: acl.PermRead})

		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got.CanRead() {
			t.Fatalf("before move: resolve = %s, want no read", got)
		}
		if err := env.Service.MoveItem(ctx, "docs/a.txt", "shared"); err != nil {
			t.Fatalf("MoveItem() error = %v", err)
		}
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); !got.CanRead() {
			t.Errorf("after move: resolve = %s, want read", got)
		}
	})
}
