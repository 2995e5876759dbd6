package acl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"acl-go/internal/acl"
	"acl-go/internal/testutil"
)

func TestService_RequestAccess(t *testing.T) {
	ctx := context.Background()
	alice := acl.UserTarget("alice")

	t.Run("files a pending request", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: alice, Permission: acl.PermRead})

		req, err := env.Service.RequestAccess(ctx, "alice", "docs/a.txt", perms(acl.PermWrite), "need to edit")
		if err != nil {
			t.Fatalf("RequestAccess() error = %v", err)
		}
		if req.ID == 0 || req.Status != acl.RequestPending || req.Permissions != perms(acl.PermWrite) || req.Reason != "need to edit" {
			t.Errorf("request = %+v", req)
		}
		if !req.CreatedAt.Equal(env.Clock.Now()) || req.ReviewedAt != nil {
			t.Errorf("timestamps = created %v reviewed %v", req.CreatedAt, req.ReviewedAt)
		}
	})

	t.Run("already holding every requested permission is invalid", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs/a.txt", Target: alice, Permission: acl.PermRead})
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs/a.txt", Target: alice, Permission: acl.PermWrite})

		_, err := env.Service.RequestAccess(ctx, "alice", "docs/a.txt", perms(acl.PermWrite), "need to edit")
		if !errors.Is(err, acl.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("partially held request is accepted", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: alice, Permission: acl.PermRead})

		if _, err := env.Service.RequestAccess(ctx, "alice", "docs", perms(acl.PermRead, acl.PermWrite), ""); err != nil {
			t.Errorf("RequestAccess() error = %v", err)
		}
	})

	t.Run("second pending request is invalid", func(t *testing.T) {
		env := newTreeEnv(t)
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: alice, Permission: acl.PermRead})

		if _, err := env.Service.RequestAccess(ctx, "alice", "docs", perms(acl.PermWrite), ""); err != nil {
			t.Fatalf("first RequestAccess() error = %v", err)
		}
		_, err := env.Service.RequestAccess(ctx, "alice", "docs", perms(acl.PermDelete), "")
		if !errors.Is(err, acl.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("requester who cannot read is forbidden", func(t *testing.T) {
		env := newTreeEnv(t)
		_, err := env.Service.RequestAccess(ctx, "alice", "docs", perms(acl.PermRead), "")
		if !errors.Is(err, acl.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("public read is enough to ask", func(t *testing.T) {
		env := newTreeEnv(t)
		if _, err := env.Service.RequestAccess(ctx, "alice", "public.txt", perms(acl.PermWrite), ""); err != nil {
			t.Errorf("RequestAccess() error = %v", err)
		}
	})

	t.Run("bad input", func(t *testing.T) {
		env := newTreeEnv(t)
		if _, err := env.Service.RequestAccess(ctx, "alice", "docs", 0, ""); !errors.Is(err, acl.ErrInvalidRequest) {
			t.Errorf("empty permissions: error = %v, want ErrInvalidRequest", err)
		}
		if _, err := env.Service.RequestAccess(ctx, "alice", "nope", perms(acl.PermRead), ""); !errors.Is(err, acl.ErrNotFound) {
			t.Errorf("unknown item: error = %v, want ErrNotFound", err)
		}
	})
}

// pendingRequest files a write request by alice on docs/a.txt, which alice can read.
func pendingRequest(t *testing.T, env *testutil.Env, p acl.PermissionSet) *acl.PermissionRequest {
	t.Helper()
	testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("alice"), Permission: acl.PermRead})
	req, err := env.Service.RequestAccess(context.Background(), "alice", "docs/a.txt", p, "need to edit")
	if err != nil {
		t.Fatalf("RequestAccess() error = %v", err)
	}
	return req
}

func TestService_Review(t *testing.T) {
	ctx := context.Background()

	t.Run("approval grants every requested permission", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite, acl.PermDelete))
		env.Clock.Advance(time.Hour)

		out, err := env.Service.Review(ctx, "owner", req.ID, acl.DecisionApprove, "ok")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if out.Request.Status != acl.RequestApproved || out.Request.ReviewedBy != "owner" || out.Request.ReviewNotes != "ok" {
			t.Errorf("request = %+v", out.Request)
		}
		if out.Request.ReviewedAt == nil || !out.Request.ReviewedAt.Equal(env.Clock.Now()) {
			t.Errorf("ReviewedAt = %v", out.Request.ReviewedAt)
		}
		if len(out.Grants) != 2 {
			t.Fatalf("grants = %d, want 2", len(out.Grants))
		}
		for _, g := range out.Grants {
			if g.GrantedBy != "owner" || g.Target != acl.UserTarget("alice") || g.ItemID != "docs/a.txt" {
				t.Errorf("grant = %+v", g)
			}
		}
		want := perms(acl.PermRead, acl.PermWrite, acl.PermDelete)
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got != want {
			t.Errorf("resolve = %s, want %s", got, want)
		}
	})

	t.Run("denial creates no grant", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite))

		out, err := env.Service.Review(ctx, "owner", req.ID, acl.DecisionDeny, "no")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if out.Request.Status != acl.RequestDenied || len(out.Grants) != 0 {
			t.Errorf("outcome = %+v", out)
		}
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got.CanWrite() {
			t.Errorf("resolve = %s, want no write", got)
		}
	})

	t.Run("re-review is AlreadyResolved", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite))
		if _, err := env.Service.Review(ctx, "owner", req.ID, acl.DecisionDeny, ""); err != nil {
			t.Fatal(err)
		}

		_, err := env.Service.Review(ctx, "owner", req.ID, acl.DecisionApprove, "")
		if !errors.Is(err, acl.ErrAlreadyResolved) || !errors.Is(err, acl.ErrConflict) {
			t.Errorf("error = %v, want ErrAlreadyResolved", err)
		}
		if got := mustResolve(t, env.Service, "alice", "docs/a.txt"); got.CanWrite() {
			t.Errorf("re-review granted write")
		}
	})

	t.Run("reviewer with share but not admin may review", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite))
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("bob"), Permission: acl.PermShare})

		out, err := env.Service.Review(ctx, "bob", req.ID, acl.DecisionApprove, "")
		if err != nil {
			t.Fatalf("Review() error = %v", err)
		}
		if out.Grants[0].GrantedBy != "bob" {
			t.Errorf("GrantedBy = %q, want bob", out.Grants[0].GrantedBy)
		}
	})

	t.Run("reviewer without admin or share is forbidden", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite))
		testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("bob"), Permission: acl.PermWrite})

		if _, err := env.Service.Review(ctx, "bob", req.ID, acl.DecisionApprove, ""); !errors.Is(err, acl.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
		// The requester cannot approve their own request either.
		if _, err := env.Service.Review(ctx, "alice", req.ID, acl.DecisionApprove, ""); !errors.Is(err, acl.ErrForbidden) {
			t.Errorf("self review: error = %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown request and bad decision", func(t *testing.T) {
		env := newTreeEnv(t)
		if _, err := env.Service.Review(ctx, "owner", 404, acl.DecisionApprove, ""); !errors.Is(err, acl.ErrNotFound) {
			t.Errorf("unknown request: error = %v, want ErrNotFound", err)
		}
		req := pendingRequest(t, env, perms(acl.PermWrite))
		if _, err := env.Service.Review(ctx, "owner", req.ID, "maybe", ""); !errors.Is(err, acl.ErrInvalidRequest) {
			t.Errorf("bad decision: error = %v, want ErrInvalidRequest", err)
		}
	})

	t.Run("a new request may follow a resolved one", func(t *testing.T) {
		env := newTreeEnv(t)
		req := pendingRequest(t, env, perms(acl.PermWrite))
		if _, err := env.Service.Review(ctx, "owner", req.ID, acl.DecisionDeny, ""); err != nil {
			t.Fatal(err)
		}
		if _, err := env.Service.RequestAccess(ctx, "alice", "docs/a.txt", perms(acl.PermWrite), "please"); err != nil {
			t.Errorf("RequestAccess() after denial error = %v", err)
		}
	})
}

func TestService_ListRequests(t *testing.T) {
	ctx := context.Background()
	env := newTreeEnv(t)
	first := pendingRequest(t, env, perms(acl.PermWrite))
	env.Clock.Advance(time.Minute)
	testutil.SeedGrant(t, env.DB, acl.GrantSpec{ItemID: "docs", Target: acl.UserTarget("bob"), Permission: acl.PermRead})
	second, err := env.Service.RequestAccess(ctx, "bob", "docs", perms(acl.PermWrite), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Service.Review(ctx, "owner", first.ID, acl.DecisionApprove, ""); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		filter acl.RequestFilter
		want   []int64
	}{
		{name: "all newest first", filter: acl.RequestFilter{}, want: []int64{second.ID, first.ID}},
		{name: "pending", filter: acl.RequestFilter{Status: acl.RequestPending}, want: []int64{second.ID}},
		{name: "approved", filter: acl.RequestFilter{Status: acl.RequestApproved}, want: []int64{first.ID}},
		{name: "by item", filter: acl.RequestFilter{ItemID: "docs/a.txt"}, want: []int64{first.ID}},
		{name: "by requester", filter: acl.RequestFilter{RequesterID: "bob"}, want: []int64{second.ID}},
		{name: "limit", filter: acl.RequestFilter{Limit: 1}, want: []int64{second.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.Service.ListRequests(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListRequests() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d requests, want %d", len(got), len(tt.want))
			}
			for i, r := range got {
				if r.ID != tt.want[i] {
					t.Errorf("request[%d] = %d, want %d", i, r.ID, tt.want[i])
				}
			}
		})
	}

	if _, err := env.Service.ListRequests(ctx, acl.RequestFilter{Status: "lost"}); !errors.Is(err, acl.ErrInvalidRequest) {
		t.Errorf("bad status: error = %v, want ErrInvalidRequest", err)
	}
}
