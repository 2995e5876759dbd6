package acl_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"acl-go/internal/acl"
)

func TestScheduler_NotifyTriggersRun(t *testing.T) {
	env := newTreeEnv(t)
	seedExpiring(t, env, 2)

	sched := env.Service.NewScheduler(acl.CleanupPolicy{DeactivateExpired: true, BatchSize: 10}, 0)
	reports := make(chan *acl.CleanupReport, 1)
	sched.OnRun(reports)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- sched.Run(ctx) }()

	sched.Notify()
	select {
	case report := <-reports:
		if report.Expired == nil || report.Expired.Processed != 2 {
			t.Errorf("report.Expired = %+v, want 2 processed", report.Expired)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no cleanup run after Notify")
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestScheduler_Interval(t *testing.T) {
	env := newTreeEnv(t)
	seedExpiring(t, env, 1)

	sched := env.Service.NewScheduler(acl.CleanupPolicy{DeactivateExpired: true}, 10*time.Millisecond)
	reports := make(chan *acl.CleanupReport, 4)
	sched.OnRun(reports)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sched.Run(ctx)

	select {
	case report := <-reports:
		if report.Expired == nil {
			t.Fatal("interval run skipped the expiry sweep")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no cleanup run on the interval")
	}
}

func TestScheduler_NotifyNeverBlocks(t *testing.T) {
	env := newTreeEnv(t)
	sched := env.Service.NewScheduler(acl.CleanupPolicy{}, 0)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sched.Notify()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no running scheduler")
	}
}
