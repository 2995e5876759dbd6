package acl

import (
	"context"
	"time"
)

// Scheduler runs cleanup on a fixed interval and whenever Notify is called.
// Notifications arriving while a run is in progress coalesce into one
// follow-up run.
type Scheduler struct {
	svc      *Service
	policy   CleanupPolicy
	interval time.Duration
	notify   chan struct{}
	done     chan *CleanupReport
}

// NewScheduler creates a Scheduler. A non-positive interval disables the
// timer; runs then happen only on Notify.
func (s *Service) NewScheduler(policy CleanupPolicy, interval time.Duration) *Scheduler {
	return &Scheduler{
		svc:      s,
		policy:   policy,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

// Notify requests a cleanup run soon. It never blocks.
func (sc *Scheduler) Notify() {
	select {
	case sc.notify <- struct{}{}:
	default:
	}
}

// OnRun registers a channel that receives the report of every completed run.
// Sends are non-blocking; reports are dropped if the channel is full.
// Must be called before Run.
func (sc *Scheduler) OnRun(ch chan *CleanupReport) { sc.done = ch }

// Run blocks until ctx is done. A failing run is logged and retried at the
// next tick or notification.
func (sc *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if sc.interval > 0 {
		t := time.NewTicker(sc.interval)
		defer t.Stop()
		tick = t.C
	}

	sc.svc.logger.Info("cleanup scheduler started", "interval", sc.interval)
	for {
		select {
		case <-ctx.Done():
			sc.svc.logger.Info("cleanup scheduler stopped")
			return ctx.Err()
		case <-tick:
			sc.runOnce(ctx, "interval")
		case <-sc.notify:
			sc.runOnce(ctx, "notify")
		}
	}
}

func (sc *Scheduler) runOnce(ctx context.Context, trigger string) {
	report, err := sc.svc.RunCleanup(ctx, sc.policy)
	if err != nil {
		sc.svc.logger.Error("scheduled cleanup failed", "trigger", trigger, "error", err)
	}
	if sc.done != nil {
		select {
		case sc.done <- report:
		default:
		}
	}
}
