package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"acl-go/internal/acl"
	"acl-go/internal/app"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func cleanupOptions(cmd *cobra.Command) app.CleanupOptions {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	batch, _ := cmd.Flags().GetInt("batch-size")
	skipExpired, _ := cmd.Flags().GetBool("skip-expired")
	skipInactive, _ := cmd.Flags().GetBool("skip-inactive")

	opts := app.CleanupOptions{
		DryRun:       dryRun,
		BatchSize:    batch,
		SkipExpired:  skipExpired,
		SkipInactive: skipInactive,
	}
	if cmd.Flags().Changed("days") {
		days, _ := cmd.Flags().GetInt("days")
		opts.RetentionDays = &days
	}
	return opts
}

// confirmPurge asks before hard-deleting grants. Without a terminal on stdin
// the purge only proceeds with --force.
func confirmPurge(cmd *cobra.Command, candidates int) error {
	if force, _ := cmd.Flags().GetBool("force"); force || candidates == 0 {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("refusing to purge %d grant(s) without a terminal; pass --force", candidates)
	}

	fmt.Printf("Permanently delete %d inactive grant(s)? [y/N] ", candidates)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
		return errors.New("purge cancelled")
	}
	return nil
}

func printSweep(name string, r *acl.SweepResult) {
	if r == nil {
		return
	}
	if r.DryRun {
		fmt.Printf("%s: %d candidate(s) (dry run)\n", name, r.Candidates)
		return
	}
	fmt.Printf("%s: %d of %d processed in %d batch(es), %d failed\n",
		name, r.Processed, r.Candidates, r.Batches, r.FailedBatches)
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Deactivate expired grants and purge old inactive ones",
}

var cleanupExpiredCmd = &cobra.Command{
	Use:   "expired",
	Short: "Deactivate grants whose expiry has passed",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanupOptions(cmd)

		a, err := newApp(cmd.Context(), "CleanupExpired")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.CleanupExpired(cmd.Context(), opts)
		printSweep("Expired", res)
		return err
	},
}

var cleanupInactiveCmd = &cobra.Command{
	Use:   "inactive",
	Short: "Delete grants inactive for longer than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanupOptions(cmd)

		a, err := newApp(cmd.Context(), "CleanupInactive")
		if err != nil {
			return err
		}
		defer a.Close()

		if !opts.DryRun {
			n, err := a.PurgeCandidates(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := confirmPurge(cmd, n); err != nil {
				return err
			}
		}
		res, err := a.CleanupInactive(cmd.Context(), opts)
		printSweep("Purged", res)
		return err
	},
}

var cleanupAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every cleanup sweep enabled by the policy",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanupOptions(cmd)

		a, err := newApp(cmd.Context(), "CleanupAll")
		if err != nil {
			return err
		}
		defer a.Close()

		if !opts.DryRun && a.Policy(opts).PurgeInactive {
			n, err := a.PurgeCandidates(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if err := confirmPurge(cmd, n); err != nil {
				return err
			}
		}
		report, err := a.CleanupAll(cmd.Context(), opts)
		if report != nil {
			printSweep("Expired", report.Expired)
			printSweep("Purged", report.Purged)
		}
		return err
	},
}

var cleanupScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run cleanup on the configured interval until interrupted",
	Long: `Run cleanup every cleanup.interval_minutes. SIGHUP triggers an immediate
run; SIGINT or SIGTERM stops the scheduler. Purging runs unattended, so the
policy must be confirmed with --force when it enables purge_inactive.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cleanupOptions(cmd)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, "CleanupSchedule")
		if err != nil {
			return err
		}
		defer a.Close()

		if force, _ := cmd.Flags().GetBool("force"); a.Policy(opts).PurgeInactive && !force && !opts.DryRun {
			return errors.New("scheduled cleanup would purge grants unattended; pass --force or --skip-inactive")
		}

		sched := a.Scheduler(opts)
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					sched.Notify()
				}
			}
		}()

		// Run once at startup, then on the interval.
		sched.Notify()
		fmt.Println("Cleanup scheduler running; SIGHUP runs now, Ctrl-C stops.")
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{cleanupExpiredCmd, cleanupInactiveCmd, cleanupAllCmd, cleanupScheduleCmd} {
		c.Flags().Bool("dry-run", false, "Count candidates without changing anything")
		c.Flags().Int("batch-size", 0, "Rows per transaction (defaults to the configured batch size)")
		cleanupCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{cleanupInactiveCmd, cleanupAllCmd, cleanupScheduleCmd} {
		c.Flags().Int("days", 0, "Retention period in days (defaults to the configured retention)")
		c.Flags().BoolP("force", "f", false, "Purge without asking for confirmation")
	}
	for _, c := range []*cobra.Command{cleanupAllCmd, cleanupScheduleCmd} {
		c.Flags().Bool("skip-expired", false, "Do not deactivate expired grants")
		c.Flags().Bool("skip-inactive", false, "Do not purge inactive grants")
	}
}
