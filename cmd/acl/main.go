package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"acl-go/internal/acl"
	"acl-go/internal/app"
	"acl-go/internal/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the application defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an ACLApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Share", "CleanupAll").
func newApp(ctx context.Context, operation string, args ...string) (*app.ACLApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewACLApp(ctx, cfg, operation, args...)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// actor returns the --as flag, falling back to $ACL_USER. Every authorized
// command requires one of them.
func actor(cmd *cobra.Command) (string, error) {
	if as, _ := cmd.Flags().GetString("as"); as != "" {
		return as, nil
	}
	defaults, err := app.GetDefaults()
	if err != nil {
		return "", fmt.Errorf("getting defaults: %w", err)
	}
	if defaults.Actor == "" {
		return "", fmt.Errorf("--as USER or $ACL_USER is required")
	}
	return defaults.Actor, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printReport(verb string, r *acl.PropagationReport) {
	fmt.Printf("%s %d item(s): %d granted, %d revoked, %d failed\n",
		verb, r.Total, r.Granted, r.Revoked, len(r.Failed))
	for _, f := range r.Failed {
		fmt.Printf("  FAILED %s: %s\n", f.ItemID, f.Reason)
	}
}

var rootCmd = &cobra.Command{
	Use:          "acl",
	Short:        "Hierarchical access control for shared files",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", defaults.BaseDir)
		fmt.Printf("Log Dir:  %s\n", defaults.LogDir)
		fmt.Printf("Data Dir: %s\n", defaults.DataDir)
		fmt.Println("Run `acl db migrate` to create the database.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		settings, err := cfg.Cleanup.Settings()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:     %s\n", cfg.LogDir)
		fmt.Printf("Database:    %s %s\n", cfg.Database.Type, cfg.Database.DataDir)
		fmt.Printf("Archive:     %s %s\n", cfg.Archive.Type, cfg.Archive.Name)
		fmt.Printf("Membership:  %s\n", cfg.Membership.Cache)
		fmt.Printf("Propagation: %d workers, %s per item, %d retries\n",
			cfg.Propagation.Workers, cfg.Propagation.ItemTimeout(), cfg.Propagation.MaxRetries)
		fmt.Printf("Cleanup:     %s (retention %dd, batch %d, expire=%t, purge=%t, on-deactivation=%t, every %s)\n",
			cfg.Cleanup.Environment, settings.RetentionDays, settings.BatchSize,
			settings.DeactivateExpired, settings.PurgeInactive, settings.CleanupOnDeactivation, cfg.Cleanup.Interval())
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the grant database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.MigrateDatabase(cfg)
		if err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		fmt.Printf("Database schema: %s\n", status)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		status, err := app.DatabaseStatus(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("Database schema: %s\n", status)
		return nil
	},
}

var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Snapshot the database into the archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "BackupDatabase")
		if err != nil {
			return err
		}
		defer a.Close()

		key, err := a.BackupDatabase(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Database archived as %s\n", key)
		return nil
	},
}

// user and group commands
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		superuser, _ := cmd.Flags().GetBool("superuser")

		a, err := newApp(cmd.Context(), "AddUser", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.AddUser(cmd.Context(), args[0], name, superuser)
		if err != nil {
			return err
		}
		fmt.Printf("Added user %s (%s)\n", u.ID, u.Name)
		return nil
	},
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		a, err := newApp(cmd.Context(), "AddGroup", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.AddGroup(cmd.Context(), args[0], name)
		if err != nil {
			return err
		}
		fmt.Printf("Added group %s (%s)\n", g.ID, g.Name)
		return nil
	},
}

var groupJoinCmd = &cobra.Command{
	Use:   "join GROUP USER",
	Short: "Add a user to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "JoinGroup", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.JoinGroup(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Added %s to %s\n", args[1], args[0])
		return nil
	},
}

// item command
var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage the item tree",
}

var itemAddCmd = &cobra.Command{
	Use:   "add ID",
	Short: "Register a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		dir, _ := cmd.Flags().GetBool("dir")
		parent, _ := cmd.Flags().GetString("parent")
		owner, _ := cmd.Flags().GetString("owner")
		visibility, _ := cmd.Flags().GetString("visibility")
		itemType := string(acl.ItemFile)
		if dir {
			itemType = string(acl.ItemDirectory)
		}

		a, err := newApp(cmd.Context(), "AddItem", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.AddItem(cmd.Context(), args[0], name, itemType, parent, owner, visibility)
		if err != nil {
			return err
		}
		fmt.Printf("Added %s %s (owner %s, %s)\n", item.Type, item.ID, item.OwnerID, item.Visibility)
		return nil
	},
}

var itemMoveCmd = &cobra.Command{
	Use:   "move ID [PARENT]",
	Short: "Move an item under a new parent, or to the root",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent := ""
		if len(args) > 1 {
			parent = args[1]
		}

		a, err := newApp(cmd.Context(), "MoveItem", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MoveItem(cmd.Context(), args[0], parent); err != nil {
			return err
		}
		fmt.Printf("Moved %s\n", args[0])
		return nil
	},
}

// resolve command
var resolveCmd = &cobra.Command{
	Use:   "resolve USER ITEM",
	Short: "Show a user's effective permissions on an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "Resolve")
		if err != nil {
			return err
		}
		defer a.Close()

		perms, err := a.Resolve(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("%s on %s: %s\n", args[0], args[1], perms)
		return nil
	},
}

// grant command
var grantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Manage individual grants",
}

var grantCreateCmd = &cobra.Command{
	Use:   "create ITEM TARGET PERMISSION",
	Short: "Grant one permission on one item (TARGET is user:ID or group:ID)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		expires, _ := cmd.Flags().GetString("expires")

		a, err := newApp(cmd.Context(), "CreateGrant", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.CreateGrant(cmd.Context(), as, args[0], args[1], args[2], expires)
		if err != nil {
			return err
		}
		fmt.Printf("Grant #%d: %s %s on %s (expires %s)\n", g.ID, g.Target, g.Permission, g.ItemID, formatTime(g.ExpiresAt))
		return nil
	},
}

var grantUpdateCmd = &cobra.Command{
	Use:   "update GRANT_ID",
	Short: "Change a grant's expiry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		expires, _ := cmd.Flags().GetString("expires")

		a, err := newApp(cmd.Context(), "UpdateGrant", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		g, err := a.UpdateGrant(cmd.Context(), as, args[0], expires)
		if err != nil {
			return err
		}
		fmt.Printf("Grant #%d now expires %s\n", g.ID, formatTime(g.ExpiresAt))
		return nil
	},
}

var grantRevokeCmd = &cobra.Command{
	Use:   "revoke GRANT_ID",
	Short: "Deactivate a grant",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "RevokeGrant", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		changed, err := a.RevokeGrant(cmd.Context(), as, args[0])
		if err != nil {
			return err
		}
		if changed {
			fmt.Printf("Revoked grant #%s\n", args[0])
		} else {
			fmt.Printf("Grant #%s was already inactive\n", args[0])
		}
		return nil
	},
}

var grantListCmd = &cobra.Command{
	Use:   "list ITEM",
	Short: "List the grants held directly on an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")

		a, err := newApp(cmd.Context(), "ListGrants")
		if err != nil {
			return err
		}
		defer a.Close()

		grants, err := a.ListGrants(cmd.Context(), as, args[0], all)
		if err != nil {
			return err
		}
		if len(grants) == 0 {
			fmt.Println("No grants.")
			return nil
		}
		for _, g := range grants {
			state := "active"
			if !g.IsActive {
				state = "inactive"
			}
			fmt.Printf("#%-6d %-20s %-7s %-8s by %-12s %s  expires %s\n",
				g.ID, g.Target, g.Permission, state, g.GrantedBy,
				g.GrantedAt.Format("2006-01-02 15:04:05"), formatTime(g.ExpiresAt))
		}
		return nil
	},
}

// share and unshare commands
var shareCmd = &cobra.Command{
	Use:   "share ITEM TARGET PERMISSIONS",
	Short: "Grant permissions on an item and everything below it",
	Long: `Grant a comma-separated list of permissions (or "all") to TARGET on ITEM
and every descendant. Failures on individual items are reported and do not
stop the rest of the tree.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		expires, _ := cmd.Flags().GetString("expires")

		a, err := newApp(cmd.Context(), "Share", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Share(cmd.Context(), as, args[0], args[1], args[2], expires)
		if err != nil {
			return err
		}
		printReport("Shared", report)
		return nil
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare ITEM TARGET [PERMISSIONS]",
	Short: "Revoke permissions on an item and everything below it",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		perms := ""
		if len(args) > 2 {
			perms = args[2]
		}

		a, err := newApp(cmd.Context(), "Unshare", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.Unshare(cmd.Context(), as, args[0], args[1], perms)
		if err != nil {
			return err
		}
		printReport("Unshared", report)
		return nil
	},
}

// request command
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request and review access",
}

var requestCreateCmd = &cobra.Command{
	Use:   "create ITEM PERMISSIONS",
	Short: "Ask for permissions on an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp(cmd.Context(), "RequestAccess", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		req, err := a.RequestAccess(cmd.Context(), as, args[0], args[1], reason)
		if err != nil {
			return err
		}
		fmt.Printf("Request #%d: %s asks for %s on %s\n", req.ID, req.RequesterID, req.Permissions, req.ItemID)
		return nil
	},
}

var requestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List permission requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		item, _ := cmd.Flags().GetString("item")
		requester, _ := cmd.Flags().GetString("requester")
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "ListRequests")
		if err != nil {
			return err
		}
		defer a.Close()

		reqs, err := a.ListRequests(cmd.Context(), status, item, requester, limit)
		if err != nil {
			return err
		}
		if len(reqs) == 0 {
			fmt.Println("No requests.")
			return nil
		}
		for _, r := range reqs {
			fmt.Printf("#%-6d %-8s %-12s %-20s %-24s %s\n",
				r.ID, r.Status, r.RequesterID, r.ItemID, r.Permissions, r.CreatedAt.Format("2006-01-02 15:04:05"))
			if r.Reason != "" {
				fmt.Printf("        reason: %s\n", r.Reason)
			}
			if r.ReviewedBy != "" {
				fmt.Printf("        reviewed by %s at %s: %s\n", r.ReviewedBy, formatTime(r.ReviewedAt), r.ReviewNotes)
			}
		}
		return nil
	},
}

var requestReviewCmd = &cobra.Command{
	Use:   "review REQUEST_ID approve|deny",
	Short: "Approve or deny a pending request",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, err := actor(cmd)
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")

		a, err := newApp(cmd.Context(), "Review", args...)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Review(cmd.Context(), as, args[0], args[1], notes)
		if err != nil {
			return err
		}
		fmt.Printf("Request #%d %s", out.Request.ID, out.Request.Status)
		if len(out.Grants) > 0 {
			fmt.Printf(", %d grant(s) created", len(out.Grants))
		}
		fmt.Println()
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [ITEM]",
	Short: "View the audit log",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		item := ""
		if len(args) > 0 {
			item = args[0]
		}

		a, err := newApp(cmd.Context(), "History")
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.History(cmd.Context(), item, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No audit records.")
			return nil
		}
		for _, r := range records {
			fmt.Printf("%s  %-18s %-12s %-20s %s %s %s\n",
				r.RecordedAt.Format("2006-01-02 15:04:05"), r.Action, r.ActorID, r.ItemID,
				r.Target, r.Permission, r.Detail)
		}
		return nil
	},
}

// runs command
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "View recorded command invocations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd.Context(), "Runs")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, r := range runs {
			duration := ""
			if r.FinishedAt != nil {
				duration = r.FinishedAt.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				r.ID, r.Operation, r.StartedAt.Format("2006-01-02 15:04:05"), r.Status, duration, r.Parameters)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Browse exported audit segments and database snapshots",
}

var archiveListCmd = &cobra.Command{
	Use:   "list [PREFIX]",
	Short: "List archived objects",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := strings.Join(args, "")

		a, err := newApp(cmd.Context(), "ListArchive")
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.ListArchive(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("Archive is empty.")
			return nil
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var archiveShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Write an archived object to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ShowArchive")
		if err != nil {
			return err
		}
		defer a.Close()

		return a.ShowArchive(cmd.Context(), args[0], os.Stdout)
	},
}

func init() {
	rootCmd.PersistentFlags().String("as", "", "Acting user (defaults to $ACL_USER)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// principal subcommands
	userCmd.AddCommand(userAddCmd)
	userAddCmd.Flags().String("name", "", "Display name (defaults to the id)")
	userAddCmd.Flags().Bool("superuser", false, "Bypass all permission checks")
	groupCmd.AddCommand(groupAddCmd)
	groupAddCmd.Flags().String("name", "", "Display name (defaults to the id)")
	groupCmd.AddCommand(groupJoinCmd)

	// item subcommands
	itemCmd.AddCommand(itemAddCmd)
	itemAddCmd.Flags().String("name", "", "Display name")
	itemAddCmd.Flags().BoolP("dir", "d", false, "Register a directory instead of a file")
	itemAddCmd.Flags().StringP("parent", "p", "", "Parent directory id")
	itemAddCmd.Flags().StringP("owner", "o", "", "Owning user id")
	itemAddCmd.Flags().String("visibility", "private", "private, user, group or public")
	itemAddCmd.MarkFlagRequired("owner")
	itemCmd.AddCommand(itemMoveCmd)

	// grant subcommands
	grantCmd.AddCommand(grantCreateCmd)
	grantCreateCmd.Flags().StringP("expires", "e", "", "Expiry: RFC3339 time, duration (72h) or days (30d)")
	grantCmd.AddCommand(grantUpdateCmd)
	grantUpdateCmd.Flags().StringP("expires", "e", "never", "New expiry; \"never\" clears it")
	grantCmd.AddCommand(grantRevokeCmd)
	grantCmd.AddCommand(grantListCmd)
	grantListCmd.Flags().BoolP("all", "a", false, "Include inactive grants")

	shareCmd.Flags().StringP("expires", "e", "", "Expiry: RFC3339 time, duration (72h) or days (30d)")

	// request subcommands
	requestCmd.AddCommand(requestCreateCmd)
	requestCreateCmd.Flags().StringP("reason", "r", "", "Why the access is needed")
	requestCmd.AddCommand(requestListCmd)
	requestListCmd.Flags().String("status", "", "pending, approved or denied")
	requestListCmd.Flags().String("item", "", "Only requests on this item")
	requestListCmd.Flags().String("requester", "", "Only requests by this user")
	requestListCmd.Flags().IntP("limit", "n", 50, "Maximum number of requests to show")
	requestCmd.AddCommand(requestReviewCmd)
	requestReviewCmd.Flags().String("notes", "", "Review notes")

	archiveCmd.AddCommand(archiveListCmd)
	archiveCmd.AddCommand(archiveShowCmd)

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of records to show")
	runsCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(unshareCmd)
	rootCmd.AddCommand(requestCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(archiveCmd)
}
