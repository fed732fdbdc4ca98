package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/log"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/manager"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/query"
	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "retention",
	Short: "Retention - records-retention inventory editor",
	Long: `Retention manages a local records-retention inventory: series
records merged with their retention-schedule metadata, kept in an
embedded store with a full audit trail. No server required.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, _ := cmd.Flags().GetString("log-level")
		jsonOut, _ := cmd.Flags().GetBool("log-json")
		log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOut})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Retention version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("data-dir", defaultDataDir(), "Data directory holding the store")
	rootCmd.PersistentFlags().String("actor", defaultActor(), "Actor recorded on audit events")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Log as JSON instead of console output")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(migrateCmd)
}

func defaultDataDir() string {
	if dir := os.Getenv("RETENTION_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home + "/.retention"
}

func defaultActor() string {
	if actor := os.Getenv("RETENTION_ACTOR"); actor != "" {
		return actor
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "unknown"
}

// openManager opens the store for one CLI invocation, migrating first.
func openManager(cmd *cobra.Command) (*manager.Manager, error) {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	actor, _ := cmd.Flags().GetString("actor")
	m, summary, err := manager.Open(&manager.Config{DataDir: dataDir, Actor: actor})
	if err != nil {
		return nil, err
	}
	if summary.FromVersion != summary.ToVersion {
		fmt.Printf("✓ Store migrated from schema version %d to %d\n", summary.FromVersion, summary.ToVersion)
		if summary.Skipped > 0 {
			fmt.Printf("⚠ %d records skipped during migration; see log\n", summary.Skipped)
		}
	}
	return m, nil
}

func printRecords(records []*types.SeriesRecord) {
	for _, rec := range records {
		key := rec.ScheduleNumber
		if rec.ItemNumber != "" {
			key += "/" + rec.ItemNumber
		}
		if key == "" {
			key = "-"
		}
		fmt.Printf("%-38s %-12s %-10s %s\n", rec.ID, key, rec.ApprovalStatus, rec.RecordSeriesTitle)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all series records",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		records, err := m.Search(query.Criteria{})
		if err != nil {
			return err
		}
		printRecords(records)
		fmt.Printf("\n%d records\n", len(records))
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one record as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		rec, err := m.GetRecord(args[0])
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search records",
	Long: `Search records with free text and typed filters.

Examples:
  retention search "25-001 training"
  retention search --division "Patrol" --status approved
  retention search --tag fiscal --sort-by approval_date --order desc`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		c := query.Criteria{}
		if len(args) > 0 {
			c.SearchText = args[0]
		}
		c.ScheduleNumber, _ = cmd.Flags().GetString("schedule")
		c.Division, _ = cmd.Flags().GetString("division")
		status, _ := cmd.Flags().GetString("status")
		c.ApprovalStatus = types.ApprovalStatus(status)
		c.Tags, _ = cmd.Flags().GetStringSlice("tag")
		c.MediaTypes, _ = cmd.Flags().GetStringSlice("media")
		c.ApprovalYearFrom, _ = cmd.Flags().GetString("approved-from")
		c.ApprovalYearTo, _ = cmd.Flags().GetString("approved-to")
		c.CoverageYearFrom, _ = cmd.Flags().GetString("covered-from")
		c.CoverageYearTo, _ = cmd.Flags().GetString("covered-to")
		sortBy, _ := cmd.Flags().GetString("sort-by")
		c.SortBy = query.SortKey(sortBy)
		order, _ := cmd.Flags().GetString("order")
		c.SortOrder = query.SortOrder(order)

		records, err := m.Search(c)
		if err != nil {
			return err
		}
		printRecords(records)
		fmt.Printf("\n%d records\n", len(records))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record (audit history is retained)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		if err := m.DeleteRecord(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Record %s deleted\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		stats, err := m.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Series records: %d\n", stats.SeriesCount)
		fmt.Printf("Audit events:   %d\n", stats.AuditCount)
		fmt.Printf("Schema version: %d\n", stats.SchemaVersion)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the store to the current schema version",
	Long: `Migrate opens the store, which runs any pending schema
transforms, and reports what was done. Opening the store with any other
command migrates too; this command just does nothing else.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		stats, err := m.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Store is at schema version %d (%d records)\n", stats.SchemaVersion, stats.SeriesCount)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("schedule", "", "Filter by schedule number")
	searchCmd.Flags().String("division", "", "Filter by division")
	searchCmd.Flags().String("status", "", "Filter by approval status")
	searchCmd.Flags().StringSlice("tag", nil, "Filter by tag (any match)")
	searchCmd.Flags().StringSlice("media", nil, "Filter by media type (any match)")
	searchCmd.Flags().String("approved-from", "", "Approval year lower bound")
	searchCmd.Flags().String("approved-to", "", "Approval year upper bound")
	searchCmd.Flags().String("covered-from", "", "Coverage year lower bound")
	searchCmd.Flags().String("covered-to", "", "Coverage year upper bound")
	searchCmd.Flags().String("sort-by", "schedule_item", "Sort key (schedule_item, title, division, approval_date, coverage_start, updated_at)")
	searchCmd.Flags().String("order", "asc", "Sort order (asc, desc)")
}
