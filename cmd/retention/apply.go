package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dcatlin7921/iletsb-records-retention-system-sub000/pkg/types"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create or update a record from a manifest file",
	Long: `Apply a series record from a YAML or JSON manifest.

A manifest without an id creates a new record. A manifest with an id
updates the stored record; its version field must match the stored
version or the save is rejected as a conflict.

Examples:
  # Create a record
  retention apply -f series.yaml

  # Update: get, edit, re-apply
  retention get 4f7c... > series.json
  retention apply -f series.json`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "Manifest file to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %v", err)
	}

	// YAML is a superset of JSON, so one decoder covers both.
	var rec types.SeriesRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("failed to parse manifest: %v", err)
	}

	m, err := openManager(cmd)
	if err != nil {
		return err
	}
	defer m.Close()

	isUpdate := rec.ID != ""
	saved, err := m.SaveRecord(&rec, isUpdate)
	if err != nil {
		return err
	}
	if isUpdate {
		fmt.Printf("✓ Record %s updated (version %d)\n", saved.ID, saved.Version)
	} else {
		fmt.Printf("✓ Record %s created\n", saved.ID)
	}
	return nil
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage retention schedules",
}

var scheduleApplyCmd = &cobra.Command{
	Use:   "apply <schedule-number>",
	Short: "Apply a schedule-level edit to every record on the schedule",
	Long: `Apply one edit to every record sharing a schedule number, as a
single atomic cascade: either every record updates or none does.

Examples:
  retention schedule apply 25-001 --status approved --approval-date 2025-06-30
  retention schedule apply 25-001 --division "Patrol Services"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		edit := types.ScheduleEdit{}
		if cmd.Flags().Changed("status") {
			status, _ := cmd.Flags().GetString("status")
			s := types.ApprovalStatus(status)
			edit.ApprovalStatus = &s
		}
		if cmd.Flags().Changed("approval-date") {
			date, _ := cmd.Flags().GetString("approval-date")
			edit.ApprovalDate = &date
		}
		if cmd.Flags().Changed("division") {
			division, _ := cmd.Flags().GetString("division")
			edit.Division = &division
		}
		if cmd.Flags().Changed("notes") {
			notes, _ := cmd.Flags().GetString("notes")
			edit.Notes = &notes
		}
		if cmd.Flags().Changed("tag") {
			tags, _ := cmd.Flags().GetStringSlice("tag")
			edit.Tags = &tags
		}
		if edit.IsZero() {
			return fmt.Errorf("nothing to apply: set at least one of --status, --approval-date, --division, --notes, --tag")
		}

		m, err := openManager(cmd)
		if err != nil {
			return err
		}
		defer m.Close()

		n, err := m.ApplyScheduleEdit(args[0], edit)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d records updated on schedule %s\n", n, args[0])
		return nil
	},
}

func init() {
	scheduleApplyCmd.Flags().String("status", "", "Approval status to set")
	scheduleApplyCmd.Flags().String("approval-date", "", "Approval date to set")
	scheduleApplyCmd.Flags().String("division", "", "Division to set")
	scheduleApplyCmd.Flags().String("notes", "", "Notes to set")
	scheduleApplyCmd.Flags().StringSlice("tag", nil, "Tags to set (replaces existing tags)")

	scheduleCmd.AddCommand(scheduleApplyCmd)
}
