package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foldcrew/internal/state"
	"github.com/ShayCichocki/foldcrew/pkg/models"
)

var (
	runsLimit     int
	runsOlderThan time.Duration
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded runs",
	Long: `List runs recorded in the ledger, newest first.

Use 'foldcrew runs show <run-id>' for the backend attempts and failure
diagnostics of a single run.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerForCmd()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded. Run 'foldcrew run <file>' to start.")
			return nil
		}
		for _, r := range runs {
			printRunLine(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its attempts and diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerForCmd()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		run, err := db.GetRun(ctx, args[0])
		if errors.Is(err, state.ErrNotFound) {
			return fmt.Errorf("no run with id %q", args[0])
		}
		if err != nil {
			return err
		}
		attempts, err := db.ListAttempts(ctx, run.ID)
		if err != nil {
			return err
		}
		diags, err := db.ListDiagnostics(ctx, run.ID)
		if err != nil {
			return err
		}
		printRunDetail(cmd.OutOrStdout(), run, attempts, diags)
		return nil
	},
}

var runsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete finished runs older than a cutoff",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openLedgerForCmd()
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := db.PurgeOldRuns(cmd.Context(), runsOlderThan)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged %d run(s) older than %s\n", n, formatDuration(runsOlderThan))
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	runsPurgeCmd.Flags().DurationVar(&runsOlderThan, "older-than", 30*24*time.Hour, "Purge runs started before this long ago")
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsPurgeCmd)
}

func openLedgerForCmd() (*state.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return openLedger(cfg)
}

func statusString(s models.RunStatus) string {
	switch s {
	case models.RunStatusCompleted:
		return color.GreenString(string(s))
	case models.RunStatusFailed:
		return color.RedString(string(s))
	case models.RunStatusRejected:
		return color.YellowString(string(s))
	default:
		return color.CyanString(string(s))
	}
}

func printRunLine(w io.Writer, r state.Run) {
	selected := strings.Join(r.SelectedModels, ",")
	if selected == "" {
		selected = "-"
	}
	fmt.Fprintf(w, "%s  %-10s %-20s %d/%d chains  %-14s (%s ago)\n",
		r.ID, statusString(r.Status), r.StructureName, r.CleanChains, r.NumChains,
		selected, formatDuration(time.Since(r.StartedAt)))
}

func printRunDetail(w io.Writer, r *state.Run, attempts []state.Attempt, diags []state.DiagnosticRecord) {
	fmt.Fprintf(w, "Run: %s\n", r.ID)
	fmt.Fprintf(w, "  Status: %s\n", statusString(r.Status))
	if r.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", r.Error)
	}
	fmt.Fprintf(w, "  Structure: %s\n", r.StructureName)
	fmt.Fprintf(w, "  Chains: %d declared, %d valid, %d dropped\n", r.NumChains, r.CleanChains, r.DroppedChains)
	fmt.Fprintf(w, "  Oracle: %s\n", r.Oracle)
	if len(r.SelectedModels) > 0 {
		fmt.Fprintf(w, "  Selected: %s\n", strings.Join(r.SelectedModels, ", "))
	}
	if r.Explanation != "" {
		fmt.Fprintf(w, "  Reason: %s\n", r.Explanation)
	}
	fmt.Fprintf(w, "  Started: %s\n", r.StartedAt.Local().Format(time.DateTime))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(r.FinishedAt.Sub(r.StartedAt)))
	}

	if len(attempts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Attempts:")
		for _, a := range attempts {
			switch {
			case !a.Selected:
				fmt.Fprintf(w, "  %s %-8s not selected\n", color.New(color.Faint).Sprint("–"), a.Model)
			case a.Success:
				fmt.Fprintf(w, "  %s %-8s %s (%s)\n", color.GreenString("✓"), a.Model, a.OutputPath, formatDuration(a.Duration))
			default:
				fmt.Fprintf(w, "  %s %-8s failed (%s)\n", color.RedString("✗"), a.Model, formatDuration(a.Duration))
			}
		}
	}

	if len(diags) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Diagnostics:")
		for _, d := range diags {
			fmt.Fprintf(w, "  [%s/%s] %s", d.Model, d.Stage, d.Message)
			if d.StatusCode != 0 {
				fmt.Fprintf(w, " (HTTP %d)", d.StatusCode)
			}
			if d.Stage == "process" {
				fmt.Fprintf(w, " (exit %d)", d.ExitCode)
			}
			fmt.Fprintln(w)
			if d.Detail != "" {
				for _, line := range strings.Split(strings.TrimRight(d.Detail, "\n"), "\n") {
					fmt.Fprintf(w, "      %s\n", line)
				}
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		h := int(d.Hours())
		m := int(d.Minutes()) % 60
		if m > 0 {
			return fmt.Sprintf("%dh%dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	days := int(d.Hours()) / 24
	return fmt.Sprintf("%dd", days)
}
