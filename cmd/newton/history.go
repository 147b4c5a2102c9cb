package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/ledger"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/workspace"
)

func newHistoryCmd() *cobra.Command {
	var dir string
	var limit int
	cmd := &cobra.Command{
		Use:   "history <project-id>",
		Short: "List recent batch outcomes for a project",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return &config.ConfigError{Key: "--limit", Reason: fmt.Sprintf("must not be negative, got %d", limit)}
			}
			start, err := workspaceDir(dir)
			if err != nil {
				return err
			}
			root, err := workspace.FindRoot(start)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), ledger.Path(root), args[0], limit)
		},
	}
	cmd.Flags().StringVar(&dir, "workspace", "", "Workspace directory (default: search upward from cwd)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 lists all)")
	return cmd
}

func printHistory(w io.Writer, dbPath, projectID string, limit int) error {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "No runs recorded for project %s\n", projectID)
		return nil
	}

	l, err := ledger.New(dbPath)
	if err != nil {
		return err
	}
	defer l.Close()

	entries, err := l.Recent(projectID, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "No runs recorded for project %s\n", projectID)
		return nil
	}
	counts, err := l.Counts(projectID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tTASK\tPLAN\tBRANCH\tOUTCOME\tSTATUS\tDURATION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.TaskID, e.PlanFile, dash(e.Branch), e.Outcome, dash(e.ExecutionStatus),
			logging.FormatDuration(e.Duration()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d succeeded, %d failed\n", counts[ledger.OutcomeSuccess], counts[ledger.OutcomeFailure])
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
