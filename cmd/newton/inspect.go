package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/gonewton/newton/internal/banner"
	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/state"
	"github.com/gonewton/newton/internal/workspace"
)

// errorLogPreview is how many error.log lines `error` prints without
// --verbose.
const errorLogPreview = 10

// historyOf returns the execution history of the workspace at path
// (default: current directory).
func historyOf(path string) (*state.Manager, error) {
	if path == "" {
		path = "."
	}
	ws, err := workspace.Validate(path)
	if err != nil {
		return nil, err
	}
	return state.NewManager(ws), nil
}

func newStatusCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "status <execution-id>",
		Short: "Show the state of a recorded execution",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := historyOf(path)
			id := args[0]
			if err != nil {
				return err
			}
			exec, err := m.Load(id)
			if err != nil {
				return err
			}
			banner.SetOutput(cmd.OutOrStdout())
			defer banner.SetOutput(nil)
			banner.PrintStatusBanner(exec)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Workspace directory (default: current directory)")
	return cmd
}

func newReportCmd() *cobra.Command {
	var path, format string
	cmd := &cobra.Command{
		Use:   "report <execution-id>",
		Short: "Print an execution report",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := state.ParseFormat(format)
			if err != nil {
				return &config.ConfigError{Key: "--format", Reason: err.Error()}
			}
			m, err := historyOf(path)
			id := args[0]
			if err != nil {
				return err
			}
			exec, err := m.Load(id)
			if err != nil {
				return err
			}
			return state.WriteReport(cmd.OutOrStdout(), exec, f)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Workspace directory (default: current directory)")
	cmd.Flags().StringVar(&format, "format", string(state.FormatText), "Output format: text or json")
	return cmd
}

func newErrorCmd() *cobra.Command {
	var path string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "error <execution-id>",
		Short: "Show the errors of an execution",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := historyOf(path)
			id := args[0]
			if err != nil {
				return err
			}
			exec, err := m.Load(id)
			if err != nil {
				return err
			}
			lines, err := m.ReadErrorLog(id)
			if err != nil {
				return err
			}
			writeErrors(cmd.OutOrStdout(), exec.ExecutionID, exec.LatestError(), lines, verbose)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Workspace directory (default: current directory)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print the whole error log")
	return cmd
}

func writeErrors(w io.Writer, executionID string, latest *domain.ErrorRecord, lines []string, verbose bool) {
	if latest == nil {
		fmt.Fprintf(w, "No errors recorded for execution %s\n", executionID)
		return
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(w, "%s %s\n", bold("Latest error of execution"), executionID)
	fmt.Fprintf(w, "  Category:   %s\n", latest.Category)
	fmt.Fprintf(w, "  Severity:   %s\n", latest.Severity)
	fmt.Fprintf(w, "  Message:    %s\n", latest.Message)
	if latest.Suggestion != "" {
		fmt.Fprintf(w, "  Suggestion: %s\n", latest.Suggestion)
	}

	if len(lines) == 0 {
		return
	}
	shown := lines
	if !verbose && len(shown) > errorLogPreview {
		shown = shown[:errorLogPreview]
	}
	fmt.Fprintf(w, "\n%s (%d of %d)\n", bold("Error log"), len(shown), len(lines))
	for _, l := range shown {
		fmt.Fprintln(w, l)
	}
	if len(shown) < len(lines) {
		fmt.Fprintln(w, "... use --verbose to see all entries")
	}
}
