// Package banner prints the framed status blocks newton shows at the start
// and end of a run, and for the status command.
package banner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/logging"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

const rule = "═══════════════════════════════════════════════════"

var out io.Writer = os.Stdout

// SetOutput redirects banners; nil restores stdout.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	out = w
}

func line(a ...any)                 { fmt.Fprintln(out, a...) }
func linef(format string, a ...any) { fmt.Fprintf(out, format, a...) }

// RunInfo is what the startup banner shows.
type RunInfo struct {
	ExecutionID   string
	Workspace     string
	GoalFile      string
	Branch        string
	MaxIterations int
	MaxTime       time.Duration
}

// PrintStartupBanner displays the run parameters.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  newton - evaluate, advise, execute
//	═══════════════════════════════════════════════════
//	  Execution:  4f0c...
//	  Workspace:  /src/app
//	  Goal:       .newton/state/goal.txt
//	  Limits:     10 iterations, 5m 0s
//	═══════════════════════════════════════════════════
func PrintStartupBanner(info RunInfo) {
	sep := headerColor(rule)
	line(sep)
	line(headerColor("  newton - evaluate, advise, execute"))
	line(sep)
	if info.ExecutionID != "" {
		linef("  Execution:  %s\n", info.ExecutionID)
	}
	linef("  Workspace:  %s\n", info.Workspace)
	if info.GoalFile != "" {
		linef("  Goal:       %s\n", info.GoalFile)
	}
	if info.Branch != "" {
		linef("  Branch:     %s\n", info.Branch)
	}
	limit := "no time limit"
	if info.MaxTime > 0 {
		limit = logging.FormatDuration(info.MaxTime)
	}
	linef("  Limits:     %d iterations, %s\n", info.MaxIterations, limit)
	line(sep)
}

// PrintBatchBanner displays the batch runner parameters.
func PrintBatchBanner(projectID, projectRoot, queueRoot string, once bool) {
	sep := headerColor(rule)
	line(sep)
	line(headerColor("  newton batch"))
	line(sep)
	linef("  Project:    %s\n", projectID)
	linef("  Root:       %s\n", projectRoot)
	linef("  Queue:      %s\n", queueRoot)
	if once {
		line("  Mode:       once")
	} else {
		line("  Mode:       daemon")
	}
	line(sep)
}

// PrintResultBanner displays the terminal state of an execution.
func PrintResultBanner(exec *domain.OptimizationExecution) {
	elapsed := time.Duration(0)
	if exec.StartedAt != nil && exec.CompletedAt != nil {
		elapsed = exec.CompletedAt.Sub(*exec.StartedAt)
	}

	switch exec.Status {
	case domain.ExecutionCompleted:
		sep := successColor(rule)
		line(sep)
		line(successColor("  ✓ Goal reached"))
		linef("  Iterations: %d\n", exec.IterationCount())
		linef("  Duration:   %s\n", logging.FormatDuration(elapsed))
		line(sep)
	case domain.ExecutionTerminated:
		sep := warnColor(rule)
		line(sep)
		linef(warnColor("  ⚠ Stopped: %s (%d/%d iterations)\n"), exec.TerminationReason, exec.IterationCount(), exec.MaxIterations)
		linef("  Duration:   %s\n", logging.FormatDuration(elapsed))
		line(sep)
	default:
		sep := errorColor(rule)
		line(sep)
		line(errorColor("  ✗ Execution failed"))
		if n := len(exec.Errors); n > 0 {
			last := exec.Errors[n-1]
			linef("  %s: %s\n", last.Category, last.Message)
			if last.Suggestion != "" {
				linef("  Hint: %s\n", last.Suggestion)
			}
		}
		line(sep)
	}
}

// PrintInterruptedBanner displays when a run is stopped by a signal.
func PrintInterruptedBanner(sig os.Signal) {
	sep := warnColor(rule)
	line(sep)
	linef(warnColor("  ⚠ Interrupted by %s\n"), sig)
	line("  Running tools were stopped; history is saved")
	line(sep)
}

// PrintStatusBanner displays a stored execution for the status command.
//
// Example output:
//
//	──────────────────────────────────────────────────
//	  Execution:  4f0c...
//	  Status:     completed
//	  Iterations: 3
//	  Started:    2026-01-30T15:30:45Z
//	  Completed:  2026-01-30T15:41:02Z
//	──────────────────────────────────────────────────
func PrintStatusBanner(exec *domain.OptimizationExecution) {
	sep := strings.Repeat("─", 50)
	line(sep)
	linef("  Execution:  %s\n", exec.ExecutionID)
	linef("  Status:     %s\n", exec.Status)
	linef("  Iterations: %d\n", exec.IterationCount())
	linef("  Started:    %s\n", formatTime(exec.StartedAt))
	linef("  Completed:  %s\n", formatTime(exec.CompletedAt))
	if exec.TerminationReason != "" {
		linef("  Reason:     %s\n", exec.TerminationReason)
	}
	line(sep)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
