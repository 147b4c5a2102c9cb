package state

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/gonewton/newton/internal/domain"
)

// Format selects the report rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown report format %q (want text or json)", s)
}

// Report summarizes one execution.
type Report struct {
	ExecutionID         string                 `json:"execution_id"`
	WorkspacePath       string                 `json:"workspace_path"`
	Status              domain.ExecutionStatus `json:"status"`
	TerminationReason   string                 `json:"termination_reason,omitempty"`
	Iterations          int                    `json:"iterations"`
	CompletedIterations int                    `json:"completed_iterations"`
	MaxIterations       int                    `json:"max_iterations"`
	DurationSeconds     float64                `json:"duration_seconds"`
	BestScore           *float64               `json:"best_score,omitempty"`
	LastScore           *float64               `json:"last_score,omitempty"`
	ErrorCount          int                    `json:"error_count"`
	LatestError         *domain.ErrorRecord    `json:"latest_error,omitempty"`
	IterationSummaries  []IterationSummary     `json:"iteration_summaries"`
}

// IterationSummary is one row of a report.
type IterationSummary struct {
	Number       int                    `json:"number"`
	Status       domain.IterationStatus `json:"status"`
	Score        *float64               `json:"score,omitempty"`
	EvaluatorOK  *bool                  `json:"evaluator_ok,omitempty"`
	AdvisorOK    *bool                  `json:"advisor_ok,omitempty"`
	ExecutorOK   *bool                  `json:"executor_ok,omitempty"`
	Errors       int                    `json:"errors"`
	DurationSecs float64                `json:"duration_seconds"`
}

// BuildReport derives a report from a stored execution.
func BuildReport(exec *domain.OptimizationExecution) Report {
	r := Report{
		ExecutionID:         exec.ExecutionID,
		WorkspacePath:       exec.WorkspacePath,
		Status:              exec.Status,
		TerminationReason:   string(exec.TerminationReason),
		Iterations:          exec.IterationCount(),
		CompletedIterations: exec.CompletedIterations(),
		MaxIterations:       exec.MaxIterations,
		DurationSeconds:     exec.Duration().Seconds(),
		ErrorCount:          len(exec.AllErrors()),
		LatestError:         exec.LatestError(),
		IterationSummaries:  make([]IterationSummary, 0, len(exec.Iterations)),
	}

	for _, it := range exec.Iterations {
		s := IterationSummary{
			Number:      it.Number,
			Status:      it.Status,
			Score:       it.Score,
			EvaluatorOK: toolOK(it.Evaluator),
			AdvisorOK:   toolOK(it.Advisor),
			ExecutorOK:  toolOK(it.Executor),
			Errors:      len(it.Errors),
		}
		if it.CompletedAt != nil {
			s.DurationSecs = it.CompletedAt.Sub(it.StartedAt).Seconds()
		}
		r.IterationSummaries = append(r.IterationSummaries, s)

		if it.Score != nil {
			r.LastScore = it.Score
			if r.BestScore == nil || *it.Score > *r.BestScore {
				r.BestScore = it.Score
			}
		}
	}
	return r
}

func toolOK(res *domain.ToolResult) *bool {
	if res == nil {
		return nil
	}
	ok := res.Success
	return &ok
}

// WriteReport renders the report of exec to w.
func WriteReport(w io.Writer, exec *domain.OptimizationExecution, format Format) error {
	r := BuildReport(exec)
	if format == FormatJSON {
		data, err := json.MarshalIndent(r, "", "    ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	}
	return writeText(w, r)
}

func writeText(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Execution %s\n", r.ExecutionID)
	fmt.Fprintf(&b, "Workspace:  %s\n", r.WorkspacePath)
	fmt.Fprintf(&b, "Status:     %s", r.Status)
	if r.TerminationReason != "" {
		fmt.Fprintf(&b, " (%s)", r.TerminationReason)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Iterations: %d/%d (%d completed)\n", r.Iterations, r.MaxIterations, r.CompletedIterations)
	fmt.Fprintf(&b, "Duration:   %.1fs\n", r.DurationSeconds)
	fmt.Fprintf(&b, "Best score: %s\n", scoreString(r.BestScore))
	fmt.Fprintf(&b, "Errors:     %d\n", r.ErrorCount)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}

	if len(r.IterationSummaries) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ITER\tSTATUS\tSCORE\tEVAL\tADVISE\tEXEC\tERRORS")
		for _, s := range r.IterationSummaries {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
				s.Number, s.Status, scoreString(s.Score),
				okString(s.EvaluatorOK), okString(s.AdvisorOK), okString(s.ExecutorOK), s.Errors)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if r.LatestError != nil {
		fmt.Fprintf(w, "\nLatest error: [%s] %s\n", r.LatestError.Category, r.LatestError.Message)
	}
	return nil
}

func scoreString(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *s)
}

func okString(b *bool) string {
	switch {
	case b == nil:
		return "-"
	case *b:
		return "ok"
	default:
		return "fail"
	}
}
