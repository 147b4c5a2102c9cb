package banner

import (
	"bytes"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gonewton/newton/internal/domain"
)

func init() {
	color.NoColor = true
}

// capture redirects banner output for the duration of fn.
func capture(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(nil)
	fn()
	return buf.String()
}

func TestPrintStartupBanner(t *testing.T) {
	tests := []struct {
		name         string
		info         RunInfo
		expectedText []string
		absentText   []string
	}{
		{
			name: "full",
			info: RunInfo{
				ExecutionID:   "exec-1",
				Workspace:     "/src/app",
				GoalFile:      "/src/app/.newton/state/goal.txt",
				Branch:        "feature/fast",
				MaxIterations: 10,
				MaxTime:       5 * time.Minute,
			},
			expectedText: []string{"newton", "exec-1", "/src/app", "goal.txt", "feature/fast", "10 iterations"},
		},
		{
			name:         "minimal",
			info:         RunInfo{Workspace: "/ws", MaxIterations: 3},
			expectedText: []string{"/ws", "3 iterations, no time limit"},
			absentText:   []string{"Execution:", "Goal:", "Branch:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := capture(t, func() { PrintStartupBanner(tt.info) })
			for _, text := range tt.expectedText {
				assert.Contains(t, output, text)
			}
			for _, text := range tt.absentText {
				assert.NotContains(t, output, text)
			}
		})
	}
}

func TestPrintBatchBanner(t *testing.T) {
	output := capture(t, func() { PrintBatchBanner("demo", "/src/app", "/ws/.newton/plan/demo", true) })
	assert.Contains(t, output, "demo")
	assert.Contains(t, output, "/ws/.newton/plan/demo")
	assert.Contains(t, output, "Mode:       once")

	output = capture(t, func() { PrintBatchBanner("demo", "/src/app", "/q", false) })
	assert.Contains(t, output, "Mode:       daemon")
}

func TestPrintResultBanner(t *testing.T) {
	start := time.Date(2026, 1, 30, 15, 0, 0, 0, time.UTC)
	newExec := func() *domain.OptimizationExecution {
		e := domain.NewExecution(domain.NewWorkspace("/ws"), 4, 0)
		_ = e.Start(start)
		_ = e.AddIteration(domain.NewIteration(e.ExecutionID, 1, start))
		return e
	}

	completed := newExec()
	_ = completed.Complete(start.Add(90*time.Second), "it-1")

	limited := newExec()
	_ = limited.Terminate(start.Add(time.Minute), domain.ReasonIterationLimit)

	failed := newExec()
	_ = failed.Fail(start, &domain.ErrorRecord{
		Category:   domain.CategoryConfiguration,
		Message:    "evaluator command is empty",
		Suggestion: "fix the configuration",
	})

	tests := []struct {
		name         string
		exec         *domain.OptimizationExecution
		expectedText []string
	}{
		{"completed", completed, []string{"Goal reached", "Iterations: 1", "1m 30s"}},
		{"terminated", limited, []string{"Stopped: IterationLimit (1/4 iterations)"}},
		{"failed", failed, []string{"Execution failed", "Configuration: evaluator command is empty", "Hint: fix the configuration"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := capture(t, func() { PrintResultBanner(tt.exec) })
			for _, text := range tt.expectedText {
				assert.Contains(t, output, text)
			}
		})
	}
}

func TestPrintInterruptedBanner(t *testing.T) {
	output := capture(t, func() { PrintInterruptedBanner(syscall.SIGINT) })
	assert.Contains(t, output, "Interrupted by interrupt")
}

func TestPrintStatusBanner(t *testing.T) {
	start := time.Date(2026, 1, 30, 15, 30, 45, 0, time.UTC)
	e := domain.NewExecution(domain.NewWorkspace("/ws"), 4, 0)
	_ = e.Start(start)

	output := capture(t, func() { PrintStatusBanner(e) })
	assert.Contains(t, output, e.ExecutionID)
	assert.Contains(t, output, "Status:     running")
	assert.Contains(t, output, "Started:    2026-01-30T15:30:45Z")
	assert.Contains(t, output, "Completed:  -")
	assert.NotContains(t, output, "Reason:")
}

func TestSetOutputNilRestoresStdout(t *testing.T) {
	SetOutput(&bytes.Buffer{})
	SetOutput(nil)
	assert.Equal(t, os.Stdout, out)
}
