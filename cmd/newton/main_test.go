//go:build !windows

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewton/newton/internal/banner"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/exitcode"
	"github.com/gonewton/newton/internal/ledger"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/queue"
	"github.com/gonewton/newton/internal/state"
)

func init() {
	color.NoColor = true
	logging.SetOutput(io.Discard, io.Discard)
	banner.SetOutput(io.Discard)
}

// run executes the CLI and returns the exit code and captured command output.
func run(t *testing.T, args ...string) (int, string) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	code := execute(root, args)
	return code, out.String()
}

func writeTool(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755))
	return path
}

// toolWorkspace returns a workspace with evaluator, advisor and executor
// scripts. The evaluator writes a score and, when done is set, signals
// completion through the control file.
func toolWorkspace(t *testing.T, done bool) (ws string, flags []string) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ws = t.TempDir()
	bin := t.TempDir()
	evalBody := `echo 42 > "$NEWTON_SCORE_FILE"`
	if done {
		evalBody += `; echo '{"done": true}' > "$NEWTON_CONTROL_FILE"`
	}
	flags = []string{
		"--evaluator-cmd", writeTool(t, bin, "eval.sh", evalBody),
		"--advisor-cmd", writeTool(t, bin, "advise.sh", "exit 0"),
		"--executor-cmd", writeTool(t, bin, "exec.sh", "exit 0"),
		"--tool-timeout", "10",
	}
	return ws, flags
}

func onlyExecution(t *testing.T, ws string) *domain.OptimizationExecution {
	t.Helper()
	m := state.NewManager(ws)
	ids, err := m.List()
	require.NoError(t, err)
	require.Len(t, ids, 1)
	exec, err := m.Load(ids[0])
	require.NoError(t, err)
	return exec
}

func TestVersion(t *testing.T) {
	code, out := run(t, "version")

	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "newton dev (commit: unknown")
}

func TestUsageErrorsAreConfiguration(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"run", t.TempDir(), "--bogus"}},
		{"missing workspace arg", []string{"run"}},
		{"goal and goal file", []string{"run", t.TempDir(), "--goal", "x", "--goal-file", "y"}},
		{"bad sleep", []string{"batch", "demo", "--sleep", "never"}},
		{"bad report format", []string{"report", "abc", "--format", "xml"}},
		{"negative history limit", []string{"history", "demo", "--limit", "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := run(t, tt.args...)
			assert.Equal(t, exitcode.Configuration, code)
		})
	}
}

func TestRun_MissingWorkspace(t *testing.T) {
	code, _ := run(t, "run", filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, exitcode.WorkspaceInvalid, code)
}

func TestRun_EmptyToolCommandIsConfiguration(t *testing.T) {
	ws := t.TempDir()

	code, _ := run(t, "run", ws)

	assert.Equal(t, exitcode.Configuration, code)
	exec := onlyExecution(t, ws)
	assert.Equal(t, domain.ExecutionFailed, exec.Status)
}

func TestRun_MalformedTomlIsConfiguration(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "newton.toml"), []byte("evaluator_cmd = [unterminated"), 0644))

	code, _ := run(t, "run", ws)

	assert.Equal(t, exitcode.Configuration, code)
}

func TestRun_GoalReached(t *testing.T) {
	ws, flags := toolWorkspace(t, true)

	code, _ := run(t, append([]string{"run", ws, "--goal", "answer everything"}, flags...)...)

	assert.Equal(t, exitcode.Success, code)
	exec := onlyExecution(t, ws)
	assert.Equal(t, domain.ExecutionCompleted, exec.Status)
	require.Len(t, exec.Iterations, 1)
	require.NotNil(t, exec.Iterations[0].Score)
	assert.Equal(t, 42.0, *exec.Iterations[0].Score)

	goal, err := os.ReadFile(filepath.Join(ws, ".newton", "state", "goal.txt"))
	require.NoError(t, err)
	assert.Equal(t, "answer everything", string(goal))
	assert.NotEmpty(t, exec.GoalHash)
}

func TestRun_IterationLimit(t *testing.T) {
	ws, flags := toolWorkspace(t, false)

	code, _ := run(t, append([]string{"run", ws, "--max-iterations", "2"}, flags...)...)

	assert.Equal(t, exitcode.IterationLimit, code)
	exec := onlyExecution(t, ws)
	assert.Equal(t, domain.ReasonIterationLimit, exec.TerminationReason)
	assert.Len(t, exec.Iterations, 2)
}

func TestRun_TomlSuppliesTools(t *testing.T) {
	ws, flags := toolWorkspace(t, true)
	toml := "evaluator_cmd = \"" + flags[1] + "\"\nadvisor_cmd = \"" + flags[3] + "\"\nexecutor_cmd = \"" + flags[5] + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, "newton.toml"), []byte(toml), 0644))

	code, _ := run(t, "run", ws)

	assert.Equal(t, exitcode.Success, code)
}

func TestInspectionCommands(t *testing.T) {
	ws, flags := toolWorkspace(t, false)
	code, _ := run(t, append([]string{"run", ws, "--max-iterations", "1"}, flags...)...)
	require.Equal(t, exitcode.IterationLimit, code)
	id := onlyExecution(t, ws).ExecutionID

	t.Run("status", func(t *testing.T) {
		code, out := run(t, "status", id, "--path", ws)
		assert.Equal(t, exitcode.Success, code)
		assert.Contains(t, out, "Execution:  "+id)
		assert.Contains(t, out, "Status:     terminated")
	})

	t.Run("report json", func(t *testing.T) {
		code, out := run(t, "report", id, "--path", ws, "--format", "json")
		require.Equal(t, exitcode.Success, code)
		var r state.Report
		require.NoError(t, json.Unmarshal([]byte(out), &r))
		assert.Equal(t, id, r.ExecutionID)
		assert.Equal(t, 1, r.Iterations)
	})

	t.Run("report text", func(t *testing.T) {
		code, out := run(t, "report", id, "--path", ws)
		assert.Equal(t, exitcode.Success, code)
		assert.Contains(t, out, "Best score: 42")
	})

	t.Run("error without errors", func(t *testing.T) {
		code, out := run(t, "error", id, "--path", ws)
		assert.Equal(t, exitcode.Success, code)
		assert.Contains(t, out, "No errors recorded")
	})

	t.Run("unknown execution", func(t *testing.T) {
		code, _ := run(t, "status", "nope", "--path", ws)
		assert.Equal(t, exitcode.Error, code)
	})
}

func TestErrorCommand_ShowsLatestError(t *testing.T) {
	ws := t.TempDir()
	code, _ := run(t, "run", ws)
	require.Equal(t, exitcode.Configuration, code)
	id := onlyExecution(t, ws).ExecutionID

	code, out := run(t, "error", id, "--path", ws)

	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "Category:   Configuration")
	assert.Contains(t, out, "Error log (1 of 1)")
}

func TestWriteErrors_TruncatesWithoutVerbose(t *testing.T) {
	rec := &domain.ErrorRecord{Category: domain.CategoryToolFailure, Severity: domain.SeverityHigh, Message: "boom"}
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "{}"
	}

	var short, long bytes.Buffer
	writeErrors(&short, "e1", rec, lines, false)
	writeErrors(&long, "e1", rec, lines, true)

	assert.Contains(t, short.String(), "Error log (10 of 12)")
	assert.Contains(t, short.String(), "--verbose")
	assert.Contains(t, long.String(), "Error log (12 of 12)")
	assert.NotContains(t, long.String(), "--verbose")
}

func batchWorkspace(t *testing.T) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, "proj", ".newton"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".newton", "plan"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".newton", "configs"), 0755))
	conf := "project_root = proj\ncoding_agent = claude\ncoding_model = opus\n"
	require.NoError(t, os.WriteFile(filepath.Join(ws, ".newton", "configs", "demo.conf"), []byte(conf), 0644))
	return ws
}

func TestBatch_OnceWithEmptyQueue(t *testing.T) {
	ws := batchWorkspace(t)

	code, _ := run(t, "batch", "demo", "--workspace", ws, "--once", "--sleep", "1")

	assert.Equal(t, exitcode.Success, code)
	assert.DirExists(t, filepath.Join(ws, ".newton", "plan", "demo", "todo"))
}

func TestBatch_MissingConfigs(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".newton"), 0755))

	code, _ := run(t, "batch", "demo", "--workspace", ws, "--once")

	assert.Equal(t, exitcode.WorkspaceInvalid, code)
}

func TestBatch_OnceFailedPlan(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	ws := batchWorkspace(t)
	// The default tool scripts do not exist, so no iteration can succeed.
	todo := filepath.Join(ws, ".newton", "plan", "demo", "todo")
	require.NoError(t, os.MkdirAll(todo, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(todo, "fix.md"), []byte("fix it"), 0644))

	code, _ := run(t, "batch", "demo", "--workspace", ws, "--once")

	assert.Equal(t, exitcode.Error, code)
	assert.FileExists(t, filepath.Join(ws, ".newton", "plan", "demo", "failed", "fix.md"))

	code, out := run(t, "history", "demo", "--workspace", ws)
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "fixmd")
	assert.Contains(t, out, "0 succeeded, 1 failed")
}

func TestWatchQueue_SetupFailureKeepsPolling(t *testing.T) {
	var buf bytes.Buffer
	logging.SetOutput(&buf, &buf)
	t.Cleanup(func() { logging.SetOutput(io.Discard, io.Discard) })

	// The todo directory was never created, so the watch cannot be added.
	w := queue.NewWatcher(queue.New(filepath.Join(t.TempDir(), "missing"), "demo"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, watchQueue(ctx, w, 2*time.Second))
	assert.Contains(t, buf.String(), "Queue watcher disabled")
	assert.Contains(t, buf.String(), "polling every 2s")
}

func TestWatchQueue_StopsWithContext(t *testing.T) {
	q := queue.New(t.TempDir(), "demo")
	require.NoError(t, q.Ensure())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- watchQueue(ctx, queue.NewWatcher(q), time.Second) }()
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestHistory(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(ws, ".newton"), 0755))

	code, out := run(t, "history", "demo", "--workspace", ws)
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "No runs recorded for project demo")

	l, err := ledger.New(ledger.Path(ws))
	require.NoError(t, err)
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	_, err = l.Record(ledger.Entry{
		ProjectID: "demo", TaskID: "add_cachemd", PlanFile: "add_cache.md", Branch: "feature/cache",
		Outcome: ledger.OutcomeSuccess, ExecutionStatus: "completed",
		StartedAt: start, FinishedAt: start.Add(90 * time.Second),
	})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	code, out = run(t, "history", "demo", "--workspace", ws)
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "add_cachemd")
	assert.Contains(t, out, "feature/cache")
	assert.Contains(t, out, "1 succeeded, 0 failed")

	code, out = run(t, "history", "other", "--workspace", ws)
	assert.Equal(t, exitcode.Success, code)
	assert.Contains(t, out, "No runs recorded for project other")
}
