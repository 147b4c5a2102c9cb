package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/errclass"
	"github.com/gonewton/newton/internal/workspace"
)

func newExecution(t *testing.T, wsPath string) *domain.OptimizationExecution {
	t.Helper()
	exec := domain.NewExecution(domain.NewWorkspace(wsPath), 3, 5*time.Minute)
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, exec.Start(start))

	it := domain.NewIteration(exec.ExecutionID, 1, start)
	it.Evaluator = &domain.ToolResult{Tool: "evaluator", Success: false, ExitCode: 2, ExecutionTime: 1500 * time.Millisecond}
	rec := errclass.ClassifyResult(errclass.Context{ExecutionID: exec.ExecutionID, IterationNumber: 1, ComponentID: "evaluator"}, *it.Evaluator)
	it.Errors = append(it.Errors, rec)
	require.NoError(t, it.Finish(domain.IterationCompleted, start.Add(time.Minute)))
	require.NoError(t, exec.AddIteration(it))
	return exec
}

func TestSaveAndLoad(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws)
	exec := newExecution(t, ws)
	require.NoError(t, exec.Terminate(exec.StartedAt.Add(2*time.Minute), domain.ReasonIterationLimit))

	require.NoError(t, m.Save(exec))

	path := filepath.Join(ws, ".newton", "executions", exec.ExecutionID, "execution.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"execution_id\"", "4-space indent")
	assert.NoFileExists(t, path+".tmp")

	loaded, err := m.Load(exec.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, exec.ExecutionID, loaded.ExecutionID)
	assert.Equal(t, domain.ExecutionTerminated, loaded.Status)
	assert.Equal(t, domain.ReasonIterationLimit, loaded.TerminationReason)
	assert.Equal(t, 5*time.Minute, loaded.MaxTime)
	require.Len(t, loaded.Iterations, 1)
	assert.Equal(t, 2, loaded.Iterations[0].Evaluator.ExitCode)
	assert.Equal(t, exec.Duration(), loaded.Duration())

	latest := loaded.LatestError()
	require.NotNil(t, latest)
	assert.Equal(t, domain.CategoryToolFailure, latest.Category)
}

func TestSave_ErrorLogOneLinePerRecord(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws)
	exec := newExecution(t, ws)
	setup := errclass.New(errclass.Context{ExecutionID: exec.ExecutionID}, domain.CategorySystem, "disk gone")
	require.NoError(t, exec.Fail(time.Now(), &setup))

	// Saving twice must not duplicate lines.
	require.NoError(t, m.Save(exec))
	require.NoError(t, m.Save(exec))

	lines, err := m.ReadErrorLog(exec.ExecutionID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var last domain.ErrorRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &last))
	assert.Equal(t, "disk gone", last.Message)
	assert.Equal(t, domain.SeverityCritical, last.Severity)
	assert.True(t, strings.HasPrefix(lines[0], `{"error_id":`))
}

func TestLoad_NotFound(t *testing.T) {
	_, err := NewManager(t.TempDir()).Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws)
	require.NoError(t, os.MkdirAll(m.Dir("bad"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(m.Dir("bad"), "execution.json"), []byte("{"), 0o644))

	_, err := m.Load("bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestReadErrorLog_Missing(t *testing.T) {
	lines, err := NewManager(t.TempDir()).ReadErrorLog("nope")
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestList(t *testing.T) {
	ws := t.TempDir()
	m := NewManager(ws)

	ids, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	first := newExecution(t, ws)
	second := newExecution(t, ws)
	require.NoError(t, m.Save(first))
	require.NoError(t, m.Save(second))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(m.Dir(first.ExecutionID), "execution.json"), old, old))

	ids, err = m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{second.ExecutionID, first.ExecutionID}, ids)
}

func TestValidateGoal(t *testing.T) {
	dir := t.TempDir()
	goal := filepath.Join(dir, "GOAL.md")
	require.NoError(t, os.WriteFile(goal, []byte("v1"), 0o644))
	loaded, err := workspace.LoadGoal(goal)
	require.NoError(t, err)
	hash := loaded.Hash

	tests := []struct {
		name    string
		exec    *domain.OptimizationExecution
		mutate  func()
		wantErr string
	}{
		{"no goal recorded", &domain.OptimizationExecution{}, nil, ""},
		{"unchanged", &domain.OptimizationExecution{GoalFile: goal, GoalHash: hash}, nil, ""},
		{
			"changed",
			&domain.OptimizationExecution{GoalFile: goal, GoalHash: hash},
			func() { require.NoError(t, os.WriteFile(goal, []byte("v2"), 0o644)) },
			"goal file changed",
		},
		{"missing", &domain.OptimizationExecution{GoalFile: filepath.Join(dir, "nope.md")}, nil, "goal file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.mutate != nil {
				tt.mutate()
			}
			err := ValidateGoal(tt.exec)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
