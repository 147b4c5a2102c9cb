package phases

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewton/newton/internal/control"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/envctx"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/tools"
)

func init() {
	color.NoColor = true
	logging.SetOutput(discard{}, discard{})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// MockToolRunner records every invocation and delegates to RunFunc.
type MockToolRunner struct {
	mu          sync.Mutex
	CallCount   int
	Invocations []tools.Invocation
	RunFunc     func(ctx context.Context, inv tools.Invocation) (domain.ToolResult, error)
}

func (m *MockToolRunner) Execute(ctx context.Context, inv tools.Invocation) (domain.ToolResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.Invocations = append(m.Invocations, inv)
	m.mu.Unlock()

	if m.RunFunc != nil {
		return m.RunFunc(ctx, inv)
	}
	return ok(inv), nil
}

func (m *MockToolRunner) toolOrder() []string {
	var out []string
	for _, inv := range m.Invocations {
		out = append(out, inv.Tool)
	}
	return out
}

func ok(inv tools.Invocation) domain.ToolResult {
	return domain.ToolResult{Tool: inv.Tool, Command: inv.Command, Success: true, ExitCode: 0}
}

func failed(inv tools.Invocation, code int) domain.ToolResult {
	return domain.ToolResult{Tool: inv.Tool, Command: inv.Command, ExitCode: code}
}

type memRecorder struct {
	saves  int
	last   domain.ExecutionStatus
	failOn bool
}

func (r *memRecorder) Save(exec *domain.OptimizationExecution) error {
	r.saves++
	r.last = exec.Status
	if r.failOn {
		return errors.New("disk full")
	}
	return nil
}

func newTestOrchestrator(t *testing.T, runner tools.Runner, maxIter int) (*Orchestrator, string) {
	t.Helper()
	ws := t.TempDir()
	engine := NewIterationEngine(EngineConfig{
		Workspace: ws,
		Commands:  Commands{Evaluator: "./eval.sh", Advisor: "./advise.sh", Executor: "./exec.sh"},
		Timeouts:  Timeouts{Evaluator: time.Second, Advisor: time.Second, Executor: time.Second},
	}, runner)
	return NewOrchestrator(engine, Limits{MaxIterations: maxIter, MaxTime: time.Hour}), ws
}

func TestRun_IterationLimit(t *testing.T) {
	runner := &MockToolRunner{}
	o, _ := newTestOrchestrator(t, runner, 3)
	rec := &memRecorder{}
	o.Recorder = rec

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionTerminated, exec.Status)
	assert.Equal(t, domain.ReasonIterationLimit, exec.TerminationReason)
	assert.Empty(t, exec.FinalSolutionID)
	require.Len(t, exec.Iterations, 3)
	for i, it := range exec.Iterations {
		assert.Equal(t, i+1, it.Number)
		assert.Equal(t, domain.IterationCompleted, it.Status)
		assert.Equal(t, exec.ExecutionID, it.ExecutionID)
		require.NotNil(t, it.Evaluator)
		require.NotNil(t, it.Advisor)
		require.NotNil(t, it.Executor)
	}
	assert.Equal(t, 9, runner.CallCount)
	assert.Equal(t, []string{
		"evaluator", "advisor", "executor",
		"evaluator", "advisor", "executor",
		"evaluator", "advisor", "executor",
	}, runner.toolOrder())

	require.NotNil(t, exec.StartedAt)
	require.NotNil(t, exec.CompletedAt)
	assert.False(t, exec.CompletedAt.Before(*exec.StartedAt))
	assert.Equal(t, domain.ExecutionTerminated, rec.last)
	assert.GreaterOrEqual(t, rec.saves, 5)
	assert.Equal(t, domain.WorkspaceCompleted, o.Workspace().Status)
}

func TestRun_TimeLimit(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	runner := &MockToolRunner{RunFunc: func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "executor" {
			clock = clock.Add(time.Minute)
		}
		return ok(inv), nil
	}}
	o, _ := newTestOrchestrator(t, runner, 100)
	o.Limits.MaxTime = 150 * time.Second
	o.Engine.Now = func() time.Time { return clock }

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionTerminated, exec.Status)
	assert.Equal(t, domain.ReasonTimeLimit, exec.TerminationReason)
	assert.Len(t, exec.Iterations, 3)
	assert.Equal(t, 3*time.Minute, exec.Duration())
}

func TestRun_CompletesWhenControlFileDone(t *testing.T) {
	runner := &MockToolRunner{}
	runner.RunFunc = func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "evaluator" && inv.Env.Value(envctx.IterationNumber) == "2" {
			require.NoError(t, control.Write(inv.Env.Value(envctx.ControlFile), control.Signal{Done: true}))
		}
		return ok(inv), nil
	}
	o, ws := newTestOrchestrator(t, runner, 10)

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionCompleted, exec.Status)
	require.Len(t, exec.Iterations, 2)
	assert.Equal(t, exec.Iterations[1].ID, exec.FinalSolutionID)
	assert.Empty(t, exec.TerminationReason)
	// All three phases still run in the iteration that signalled done.
	assert.Equal(t, 6, runner.CallCount)
	assert.FileExists(t, filepath.Join(ws, control.DefaultFileName))
}

func TestRun_CompletesOnPromiseWithScore(t *testing.T) {
	runner := &MockToolRunner{}
	runner.RunFunc = func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		r := ok(inv)
		n := inv.Env.Value(envctx.IterationNumber)
		switch {
		case inv.Tool == "evaluator" && n == "3":
			require.NoError(t, os.WriteFile(inv.Env.Value(envctx.ScoreFile), []byte("97"), 0o644))
		case inv.Tool == "evaluator":
			require.NoError(t, os.WriteFile(inv.Env.Value(envctx.ScoreFile), []byte("60"), 0o644))
		case inv.Tool == "executor" && n != "1":
			r.Stdout = "all done <promise>COMPLETE</promise>"
		}
		return r, nil
	}
	o, ws := newTestOrchestrator(t, runner, 10)
	o.Engine.Config.PromiseFile = filepath.Join(ws, ".newton", "state", "promise.txt")
	o.Engine.Config.ScoreThreshold = 95

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionCompleted, exec.Status)
	require.Len(t, exec.Iterations, 3)
	assert.Equal(t, exec.Iterations[2].ID, exec.FinalSolutionID)
	assert.Equal(t, "COMPLETE", exec.Iterations[1].Promise)
	assert.NoFileExists(t, filepath.Join(ws, control.DefaultFileName))
}

func TestRun_InvalidControlFileIsRecordedAndLoopContinues(t *testing.T) {
	calls := 0
	runner := &MockToolRunner{}
	o, _ := newTestOrchestrator(t, runner, 2)
	o.Done = func() (bool, error) {
		calls++
		return false, &control.ParseError{Path: "ctl.json", Err: errors.New("bad json")}
	}

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionTerminated, exec.Status)
	assert.Equal(t, 2, calls)
	require.Len(t, exec.Iterations, 2)
	require.Len(t, exec.Iterations[0].Errors, 1)
	assert.Equal(t, domain.CategoryValidation, exec.Iterations[0].Errors[0].Category)
	assert.Equal(t, "control", exec.Iterations[0].Errors[0].Context.ComponentID)
}

func TestRun_SetupFailures(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(t *testing.T, cfg *EngineConfig)
		category domain.ErrorCategory
	}{
		{
			name: "missing workspace",
			mutate: func(t *testing.T, cfg *EngineConfig) {
				cfg.Workspace = filepath.Join(t.TempDir(), "missing")
			},
			category: domain.CategoryValidation,
		},
		{
			name:     "empty evaluator command",
			mutate:   func(_ *testing.T, cfg *EngineConfig) { cfg.Commands.Evaluator = "   " },
			category: domain.CategoryConfiguration,
		},
		{
			name:     "empty executor command",
			mutate:   func(_ *testing.T, cfg *EngineConfig) { cfg.Commands.Executor = "" },
			category: domain.CategoryConfiguration,
		},
		{
			name: "unreadable goal file",
			mutate: func(t *testing.T, cfg *EngineConfig) {
				cfg.GoalFile = filepath.Join(t.TempDir(), "GOAL.md")
			},
			category: domain.CategoryValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockToolRunner{}
			o, _ := newTestOrchestrator(t, runner, 3)
			tt.mutate(t, &o.Engine.Config)

			exec := o.Run(context.Background())

			assert.Equal(t, domain.ExecutionFailed, exec.Status)
			assert.Empty(t, exec.Iterations)
			assert.Zero(t, runner.CallCount, "no tool may be spawned")
			latest := exec.LatestError()
			require.NotNil(t, latest)
			assert.Equal(t, tt.category, latest.Category)
			assert.Equal(t, "orchestrator", latest.Context.ComponentID)
			require.NotNil(t, exec.StartedAt)
			require.NotNil(t, exec.CompletedAt)
			assert.Equal(t, domain.WorkspaceError, o.Workspace().Status)
		})
	}
}

func TestRun_GoalHashRecorded(t *testing.T) {
	o, ws := newTestOrchestrator(t, &MockToolRunner{}, 1)
	goal := filepath.Join(ws, "GOAL.md")
	require.NoError(t, os.WriteFile(goal, []byte("hello\n"), 0o644))
	o.Engine.Config.GoalFile = goal

	exec := o.Run(context.Background())

	assert.Equal(t, "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03", exec.GoalHash)
	assert.Equal(t, goal, exec.GoalFile)
}

func TestRun_StrictModeAbortsIteration(t *testing.T) {
	runner := &MockToolRunner{RunFunc: func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "evaluator" {
			return failed(inv, 1), nil
		}
		return ok(inv), nil
	}}
	o, _ := newTestOrchestrator(t, runner, 2)
	o.Engine.Config.Strict = true

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionTerminated, exec.Status)
	assert.Equal(t, []string{"evaluator", "evaluator"}, runner.toolOrder())
	require.Len(t, exec.Iterations, 2)
	for _, it := range exec.Iterations {
		assert.Equal(t, domain.IterationFailed, it.Status)
		assert.Nil(t, it.Advisor)
		assert.Nil(t, it.Executor)
		require.Len(t, it.Errors, 1)
		assert.Equal(t, domain.CategoryToolFailure, it.Errors[0].Category)
	}
	assert.Zero(t, exec.CompletedIterations())
	assert.True(t, exec.Strict)
}

func TestRun_NonStrictContinuesAfterEvaluatorFailure(t *testing.T) {
	runner := &MockToolRunner{RunFunc: func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "evaluator" {
			return failed(inv, 3), nil
		}
		return ok(inv), nil
	}}
	o, _ := newTestOrchestrator(t, runner, 1)

	exec := o.Run(context.Background())

	require.Len(t, exec.Iterations, 1)
	it := exec.Iterations[0]
	assert.Equal(t, domain.IterationCompleted, it.Status)
	assert.Equal(t, []string{"evaluator", "advisor", "executor"}, runner.toolOrder())
	require.Len(t, it.Errors, 1)
	assert.Equal(t, "evaluator exited with code 3", it.Errors[0].Message)
	assert.Equal(t, 1, it.Errors[0].Context.IterationNumber)
}

func TestRun_TimeoutRecorded(t *testing.T) {
	runner := &MockToolRunner{RunFunc: func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "advisor" {
			r := failed(inv, -1)
			r.TimedOut = true
			return r, &tools.ExecError{Category: domain.CategoryTimeout, Tool: inv.Tool, Command: inv.Command, Err: errors.New("timed out after 1s")}
		}
		return ok(inv), nil
	}}
	o, _ := newTestOrchestrator(t, runner, 1)

	exec := o.Run(context.Background())

	latest := exec.LatestError()
	require.NotNil(t, latest)
	assert.Equal(t, domain.CategoryTimeout, latest.Category)
	assert.Equal(t, domain.SeverityMedium, latest.Severity)
	assert.Equal(t, "advisor", latest.Context.ComponentID)
	assert.True(t, exec.Iterations[0].Advisor.TimedOut)
	assert.NotNil(t, exec.Iterations[0].Executor, "executor still runs after an advisor timeout")
}

func TestRun_CancelledContextFailsExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &MockToolRunner{RunFunc: func(_ context.Context, inv tools.Invocation) (domain.ToolResult, error) {
		if inv.Tool == "advisor" {
			cancel()
		}
		return ok(inv), nil
	}}
	o, _ := newTestOrchestrator(t, runner, 5)

	exec := o.Run(ctx)

	assert.Equal(t, domain.ExecutionFailed, exec.Status)
	require.Len(t, exec.Iterations, 1)
	assert.Equal(t, domain.IterationFailed, exec.Iterations[0].Status)
	assert.Equal(t, []string{"evaluator", "advisor"}, runner.toolOrder())
	assert.Contains(t, exec.LatestError().Message, "interrupted")
}

func TestRun_RecorderErrorsDoNotStopLoop(t *testing.T) {
	o, _ := newTestOrchestrator(t, &MockToolRunner{}, 2)
	o.Recorder = &memRecorder{failOn: true}

	exec := o.Run(context.Background())

	assert.Equal(t, domain.ExecutionTerminated, exec.Status)
	assert.Len(t, exec.Iterations, 2)
}

func TestRun_OnStartCalledOnceBeforeFirstIteration(t *testing.T) {
	runner := &MockToolRunner{}
	o, _ := newTestOrchestrator(t, runner, 2)
	started := 0
	o.OnStart = func(exec *domain.OptimizationExecution) {
		started++
		assert.Equal(t, domain.ExecutionRunning, exec.Status)
		assert.Zero(t, runner.CallCount)
	}

	o.Run(context.Background())

	assert.Equal(t, 1, started)
}
