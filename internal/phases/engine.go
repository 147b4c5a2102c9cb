// Package phases drives the evaluate, advise, execute cycle.
//
// IterationEngine runs one cycle: the three tools in order, each with its
// own environment contract, writing through the artifact store.
// Orchestrator repeats cycles until a limit is hit or the control file
// says the goal is reached.
package phases

import (
	"context"
	"fmt"
	"time"

	"github.com/gonewton/newton/internal/artifacts"
	"github.com/gonewton/newton/internal/contextfile"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/envctx"
	"github.com/gonewton/newton/internal/errclass"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/promise"
	"github.com/gonewton/newton/internal/prompt"
	"github.com/gonewton/newton/internal/tools"
)

// Commands holds the command line of each tool.
type Commands struct {
	Evaluator string
	Advisor   string
	Executor  string
}

// Timeouts holds the per-tool deadline. Zero means no deadline.
type Timeouts struct {
	Evaluator time.Duration
	Advisor   time.Duration
	Executor  time.Duration
}

// EngineConfig configures the IterationEngine.
type EngineConfig struct {
	Workspace            string
	Commands             Commands
	Timeouts             Timeouts
	Strict               bool
	GoalFile             string
	ControlFile          string
	BranchName           string
	BaseBranch           string
	ContextFile          string
	ClearContextAfterUse bool
	// StateDir overrides the store's state directory in the tool contract.
	// Batch runs point it at the task's own state directory.
	StateDir string
	// PromiseFile enables promise detection in executor output when set.
	PromiseFile    string
	ScoreThreshold float64
	// ExtraEnv is passed to every tool; contract variables win over it.
	ExtraEnv envctx.Env
}

// IterationEngine runs single iterations.
type IterationEngine struct {
	Config EngineConfig
	Runner tools.Runner
	Store  *artifacts.Store
	Now    func() time.Time
}

// NewIterationEngine creates an engine writing artifacts under cfg.Workspace.
func NewIterationEngine(cfg EngineConfig, runner tools.Runner) *IterationEngine {
	return &IterationEngine{
		Config: cfg,
		Runner: runner,
		Store:  artifacts.New(cfg.Workspace),
		Now:    time.Now,
	}
}

func (e *IterationEngine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// RunIteration executes iteration n of the given execution and returns its
// record. The returned iteration is always terminal: Failed only when
// strict mode aborted on the evaluator, the artifact directories could not
// be created, or ctx was cancelled. Tool failures otherwise become
// ErrorRecords on a Completed iteration.
func (e *IterationEngine) RunIteration(ctx context.Context, executionID string, n int) *domain.Iteration {
	it := domain.NewIteration(executionID, n, e.now())
	logging.Phase(fmt.Sprintf("Iteration %d", n))

	layout, err := e.Store.PrepareIteration(n)
	if err != nil {
		e.record(it, errclass.Classify(e.errCtx(it, "artifacts"), err))
		e.finish(it, domain.IterationFailed)
		return it
	}
	base := e.baseEnv(executionID, layout)

	// Evaluator
	res, ok := e.runPhase(ctx, it, artifacts.PhaseEvaluator, e.Config.Commands.Evaluator,
		e.Config.Timeouts.Evaluator, layout.EvaluatorDir, base)
	it.Evaluator = res
	e.readScore(it)
	if !ok && e.Config.Strict {
		logging.Error(fmt.Sprintf("Strict mode: evaluator failed, aborting iteration %d", n))
		e.finish(it, domain.IterationFailed)
		return it
	}
	if e.interrupted(ctx, it) {
		return it
	}

	// Advisor
	advisorEnv := base.With(envctx.EvaluatorStatusFile, layout.EvaluatorStatusFile())
	it.Advisor, _ = e.runPhase(ctx, it, artifacts.PhaseAdvisor, e.Config.Commands.Advisor,
		e.Config.Timeouts.Advisor, layout.AdvisorDir, advisorEnv)
	if e.interrupted(ctx, it) {
		return it
	}

	// Executor
	executorEnv := base.Merge(envctx.New(map[string]string{
		envctx.AdvisorRecommendationsFile: layout.AdvisorRecommendationsFile(),
		envctx.ExecutorPromptFile:         e.Store.ExecutorPromptFile(),
		envctx.ContextFile:                e.Config.ContextFile,
		envctx.ContextClearAfterUse:       envctx.FormatBool(e.Config.ClearContextAfterUse),
		envctx.PromiseFile:                e.Config.PromiseFile,
	}))
	if err := e.writeExecutorPrompt(layout); err != nil {
		e.record(it, errclass.Classify(e.errCtx(it, artifacts.PhaseExecutor), err))
	}
	it.Executor, ok = e.runPhase(ctx, it, artifacts.PhaseExecutor, e.Config.Commands.Executor,
		e.Config.Timeouts.Executor, layout.ExecutorDir, executorEnv)
	e.detectPromise(it)
	if ok && e.Config.ClearContextAfterUse && e.Config.ContextFile != "" {
		if err := contextfile.Clear(e.Config.ContextFile); err != nil {
			logging.Warn(fmt.Sprintf("Failed to clear context file: %v", err))
		}
	}
	if e.interrupted(ctx, it) {
		return it
	}

	e.finish(it, domain.IterationCompleted)
	return it
}

// runPhase executes one tool, persists its output and records any failure
// on it. The bool reports whether the tool exited 0.
func (e *IterationEngine) runPhase(ctx context.Context, it *domain.Iteration, phase, command string,
	timeout time.Duration, dir string, env envctx.Env) (*domain.ToolResult, bool) {

	logging.Info(fmt.Sprintf("Running %s: %s", phase, command))
	result, err := e.Runner.Execute(ctx, tools.Invocation{
		Tool:    phase,
		Command: command,
		Env:     env,
		WorkDir: e.Config.Workspace,
		Timeout: timeout,
	})

	if saveErr := e.Store.SaveToolOutput(dir, result); saveErr != nil {
		logging.Warn(fmt.Sprintf("Failed to save %s output: %v", phase, saveErr))
	}
	logging.ToolOutput(phase, result.Stdout, result.Stderr)

	switch {
	case err != nil:
		rec := errclass.Classify(e.errCtx(it, phase), err)
		e.record(it, rec)
		logging.Error(fmt.Sprintf("%s failed: %s", phase, rec.Message))
		return &result, false
	case !result.Success:
		rec := errclass.ClassifyResult(e.errCtx(it, phase), result)
		e.record(it, rec)
		logging.Warn(fmt.Sprintf("%s exited with code %d", phase, result.ExitCode))
		return &result, false
	}

	logging.Success(fmt.Sprintf("%s finished in %s", phase, logging.FormatDuration(result.ExecutionTime)))
	return &result, true
}

func (e *IterationEngine) baseEnv(executionID string, layout artifacts.IterationLayout) envctx.Env {
	cfg := e.Config
	tooling := envctx.New(map[string]string{
		envctx.EvaluatorCmd:       cfg.Commands.Evaluator,
		envctx.AdvisorCmd:         cfg.Commands.Advisor,
		envctx.ExecutorCmd:        cfg.Commands.Executor,
		envctx.EvaluatorTimeoutMs: envctx.Millis(cfg.Timeouts.Evaluator),
		envctx.AdvisorTimeoutMs:   envctx.Millis(cfg.Timeouts.Advisor),
		envctx.ExecutorTimeoutMs:  envctx.Millis(cfg.Timeouts.Executor),
	})

	c := envctx.Context{
		WorkspacePath: cfg.Workspace,
		ExecutionID:   executionID,
		Iteration:     layout.Number,
		IterationDir:  layout.Dir,
		EvaluatorDir:  layout.EvaluatorDir,
		AdvisorDir:    layout.AdvisorDir,
		ExecutorDir:   layout.ExecutorDir,
		ScoreFile:     e.Store.ScoreFile(),
		StateDir:      e.stateDir(),
		ArtifactsDir:  e.Store.ArtifactsDir(),
		GoalFile:      cfg.GoalFile,
		ControlFile:   cfg.ControlFile,
		BranchName:    cfg.BranchName,
		BaseBranch:    cfg.BaseBranch,
	}
	return c.Build(cfg.ExtraEnv.Merge(tooling))
}

func (e *IterationEngine) stateDir() string {
	if e.Config.StateDir != "" {
		return e.Config.StateDir
	}
	return e.Store.StateDir()
}

// detectPromise stores the first complete promise the executor printed.
func (e *IterationEngine) detectPromise(it *domain.Iteration) {
	if e.Config.PromiseFile == "" || it.Executor == nil {
		return
	}
	value, ok := promise.Detect(it.Executor.Stdout + it.Executor.Stderr)
	if !ok {
		return
	}
	it.Promise = value
	logging.Info(fmt.Sprintf("Executor promise: %s", value))
	if err := promise.Write(e.Config.PromiseFile, value); err != nil {
		logging.Warn(fmt.Sprintf("Failed to save promise: %v", err))
	}
}

// PromiseMet reports whether it carries a complete promise backed by an
// evaluator score at or above the threshold.
func (e *IterationEngine) PromiseMet(it *domain.Iteration) bool {
	if e.Config.PromiseFile == "" {
		return false
	}
	return promise.Met(it.Promise, it.Score, e.Config.ScoreThreshold)
}

func (e *IterationEngine) readScore(it *domain.Iteration) {
	score, err := e.Store.ReadScore()
	if err != nil {
		logging.Warn(fmt.Sprintf("Ignoring evaluator score: %v", err))
		return
	}
	if score != nil {
		it.Score = score
		logging.Info(fmt.Sprintf("Evaluator score: %g", *score))
	}
}

func (e *IterationEngine) writeExecutorPrompt(layout artifacts.IterationLayout) error {
	goal := artifacts.ReadOptional(e.Config.GoalFile)
	recommendations := artifacts.ReadOptional(layout.AdvisorRecommendationsFile())
	ctxText := ""
	if e.Config.ContextFile != "" {
		ctxText = contextfile.Body(e.Config.ContextFile)
	}
	text := prompt.BuildExecutorPrompt(goal, recommendations, ctxText)
	if err := artifacts.WriteFile(e.Store.ExecutorPromptFile(), []byte(text)); err != nil {
		return fmt.Errorf("write executor prompt: %w", err)
	}
	return nil
}

// interrupted fails it when ctx has been cancelled.
func (e *IterationEngine) interrupted(ctx context.Context, it *domain.Iteration) bool {
	if ctx.Err() == nil {
		return false
	}
	e.finish(it, domain.IterationFailed)
	return true
}

func (e *IterationEngine) errCtx(it *domain.Iteration, component string) errclass.Context {
	return errclass.Context{ExecutionID: it.ExecutionID, IterationNumber: it.Number, ComponentID: component}
}

func (e *IterationEngine) record(it *domain.Iteration, rec domain.ErrorRecord) {
	it.Errors = append(it.Errors, rec)
}

func (e *IterationEngine) finish(it *domain.Iteration, status domain.IterationStatus) {
	if err := it.Finish(status, e.now()); err != nil {
		logging.Debug(err.Error())
	}
}
