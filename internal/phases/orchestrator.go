package phases

import (
	"context"
	"fmt"
	"time"

	"github.com/gonewton/newton/internal/artifacts"
	"github.com/gonewton/newton/internal/control"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/errclass"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/tools"
	"github.com/gonewton/newton/internal/workspace"
)

// Limits bounds one execution.
type Limits struct {
	MaxIterations int
	MaxTime       time.Duration
}

// Recorder persists an execution snapshot. It is called after every
// iteration and once more when the execution ends.
type Recorder interface {
	Save(exec *domain.OptimizationExecution) error
}

// DoneFunc reports whether the goal has been reached.
type DoneFunc func() (bool, error)

// Orchestrator runs iterations until a limit is reached or the goal is met.
type Orchestrator struct {
	Engine   *IterationEngine
	Limits   Limits
	Recorder Recorder
	// Done defaults to reading the engine's control file.
	Done DoneFunc
	// OnStart is called once the execution is Running, before iteration 1.
	OnStart func(exec *domain.OptimizationExecution)

	workspace *domain.Workspace
}

// NewOrchestrator creates an orchestrator around engine.
func NewOrchestrator(engine *IterationEngine, limits Limits) *Orchestrator {
	return &Orchestrator{Engine: engine, Limits: limits}
}

// Workspace returns the workspace record of the last Run, or nil.
func (o *Orchestrator) Workspace() *domain.Workspace {
	return o.workspace
}

// Run executes the loop and returns the terminal execution record. The
// returned execution is always in a terminal status.
func (o *Orchestrator) Run(ctx context.Context) *domain.OptimizationExecution {
	cfg := &o.Engine.Config
	ws := domain.NewWorkspace(cfg.Workspace)
	o.workspace = ws

	exec := domain.NewExecution(ws, o.Limits.MaxIterations, o.Limits.MaxTime)
	exec.Strict = cfg.Strict
	exec.GoalFile = cfg.GoalFile

	if err := o.setup(exec); err != nil {
		rec := errclass.Classify(errclass.Context{ExecutionID: exec.ExecutionID, ComponentID: "orchestrator"}, err)
		logging.Error(fmt.Sprintf("Setup failed: %s", rec.Message))
		o.transitionWorkspace(domain.WorkspaceError)
		o.must(exec.Fail(o.Engine.now(), &rec))
		o.save(exec)
		return exec
	}

	o.transitionWorkspace(domain.WorkspaceReady)
	o.transitionWorkspace(domain.WorkspaceOptimizing)
	start := o.Engine.now()
	o.must(exec.Start(start))
	o.save(exec)
	if o.OnStart != nil {
		o.OnStart(exec)
	}

	for {
		if ctx.Err() != nil {
			rec := errclass.New(errclass.Context{ExecutionID: exec.ExecutionID, IterationNumber: exec.IterationCount(), ComponentID: "orchestrator"},
				domain.CategoryExecution, fmt.Sprintf("interrupted: %v", ctx.Err()))
			logging.Warn("Execution interrupted")
			o.transitionWorkspace(domain.WorkspaceError)
			o.must(exec.Fail(o.Engine.now(), &rec))
			break
		}

		if reason, stop := o.limitReached(exec, start); stop {
			logging.Warn(fmt.Sprintf("Stopping: %s reached after %d iteration(s)", reason, exec.IterationCount()))
			o.transitionWorkspace(domain.WorkspaceCompleted)
			o.must(exec.Terminate(o.Engine.now(), reason))
			break
		}

		it := o.Engine.RunIteration(ctx, exec.ExecutionID, exec.IterationCount()+1)
		o.must(exec.AddIteration(it))
		o.save(exec)

		done := o.Engine.PromiseMet(it)
		if done {
			logging.Success("Promise signaled completion")
		} else {
			var err error
			if done, err = o.done(); err != nil {
				rec := errclass.Classify(errclass.Context{ExecutionID: exec.ExecutionID, IterationNumber: it.Number, ComponentID: "control"}, err)
				it.Errors = append(it.Errors, rec)
				logging.Warn(fmt.Sprintf("Control file: %s", rec.Message))
			}
		}
		if done {
			logging.Success(fmt.Sprintf("Goal reached after %d iteration(s)", it.Number))
			o.transitionWorkspace(domain.WorkspaceCompleted)
			o.must(exec.Complete(o.Engine.now(), it.ID))
			break
		}
	}

	o.save(exec)
	return exec
}

// setup validates everything that must hold before the first tool runs.
func (o *Orchestrator) setup(exec *domain.OptimizationExecution) error {
	cfg := &o.Engine.Config

	abs, err := workspace.Validate(cfg.Workspace)
	if err != nil {
		return err
	}
	cfg.Workspace = abs
	exec.WorkspacePath = abs
	o.workspace.Path = abs
	o.Engine.Store = artifacts.New(abs)

	for _, c := range []struct{ tool, command string }{
		{artifacts.PhaseEvaluator, cfg.Commands.Evaluator},
		{artifacts.PhaseAdvisor, cfg.Commands.Advisor},
		{artifacts.PhaseExecutor, cfg.Commands.Executor},
	} {
		if len(tools.ParseCommand(c.command)) == 0 {
			return &tools.ExecError{Category: domain.CategoryConfiguration, Tool: c.tool, Command: c.command, Err: tools.ErrEmptyCommand}
		}
		if !tools.Resolvable(c.command, abs) {
			logging.Warn(fmt.Sprintf("%s command %q not found; its phase will fail", c.tool, c.command))
		}
	}

	if cfg.GoalFile != "" {
		goal, err := workspace.LoadGoal(cfg.GoalFile)
		if err != nil {
			return err
		}
		exec.GoalHash = goal.Hash
	}

	cfg.ControlFile = control.Resolve(abs, cfg.ControlFile)
	return nil
}

func (o *Orchestrator) limitReached(exec *domain.OptimizationExecution, start time.Time) (domain.TerminationReason, bool) {
	if o.Limits.MaxTime > 0 && o.Engine.now().Sub(start) >= o.Limits.MaxTime {
		return domain.ReasonTimeLimit, true
	}
	if exec.IterationCount() >= o.Limits.MaxIterations {
		return domain.ReasonIterationLimit, true
	}
	return "", false
}

func (o *Orchestrator) done() (bool, error) {
	if o.Done != nil {
		return o.Done()
	}
	return control.Done(o.Engine.Config.ControlFile)
}

func (o *Orchestrator) save(exec *domain.OptimizationExecution) {
	if o.Recorder == nil {
		return
	}
	if err := o.Recorder.Save(exec); err != nil {
		logging.Warn(fmt.Sprintf("Failed to persist execution %s: %v", exec.ExecutionID, err))
	}
}

func (o *Orchestrator) transitionWorkspace(target domain.WorkspaceStatus) {
	if o.workspace.Status == target {
		return
	}
	if err := o.workspace.Transition(target); err != nil {
		logging.Debug(err.Error())
	}
}

// must logs transition errors; the loop only requests legal transitions.
func (o *Orchestrator) must(err error) {
	if err != nil {
		logging.Error(err.Error())
	}
}
