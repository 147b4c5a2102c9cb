// Package batch drains a project's plan queue one plan at a time.
//
// For every plan in todo/ the Controller materializes a task workspace in
// the project checkout, runs the pre-run hook, runs the optimization loop
// against the project root, decides the outcome from the task's control
// file, runs the matching post hook and moves the plan to completed/ or
// failed/.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gonewton/newton/internal/agent"
	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/control"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/envctx"
	"github.com/gonewton/newton/internal/gitops"
	"github.com/gonewton/newton/internal/hooks"
	"github.com/gonewton/newton/internal/ledger"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/phases"
	"github.com/gonewton/newton/internal/plan"
	"github.com/gonewton/newton/internal/queue"
	"github.com/gonewton/newton/internal/schedule"
	"github.com/gonewton/newton/internal/state"
	"github.com/gonewton/newton/internal/tools"
	"github.com/gonewton/newton/internal/workspace"
)

// ErrPlanFailed is returned by Start in once mode when the plan failed.
var ErrPlanFailed = errors.New("plan failed")

// Options controls one batch invocation.
type Options struct {
	WorkspaceRoot string
	ProjectID     string
	// Once processes a single plan (or none) and returns.
	Once bool
	// Sleep is the poll interval when the queue is empty and the pause
	// after a failed plan.
	Sleep time.Duration
}

// RunFunc runs the optimization loop for a prepared task. The returned
// execution may be nil only when err is non-nil.
type RunFunc func(ctx context.Context, t *Task, env envctx.Env) (*domain.OptimizationExecution, error)

// Recorder stores one ledger row per processed plan.
type Recorder interface {
	Record(e ledger.Entry) (int64, error)
}

// Outcome describes what happened to one plan.
type Outcome struct {
	PlanFile  string
	Dest      string
	TaskID    string
	Branch    string
	Success   bool
	Execution *domain.OptimizationExecution
	PreRun    hooks.Result
	Post      hooks.Result
	// Err explains a failure; nil on success.
	Err error
}

// Controller processes the plan queue of one project.
type Controller struct {
	Options Options
	Config  *config.BatchConfig
	Queue   *queue.Queue
	Hooks   *hooks.Runner
	// Ledger is optional.
	Ledger Recorder
	// Wake, when set, cuts a poll sleep short.
	Wake <-chan struct{}
	// Run defaults to the subprocess-backed optimization loop.
	Run     RunFunc
	Environ func() []string
	Now     func() time.Time

	workspaceRoot string
}

// New resolves the workspace, loads the project's batch config and makes
// sure the queue directories exist.
func New(opts Options) (*Controller, error) {
	root, err := workspace.FindRoot(opts.WorkspaceRoot)
	if err != nil {
		return nil, err
	}
	if err := workspace.RequireDirs(root, filepath.Join(workspace.MarkerDir, "configs")); err != nil {
		return nil, err
	}

	bc, err := config.LoadBatchConfig(root, opts.ProjectID)
	if err != nil {
		return nil, err
	}
	for _, w := range agent.Warnings(bc.CodingAgent, bc.CodingModel) {
		logging.Warn(w)
	}
	if bc.Verbose {
		logging.SetVerbose(true)
	}

	q := queue.New(root, opts.ProjectID)
	if err := q.Ensure(); err != nil {
		return nil, err
	}
	if opts.Sleep <= 0 {
		opts.Sleep = schedule.DefaultInterval
	}

	c := &Controller{
		Options:       opts,
		Config:        bc,
		Queue:         q,
		Hooks:         hooks.NewRunner(bc.ProjectRoot),
		Environ:       os.Environ,
		Now:           time.Now,
		workspaceRoot: root,
	}
	c.Run = c.runOptimization
	return c, nil
}

// WorkspaceRoot returns the resolved workspace root.
func (c *Controller) WorkspaceRoot() string {
	return c.workspaceRoot
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Start loops over the queue until ctx is cancelled. In once mode it
// returns after the first plan, or immediately when todo/ is empty.
func (c *Controller) Start(ctx context.Context) error {
	logging.Info(fmt.Sprintf("Starting batch runner for project %s", c.Options.ProjectID))

	for {
		path, err := c.Queue.Next()
		if err != nil {
			return err
		}
		if path == "" {
			if c.Options.Once {
				logging.Info("Queue empty; exiting after --once")
				return nil
			}
			if err := c.sleep(ctx); err != nil {
				return err
			}
			continue
		}

		out, err := c.Process(ctx, path)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if c.Options.Once {
				return err
			}
			logging.Error(fmt.Sprintf("%v; continuing with the next plan", err))
		}
		if c.Options.Once {
			if out.Success {
				return nil
			}
			return fmt.Errorf("batch run failed for %s: %w", filepath.Base(path), ErrPlanFailed)
		}
		if !out.Success {
			if err := c.sleep(ctx); err != nil {
				return err
			}
		}
	}
}

func (c *Controller) sleep(ctx context.Context) error {
	wake, err := schedule.Sleep(ctx, c.Options.Sleep, c.Wake)
	if err != nil {
		return err
	}
	logging.Debug(fmt.Sprintf("Poll sleep ended: %s", wake))
	return nil
}

// Process runs the plan at path and moves it out of todo/. The returned
// error is reserved for a plan that could not be moved; a failed plan is
// reported through the Outcome. Post hooks run even when ctx has been
// cancelled so that the outcome of an interrupted plan is still reported.
func (c *Controller) Process(ctx context.Context, path string) (Outcome, error) {
	started := c.now()
	out := Outcome{PlanFile: path}
	logging.Phase(fmt.Sprintf("Plan %s", filepath.Base(path)))

	var vars hooks.TaskVars
	task, err := c.prepare(ctx, path, &out, &vars)
	if err == nil {
		err = c.execute(ctx, task, vars, &out)
	}
	out.Success = err == nil
	out.Err = err

	hookCtx := context.WithoutCancel(ctx)
	dest := queue.StateCompleted
	if out.Success {
		post, hookErr := c.Hooks.Run(hookCtx, hooks.PostSuccess, c.Config.PostSuccessScript, vars.PostEnv(hooks.OutcomeSuccess))
		out.Post = post
		switch {
		case hookErr != nil:
			logging.Error(fmt.Sprintf("post_success_script for %s: %v", filepath.Base(path), hookErr))
			out.Success, out.Err = false, hookErr
		case !post.Succeeded():
			logging.Warn(fmt.Sprintf("post_success_script exited %d for %s; moving plan to failed", post.ExitCode, filepath.Base(path)))
			out.Success, out.Err = false, fmt.Errorf("post_success_script exited with code %d", post.ExitCode)
		}
	} else {
		logging.Error(fmt.Sprintf("Batch processing failed for %s: %v", filepath.Base(path), err))
		post, hookErr := c.Hooks.Run(hookCtx, hooks.PostFail, c.Config.PostFailScript, vars.PostEnv(hooks.OutcomeFailure))
		out.Post = post
		if hookErr != nil {
			logging.Error(fmt.Sprintf("Failed to run post_fail_script for %s: %v", filepath.Base(path), hookErr))
		} else if !post.Succeeded() {
			logging.Warn(fmt.Sprintf("post_fail_script exited %d for %s", post.ExitCode, filepath.Base(path)))
		}
	}
	if !out.Success {
		dest = queue.StateFailed
	}

	moved, err := c.Queue.Move(path, queue.StateTodo, dest)
	if err != nil {
		err = fmt.Errorf("move plan %s: %w", filepath.Base(path), err)
		out.Success = false
		out.Err = err
		c.record(out, started)
		return out, err
	}
	out.Dest = moved
	if out.Success {
		logging.Success(fmt.Sprintf("Plan %s completed", filepath.Base(path)))
	}

	c.record(out, started)
	return out, nil
}

// prepare loads the plan and lays out its task directories. vars is
// filled as far as the plan could be resolved so post hooks still see
// whatever is known.
func (c *Controller) prepare(ctx context.Context, path string, out *Outcome, vars *hooks.TaskVars) (*Task, error) {
	*vars = hooks.TaskVars{
		ProjectID:     c.Options.ProjectID,
		ProjectRoot:   c.Config.ProjectRoot,
		WorkspaceRoot: c.workspaceRoot,
		CodingAgent:   c.Config.CodingAgent,
		CodingModel:   c.Config.CodingModel,
		Resume:        c.Config.Resume,
	}

	p, err := plan.Load(path)
	if err != nil {
		return nil, err
	}
	if p.FrontmatterErr != nil {
		logging.Warn(fmt.Sprintf("%v; using default branch", p.FrontmatterErr))
	}
	out.TaskID = p.TaskID
	out.Branch = p.Branch()
	vars.TaskID = p.TaskID
	vars.BranchName = out.Branch

	task := NewTask(c.Config.ProjectRoot, p.TaskID, c.Config.ControlFile)
	task.Branch = out.Branch
	task.BaseBranch = gitops.NewRepo(c.Config.ProjectRoot).DetectBaseBranch(ctx)
	vars.BaseBranch = task.BaseBranch
	vars.StateDir = task.StateDir
	vars.ControlFile = task.ControlFile
	vars.GoalFile = task.GoalFile

	if err := task.Prepare(p.Body, c.Config.Resume); err != nil {
		return nil, err
	}
	return task, nil
}

// execute runs the pre-run hook and the optimization loop. A nil error
// means the task succeeded.
func (c *Controller) execute(ctx context.Context, task *Task, vars hooks.TaskVars, out *Outcome) error {
	pre, err := c.Hooks.Run(ctx, hooks.PreRun, c.Config.PreRunScript, vars.PreRunEnv())
	out.PreRun = pre
	if err != nil {
		return err
	}
	if !pre.Succeeded() {
		msg := fmt.Sprintf("pre-run script failed with exit code %d", pre.ExitCode)
		c.runLog(task, msg)
		return errors.New(msg)
	}

	c.runLog(task, "Starting Newton run")
	exec, err := c.Run(ctx, task, c.runEnv(task, vars))
	out.Execution = exec
	if err == nil {
		err = judge(exec, task.ControlFile)
	}
	result := hooks.OutcomeSuccess
	if err != nil {
		result = hooks.OutcomeFailure
	}
	c.runLog(task, "Newton run finished: "+result)
	return err
}

// judge decides a task's outcome. Only an execution that neither failed nor
// hit a limit, and whose control file says done, succeeds.
func judge(exec *domain.OptimizationExecution, controlFile string) error {
	switch exec.Status {
	case domain.ExecutionFailed:
		return fmt.Errorf("execution %s failed", exec.ExecutionID)
	case domain.ExecutionTerminated:
		return fmt.Errorf("execution %s stopped: %s", exec.ExecutionID, exec.TerminationReason)
	}
	if !control.Succeeded(controlFile) {
		return fmt.Errorf("control file %s does not report done", controlFile)
	}
	return nil
}

// runEnv is the extra environment every tool of the task sees.
func (c *Controller) runEnv(task *Task, vars hooks.TaskVars) envctx.Env {
	return envctx.New(map[string]string{
		envctx.CodingAgent:        vars.CodingAgent,
		envctx.CodingAgentModel:   vars.CodingModel,
		envctx.ExecCodingAgent:    vars.CodingAgent,
		envctx.ExecCodingAgentMdl: vars.CodingModel,
		envctx.ProjectRoot:        vars.ProjectRoot,
		envctx.ProjectID:          vars.ProjectID,
		envctx.TaskID:             task.ID,
		envctx.WorkspaceRoot:      vars.WorkspaceRoot,
		envctx.CoderCmd:           c.Config.CoderCmd,
		envctx.BranchName:         task.Branch,
		envctx.ControlFile:        task.ControlFile,
	})
}

// runOptimization is the default RunFunc: it loads the project's run
// configuration with the batch settings on top and runs the loop against
// the project root.
func (c *Controller) runOptimization(ctx context.Context, task *Task, env envctx.Env) (*domain.OptimizationExecution, error) {
	root := c.Config.ProjectRoot
	environ := os.Environ
	if c.Environ != nil {
		environ = c.Environ
	}
	cfg, err := config.LoadWithPrecedence(config.TomlPath(root), "", environ(), c.Config.RunOverrides())
	if err != nil {
		return nil, err
	}

	ec := phases.NewEngineConfig(root, cfg)
	ec.GoalFile = task.GoalFile
	ec.ControlFile = task.ControlFile
	ec.BranchName = task.Branch
	ec.BaseBranch = task.BaseBranch
	ec.StateDir = task.StateDir
	ec.ExtraEnv = ec.ExtraEnv.Merge(env)

	orch := phases.NewOrchestrator(phases.NewIterationEngine(ec, tools.NewExecutor()), phases.NewLimits(cfg))
	orch.Recorder = state.NewManager(root)
	return orch.Run(ctx), nil
}

func (c *Controller) runLog(task *Task, message string) {
	if err := task.AppendRunLog(c.now(), message); err != nil {
		logging.Warn(fmt.Sprintf("Failed to write run log: %v", err))
	}
}

func (c *Controller) record(out Outcome, started time.Time) {
	if c.Ledger == nil {
		return
	}
	e := ledger.Entry{
		ProjectID:  c.Options.ProjectID,
		TaskID:     out.TaskID,
		PlanFile:   filepath.Base(out.PlanFile),
		Branch:     out.Branch,
		Outcome:    ledger.OutcomeFailure,
		StartedAt:  started,
		FinishedAt: c.now(),
	}
	if out.Success {
		e.Outcome = ledger.OutcomeSuccess
	}
	if out.Err != nil {
		e.Message = out.Err.Error()
	}
	if out.Execution != nil {
		e.ExecutionID = out.Execution.ExecutionID
		e.ExecutionStatus = string(out.Execution.Status)
	}
	if out.PreRun.Ran {
		code := out.PreRun.ExitCode
		e.PreRunExit = &code
	}
	if out.Post.Ran {
		code := out.Post.ExitCode
		e.PostExit = &code
	}
	if _, err := c.Ledger.Record(e); err != nil {
		logging.Warn(fmt.Sprintf("Failed to record ledger entry: %v", err))
	}
}
