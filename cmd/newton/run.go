package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gonewton/newton/internal/artifacts"
	"github.com/gonewton/newton/internal/banner"
	"github.com/gonewton/newton/internal/cli"
	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/exitcode"
	"github.com/gonewton/newton/internal/gitops"
	"github.com/gonewton/newton/internal/logging"
	"github.com/gonewton/newton/internal/phases"
	sighandler "github.com/gonewton/newton/internal/signal"
	"github.com/gonewton/newton/internal/state"
	"github.com/gonewton/newton/internal/tools"
	"github.com/gonewton/newton/internal/workspace"
)

func newRunCmd() *cobra.Command {
	f := &cli.RunFlags{}
	cmd := &cobra.Command{
		Use:   "run <workspace>",
		Short: "Run the optimization loop in a workspace",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate flags after parsing
			if err := cli.ValidateRunFlags(cmd, f); err != nil {
				return err
			}
			return runWorkspace(cmd.Context(), args[0], f.ConfigFile, cli.BuildOverrides(cmd, f))
		},
	}
	cli.BindRunFlags(cmd, f)
	return cmd
}

func runWorkspace(parent context.Context, path, explicitConfig string, overrides map[string]string) error {
	ws, err := workspace.Validate(path)
	if err != nil {
		return err
	}

	// Load config with full precedence chain
	cfg, err := config.LoadWithPrecedence(config.TomlPath(ws), explicitConfig, os.Environ(), overrides)
	if err != nil {
		return err
	}
	logging.SetVerbose(cfg.Verbose)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	handler := sighandler.Setup(ctx, cancel, func(sig os.Signal) {
		logging.Warn(fmt.Sprintf("Received %s, stopping running tools", sig))
	})
	defer handler.Stop()

	ec := phases.NewEngineConfig(ws, cfg)
	store := artifacts.New(ws)
	if cfg.Goal != "" {
		goalPath, err := store.WriteGoal(cfg.Goal)
		if err != nil {
			return err
		}
		ec.GoalFile = goalPath
	}

	if cfg.Branch != "" || cfg.CreateBranchFromGoal || cfg.CreatePROnSuccess {
		for program, ok := range tools.CheckAvailability("git", "gh") {
			if !ok {
				logging.Warn(program + " not found in PATH; branch and pull request handling may fail")
			}
		}
	}
	repo := gitops.NewRepo(ws)
	session, err := repo.StartSession(ctx, gitops.BranchOptions{
		Branch:   cfg.Branch,
		FromGoal: cfg.CreateBranchFromGoal,
		NamerCmd: cfg.BranchNamerCmd,
		Goal:     goalText(cfg.Goal, ec.GoalFile),
		StateDir: store.StateDir(),
		Restore:  cfg.RestoreOriginalBranch,
	})
	if err != nil {
		return err
	}
	defer func() {
		// The run context may already be cancelled.
		if err := session.End(context.Background()); err != nil {
			logging.Warn(fmt.Sprintf("Failed to restore branch %s: %v", session.Original, err))
		}
	}()
	ec.BranchName = session.Branch
	ec.BaseBranch = session.Base

	orch := phases.NewOrchestrator(phases.NewIterationEngine(ec, tools.NewExecutor()), phases.NewLimits(cfg))
	orch.Recorder = state.NewManager(ws)
	orch.OnStart = func(exec *domain.OptimizationExecution) {
		banner.PrintStartupBanner(banner.RunInfo{
			ExecutionID:   exec.ExecutionID,
			Workspace:     exec.WorkspacePath,
			GoalFile:      exec.GoalFile,
			Branch:        session.Branch,
			MaxIterations: exec.MaxIterations,
			MaxTime:       exec.MaxTime,
		})
	}

	exec := orch.Run(ctx)

	if handler.Interrupted() {
		banner.PrintInterruptedBanner(handler.Signal())
		return &exitError{code: exitcode.Interrupted}
	}
	banner.PrintResultBanner(exec)

	if exec.Status == domain.ExecutionCompleted && cfg.CreatePROnSuccess {
		openPR(ctx, session, exec, goalText(cfg.Goal, ec.GoalFile))
	}

	if code := exitcode.FromExecution(exec); code != exitcode.Success {
		return &exitError{code: code}
	}
	return nil
}

// goalText returns the inline goal, or the goal file content.
func goalText(inline, goalFile string) string {
	if inline != "" {
		return inline
	}
	if goalFile == "" {
		return ""
	}
	text, err := workspace.ReadGoal(goalFile)
	if err != nil {
		return ""
	}
	return text
}

// openPR failures are reported but do not change the exit code.
func openPR(ctx context.Context, session *gitops.Session, exec *domain.OptimizationExecution, goal string) {
	if session.Branch == "" {
		logging.Warn("create_pr_on_success is set but the run has no branch")
		return
	}
	title := "newton: " + session.Branch
	if line, _, _ := strings.Cut(strings.TrimSpace(goal), "\n"); line != "" {
		title = "newton: " + line
	}
	body := fmt.Sprintf("Goal reached by newton execution %s after %d iteration(s).\n\n%s",
		exec.ExecutionID, exec.IterationCount(), goal)

	url, err := session.OpenPR(ctx, title, body)
	if err != nil {
		logging.Warn(fmt.Sprintf("Failed to create pull request: %v", err))
		return
	}
	logging.Success("Pull request: " + url)
}
