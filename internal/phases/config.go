package phases

import (
	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/contextfile"
	"github.com/gonewton/newton/internal/envctx"
	"github.com/gonewton/newton/internal/promise"
)

// NewEngineConfig maps a loaded run configuration onto an engine
// configuration for workspace. Goal and branch fields are left for the
// caller, which knows where the goal text lives.
func NewEngineConfig(workspace string, cfg *config.Config) EngineConfig {
	eval, adv, exec := cfg.Timeouts()

	extra := map[string]string{}
	if cfg.Feedback != "" {
		extra[envctx.UserFeedback] = cfg.Feedback
	}
	if cfg.CodingAgent != "" {
		extra[envctx.ExecCodingAgent] = cfg.CodingAgent
	}
	if cfg.CodingAgentModel != "" {
		extra[envctx.ExecCodingAgentMdl] = cfg.CodingAgentModel
	}

	return EngineConfig{
		Workspace:            workspace,
		Commands:             Commands{Evaluator: cfg.EvaluatorCmd, Advisor: cfg.AdvisorCmd, Executor: cfg.ExecutorCmd},
		Timeouts:             Timeouts{Evaluator: eval, Advisor: adv, Executor: exec},
		Strict:               cfg.Strict,
		GoalFile:             cfg.GoalFile,
		ControlFile:          cfg.ControlFile,
		ContextFile:          contextfile.Resolve(workspace, cfg.ContextFile),
		ClearContextAfterUse: cfg.ClearContextAfterUse,
		PromiseFile:          promise.Resolve(workspace, cfg.PromiseFile),
		ScoreThreshold:       cfg.ScoreThreshold,
		ExtraEnv:             envctx.New(extra),
	}
}

// NewLimits returns the execution limits of cfg.
func NewLimits(cfg *config.Config) Limits {
	return Limits{MaxIterations: cfg.MaxIterations, MaxTime: cfg.MaxTime}
}
