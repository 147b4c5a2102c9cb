// Package config defines the newton configuration model and default values.
//
// A run's configuration is assembled from several sources with a strict
// precedence chain: built-in defaults < workspace newton.toml < explicit
// --config file < NEWTON_* environment overrides < CLI flag overrides.
// Batch projects additionally read a per-project .conf file whose values
// are applied as CLI-level overrides.
package config

import (
	"time"

	"github.com/gonewton/newton/internal/control"
	"github.com/gonewton/newton/internal/promise"
)

// WhitelistedVars lists every key that may appear in an override map.
// Keys not in this list are silently ignored.
var WhitelistedVars = [26]string{
	"EVALUATOR_CMD",
	"ADVISOR_CMD",
	"EXECUTOR_CMD",
	"MAX_ITERATIONS",
	"MAX_TIME",
	"TOOL_TIMEOUT",
	"EVALUATOR_TIMEOUT",
	"ADVISOR_TIMEOUT",
	"EXECUTOR_TIMEOUT",
	"STRICT",
	"VERBOSE",
	"CONTROL_FILE",
	"GOAL",
	"GOAL_FILE",
	"BRANCH",
	"FEEDBACK",
	"CODING_AGENT",
	"CODING_AGENT_MODEL",
	"CONTEXT_FILE",
	"CONTEXT_CLEAR_AFTER_USE",
	"CREATE_BRANCH_FROM_GOAL",
	"BRANCH_NAMER_CMD",
	"RESTORE_ORIGINAL_BRANCH",
	"CREATE_PR_ON_SUCCESS",
	"PROMISE_FILE",
	"SCORE_THRESHOLD",
}

// Config holds every setting of one orchestrator run.
type Config struct {
	// Tool commands.
	EvaluatorCmd string
	AdvisorCmd   string
	ExecutorCmd  string

	// Limits.
	MaxIterations int
	MaxTime       time.Duration

	// Per-tool deadlines. A zero per-tool value falls back to ToolTimeout.
	ToolTimeout      time.Duration
	EvaluatorTimeout time.Duration
	AdvisorTimeout   time.Duration
	ExecutorTimeout  time.Duration

	// Runtime flags.
	Strict  bool
	Verbose bool

	// Goal and control.
	ControlFile string
	Goal        string
	GoalFile    string
	Feedback    string

	// Executor settings passed through to tools.
	CodingAgent          string
	CodingAgentModel     string
	ContextFile          string
	ClearContextAfterUse bool

	// Completion promise. A complete promise ends the run once the
	// evaluator score reaches ScoreThreshold.
	PromiseFile    string
	ScoreThreshold float64

	// Branch and git handling.
	Branch                string
	CreateBranchFromGoal  bool
	BranchNamerCmd        string
	RestoreOriginalBranch bool
	CreatePROnSuccess     bool

	// CLI-only (not loaded from config files).
	ConfigFile string
}

// NewDefaultConfig returns a Config populated with all built-in default values.
func NewDefaultConfig() *Config {
	return &Config{
		MaxIterations:  10,
		MaxTime:        300 * time.Second,
		ToolTimeout:    30 * time.Second,
		ControlFile:    control.DefaultFileName,
		PromiseFile:    promise.DefaultFile,
		ScoreThreshold: promise.DefaultScoreThreshold,
	}
}

// Timeouts returns the effective evaluator, advisor and executor deadlines.
func (c *Config) Timeouts() (evaluator, advisor, executor time.Duration) {
	pick := func(d time.Duration) time.Duration {
		if d > 0 {
			return d
		}
		return c.ToolTimeout
	}
	return pick(c.EvaluatorTimeout), pick(c.AdvisorTimeout), pick(c.ExecutorTimeout)
}

// Validate rejects settings that cannot produce a run.
func (c *Config) Validate() error {
	switch {
	case c.MaxIterations < 1:
		return &ConfigError{Key: "max_iterations", Reason: "must be at least 1"}
	case c.MaxTime < 0:
		return &ConfigError{Key: "max_time", Reason: "must not be negative"}
	case c.ToolTimeout < 0 || c.EvaluatorTimeout < 0 || c.AdvisorTimeout < 0 || c.ExecutorTimeout < 0:
		return &ConfigError{Key: "tool_timeout", Reason: "must not be negative"}
	case c.ControlFile == "":
		return &ConfigError{Key: "control_file", Reason: "cannot be empty"}
	case c.PromiseFile == "":
		return &ConfigError{Key: "promise.file", Reason: "cannot be empty"}
	case c.ScoreThreshold < 0 || c.ScoreThreshold > 100:
		return &ConfigError{Key: "evaluator.score_threshold", Reason: "must be between 0 and 100"}
	case c.Goal != "" && c.GoalFile != "":
		return &ConfigError{Key: "goal", Reason: "goal and goal_file are mutually exclusive"}
	case c.CreateBranchFromGoal && c.BranchNamerCmd == "":
		return &ConfigError{Key: "branch.branch_namer_cmd", Reason: "is required when branch.create_from_goal is true"}
	}
	return nil
}
