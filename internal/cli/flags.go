// Package cli provides flag binding and help text for the newton CLI.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gonewton/newton/internal/config"
	"github.com/gonewton/newton/internal/schedule"
)

// RunFlags holds the raw values of the run command's flags. Durations are
// whole seconds, matching newton.toml.
type RunFlags struct {
	MaxIterations    int
	MaxTime          int
	ToolTimeout      int
	EvaluatorTimeout int
	AdvisorTimeout   int
	ExecutorTimeout  int

	EvaluatorCmd string
	AdvisorCmd   string
	ExecutorCmd  string

	Strict  bool
	Verbose bool

	ConfigFile  string
	Goal        string
	GoalFile    string
	ControlFile string
	Branch      string
	Feedback    string
}

// BindRunFlags registers the run command's flags. Defaults mirror
// config.NewDefaultConfig; only flags the user sets are applied on top of
// the file and environment layers, see BuildOverrides.
func BindRunFlags(cmd *cobra.Command, f *RunFlags) {
	def := config.NewDefaultConfig()
	flags := cmd.Flags()

	// Limits
	flags.IntVar(&f.MaxIterations, "max-iterations", def.MaxIterations, "Maximum loop iterations")
	flags.IntVar(&f.MaxTime, "max-time", int(def.MaxTime/time.Second), "Wall-clock limit in seconds (0 disables)")
	flags.IntVar(&f.ToolTimeout, "tool-timeout", int(def.ToolTimeout/time.Second), "Default per-tool timeout in seconds")
	flags.IntVar(&f.EvaluatorTimeout, "evaluator-timeout", 0, "Evaluator timeout in seconds (default: --tool-timeout)")
	flags.IntVar(&f.AdvisorTimeout, "advisor-timeout", 0, "Advisor timeout in seconds (default: --tool-timeout)")
	flags.IntVar(&f.ExecutorTimeout, "executor-timeout", 0, "Executor timeout in seconds (default: --tool-timeout)")

	// Tools
	flags.StringVar(&f.EvaluatorCmd, "evaluator-cmd", "", "Evaluator command")
	flags.StringVar(&f.AdvisorCmd, "advisor-cmd", "", "Advisor command")
	flags.StringVar(&f.ExecutorCmd, "executor-cmd", "", "Executor command")
	flags.BoolVar(&f.Strict, "strict", false, "Abort an iteration when the evaluator fails")

	// Inputs
	flags.StringVar(&f.ConfigFile, "config", "", "Path to an additional newton.toml")
	flags.StringVar(&f.Goal, "goal", "", "Goal text (mutually exclusive with --goal-file)")
	flags.StringVar(&f.GoalFile, "goal-file", "", "Path to the goal file")
	flags.StringVar(&f.ControlFile, "control-file", def.ControlFile, "Control file name or path")
	flags.StringVar(&f.Branch, "branch", "", "Git branch to run on")
	flags.StringVar(&f.Feedback, "feedback", "", "Feedback passed to tools as NEWTON_USER_FEEDBACK")

	flags.BoolVarP(&f.Verbose, "verbose", "v", false, "Show tool output and debug logs")
}

// ValidateRunFlags checks flag combinations after parsing.
func ValidateRunFlags(cmd *cobra.Command, f *RunFlags) error {
	if f.Goal != "" && f.GoalFile != "" {
		return &config.ConfigError{Key: "--goal", Reason: "and --goal-file are mutually exclusive"}
	}

	if f.GoalFile != "" {
		if _, err := os.Stat(f.GoalFile); err != nil {
			return &config.ConfigError{Key: "--goal-file", Reason: "cannot be read", Err: err}
		}
	}

	if f.ConfigFile != "" {
		if _, err := os.Stat(f.ConfigFile); err != nil {
			return &config.ConfigError{Key: "--config", Reason: "cannot be read", Err: err}
		}
	}

	if cmd.Flags().Changed("max-iterations") && f.MaxIterations < 1 {
		return &config.ConfigError{Key: "--max-iterations", Reason: fmt.Sprintf("must be at least 1, got %d", f.MaxIterations)}
	}
	for name, v := range map[string]int{
		"max-time":          f.MaxTime,
		"tool-timeout":      f.ToolTimeout,
		"evaluator-timeout": f.EvaluatorTimeout,
		"advisor-timeout":   f.AdvisorTimeout,
		"executor-timeout":  f.ExecutorTimeout,
	} {
		if v < 0 {
			return &config.ConfigError{Key: "--" + name, Reason: fmt.Sprintf("must not be negative, got %d", v)}
		}
	}

	return nil
}

// BuildOverrides creates a map of CLI flag overrides keyed like
// config.WhitelistedVars. Only flags explicitly set by the user are
// included, so file values are not overridden by flag defaults.
func BuildOverrides(cmd *cobra.Command, f *RunFlags) map[string]string {
	overrides := make(map[string]string)

	stringFlags := map[string]struct {
		key string
		val string
	}{
		"evaluator-cmd": {"EVALUATOR_CMD", f.EvaluatorCmd},
		"advisor-cmd":   {"ADVISOR_CMD", f.AdvisorCmd},
		"executor-cmd":  {"EXECUTOR_CMD", f.ExecutorCmd},
		"goal":          {"GOAL", f.Goal},
		"goal-file":     {"GOAL_FILE", f.GoalFile},
		"control-file":  {"CONTROL_FILE", f.ControlFile},
		"branch":        {"BRANCH", f.Branch},
		"feedback":      {"FEEDBACK", f.Feedback},
	}
	for flag, mapping := range stringFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}

	intFlags := map[string]struct {
		key string
		val int
	}{
		"max-iterations":    {"MAX_ITERATIONS", f.MaxIterations},
		"max-time":          {"MAX_TIME", f.MaxTime},
		"tool-timeout":      {"TOOL_TIMEOUT", f.ToolTimeout},
		"evaluator-timeout": {"EVALUATOR_TIMEOUT", f.EvaluatorTimeout},
		"advisor-timeout":   {"ADVISOR_TIMEOUT", f.AdvisorTimeout},
		"executor-timeout":  {"EXECUTOR_TIMEOUT", f.ExecutorTimeout},
	}
	for flag, mapping := range intFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = strconv.Itoa(mapping.val)
		}
	}

	boolFlags := map[string]struct {
		key string
		val bool
	}{
		"strict":  {"STRICT", f.Strict},
		"verbose": {"VERBOSE", f.Verbose},
	}
	for flag, mapping := range boolFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = strconv.FormatBool(mapping.val)
		}
	}

	return overrides
}

// BatchFlags holds the batch command's flags.
type BatchFlags struct {
	Workspace string
	Once      bool
	Sleep     string
}

// BindBatchFlags registers the batch command's flags.
func BindBatchFlags(cmd *cobra.Command, f *BatchFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.Workspace, "workspace", "", "Workspace directory (default: search upward from cwd)")
	flags.BoolVar(&f.Once, "once", false, "Process at most one plan and exit")
	flags.StringVar(&f.Sleep, "sleep", strconv.Itoa(int(schedule.DefaultInterval/time.Second)), "Poll interval when the queue is empty (seconds or Go duration)")
}

// SleepInterval parses --sleep.
func (f *BatchFlags) SleepInterval() (time.Duration, error) {
	d, err := schedule.ParseInterval(f.Sleep)
	if err != nil {
		return 0, &config.ConfigError{Key: "--sleep", Reason: err.Error()}
	}
	return d, nil
}
