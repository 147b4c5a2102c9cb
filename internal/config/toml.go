package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// TomlFileName is the per-workspace configuration file.
const TomlFileName = "newton.toml"

// File mirrors newton.toml. Pointer fields distinguish "absent" from an
// explicit zero so that a later file can switch a flag back off.
type File struct {
	EvaluatorCmd       string  `toml:"evaluator_cmd"`
	AdvisorCmd         string  `toml:"advisor_cmd"`
	ExecutorCmd        string  `toml:"executor_cmd"`
	ControlFile        *string `toml:"control_file"`
	Strict             *bool   `toml:"strict"`
	MaxIterations      int     `toml:"max_iterations"`
	MaxTimeSeconds     int     `toml:"max_time_seconds"`
	ToolTimeoutSeconds int     `toml:"tool_timeout_seconds"`

	Branch    BranchSection    `toml:"branch"`
	Git       GitSection       `toml:"git"`
	Executor  ExecutorSection  `toml:"executor"`
	Context   ContextSection   `toml:"context"`
	Evaluator EvaluatorSection `toml:"evaluator"`
	Promise   PromiseSection   `toml:"promise"`
}

// BranchSection is the [branch] table.
type BranchSection struct {
	CreateFromGoal *bool  `toml:"create_from_goal"`
	BranchNamerCmd string `toml:"branch_namer_cmd"`
}

// GitSection is the [git] table.
type GitSection struct {
	RestoreOriginalBranch *bool `toml:"restore_original_branch"`
	CreatePROnSuccess     *bool `toml:"create_pr_on_success"`
}

// ExecutorSection is the [executor] table.
type ExecutorSection struct {
	CodingAgent      string `toml:"coding_agent"`
	CodingAgentModel string `toml:"coding_agent_model"`
}

// ContextSection is the [context] table.
type ContextSection struct {
	File          string `toml:"file"`
	ClearAfterUse *bool  `toml:"clear_after_use"`
}

// EvaluatorSection is the [evaluator] table.
type EvaluatorSection struct {
	ScoreThreshold *float64 `toml:"score_threshold"`
}

// PromiseSection is the [promise] table.
type PromiseSection struct {
	File *string `toml:"file"`
}

// TomlPath returns the newton.toml location inside workspace.
func TomlPath(workspace string) string {
	return filepath.Join(workspace, TomlFileName)
}

// LoadToml reads a newton.toml file. A missing file yields an empty File.
func LoadToml(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &File{}, nil
		}
		return nil, &ConfigError{Path: path, Reason: "cannot read file", Err: err}
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, &ConfigError{Path: path, Reason: "malformed TOML", Err: err}
	}
	if err := f.Validate(); err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return nil, err
	}
	return &f, nil
}

// Validate checks the constraints a single file must satisfy on its own.
func (f *File) Validate() error {
	if f.ControlFile != nil && strings.TrimSpace(*f.ControlFile) == "" {
		return &ConfigError{Key: "control_file", Reason: "cannot be empty"}
	}
	if f.Branch.CreateFromGoal != nil && *f.Branch.CreateFromGoal && f.Branch.BranchNamerCmd == "" {
		return &ConfigError{Key: "branch.branch_namer_cmd", Reason: "is required when branch.create_from_goal is true"}
	}
	if f.Promise.File != nil && strings.TrimSpace(*f.Promise.File) == "" {
		return &ConfigError{Key: "promise.file", Reason: "cannot be empty"}
	}
	if t := f.Evaluator.ScoreThreshold; t != nil && (*t < 0 || *t > 100) {
		return &ConfigError{Key: "evaluator.score_threshold", Reason: "must be between 0 and 100"}
	}
	if f.MaxIterations < 0 || f.MaxTimeSeconds < 0 || f.ToolTimeoutSeconds < 0 {
		return &ConfigError{Key: "limits", Reason: "must not be negative"}
	}
	return nil
}

// ToMap converts the set fields of f into whitelist overrides.
func (f *File) ToMap() map[string]string {
	m := make(map[string]string)
	setString := func(key, v string) {
		if v != "" {
			m[key] = v
		}
	}
	setInt := func(key string, v int) {
		if v > 0 {
			m[key] = strconv.Itoa(v)
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			m[key] = strconv.FormatBool(*v)
		}
	}

	setString("EVALUATOR_CMD", f.EvaluatorCmd)
	setString("ADVISOR_CMD", f.AdvisorCmd)
	setString("EXECUTOR_CMD", f.ExecutorCmd)
	if f.ControlFile != nil {
		setString("CONTROL_FILE", strings.TrimSpace(*f.ControlFile))
	}
	setBool("STRICT", f.Strict)
	setInt("MAX_ITERATIONS", f.MaxIterations)
	setInt("MAX_TIME", f.MaxTimeSeconds)
	setInt("TOOL_TIMEOUT", f.ToolTimeoutSeconds)

	setBool("CREATE_BRANCH_FROM_GOAL", f.Branch.CreateFromGoal)
	setString("BRANCH_NAMER_CMD", f.Branch.BranchNamerCmd)
	setBool("RESTORE_ORIGINAL_BRANCH", f.Git.RestoreOriginalBranch)
	setBool("CREATE_PR_ON_SUCCESS", f.Git.CreatePROnSuccess)
	setString("CODING_AGENT", f.Executor.CodingAgent)
	setString("CODING_AGENT_MODEL", f.Executor.CodingAgentModel)
	setString("CONTEXT_FILE", f.Context.File)
	setBool("CONTEXT_CLEAR_AFTER_USE", f.Context.ClearAfterUse)
	if f.Promise.File != nil {
		setString("PROMISE_FILE", strings.TrimSpace(*f.Promise.File))
	}
	if f.Evaluator.ScoreThreshold != nil {
		m["SCORE_THRESHOLD"] = strconv.FormatFloat(*f.Evaluator.ScoreThreshold, 'f', -1, 64)
	}
	return m
}
