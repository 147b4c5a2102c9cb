package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// whitelistSet is a precomputed lookup table for fast whitelist membership checks.
var whitelistSet map[string]bool

func init() {
	whitelistSet = make(map[string]bool, len(WhitelistedVars))
	for _, v := range WhitelistedVars {
		whitelistSet[v] = true
	}
}

// envVarKeys maps the environment variables that override configuration to
// their whitelist key.
var envVarKeys = map[string]string{
	"NEWTON_EXECUTOR_CODING_AGENT":       "CODING_AGENT",
	"NEWTON_EXECUTOR_CODING_AGENT_MODEL": "CODING_AGENT_MODEL",
	"NEWTON_CONTEXT_FILE":                "CONTEXT_FILE",
	"NEWTON_CONTEXT_CLEAR_AFTER_USE":     "CONTEXT_CLEAR_AFTER_USE",
	"NEWTON_USER_FEEDBACK":               "FEEDBACK",
	"NEWTON_PROMISE_FILE":                "PROMISE_FILE",
	"NEWTON_EVALUATOR_SCORE_THRESHOLD":   "SCORE_THRESHOLD",
}

// LoadFile parses a key = value config file at the given path.
//
// Lines are processed according to these rules:
//   - Everything from a # to the end of the line is a comment.
//   - Empty lines and lines without an = sign are skipped.
//   - The line is split on the first = only.
//   - Leading and trailing whitespace is trimmed from both key and value.
//   - When allowed is non-nil, keys not in it are silently ignored.
//
// Returns a map of key-value pairs, or an error if the file cannot be read.
func LoadFile(path string, allowed map[string]bool) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}

		key := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if key == "" {
			continue
		}
		if allowed != nil && !allowed[key] {
			continue
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	return result, nil
}

// EnvOverrides extracts configuration overrides from an os.Environ-style
// list. Only the variables in envVarKeys are considered.
func EnvOverrides(environ []string) map[string]string {
	m := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if key, known := envVarKeys[name]; known {
			m[key] = value
		}
	}
	return m
}

// LoadWithPrecedence assembles a Config by merging sources in order of
// increasing priority:
//
//  1. Built-in defaults
//  2. Workspace newton.toml (tomlPath)
//  3. Explicit TOML config file (explicitPath)
//  4. Environment overrides (environ)
//  5. CLI overrides (cliOverrides map)
//
// A missing tomlPath is not an error; a missing explicitPath is. Any
// malformed TOML file is a ConfigError. The result is validated.
func LoadWithPrecedence(tomlPath, explicitPath string, environ []string, cliOverrides map[string]string) (*Config, error) {
	cfg := NewDefaultConfig()

	// Layer 2: workspace newton.toml.
	if tomlPath != "" {
		file, err := LoadToml(tomlPath)
		if err != nil {
			return nil, err
		}
		ApplyMapToConfig(cfg, file.ToMap())
	}

	// Layer 3: explicit config file (must exist if specified).
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return nil, &ConfigError{Path: explicitPath, Reason: "config file not found", Err: err}
		}
		file, err := LoadToml(explicitPath)
		if err != nil {
			return nil, err
		}
		ApplyMapToConfig(cfg, file.ToMap())
		cfg.ConfigFile = explicitPath
	}

	// Layer 4: environment.
	ApplyMapToConfig(cfg, EnvOverrides(environ))

	// Layer 5: CLI overrides (highest priority).
	if len(cliOverrides) > 0 {
		ApplyMapToConfig(cfg, cliOverrides)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyMapToConfig sets fields on cfg from the key-value pairs in m.
// Keys must use the WhitelistedVars naming convention (e.g., "MAX_TIME").
// Unknown keys are silently ignored. Numeric fields that fail to parse
// are silently ignored (the previous value is preserved). Durations are
// whole seconds.
func ApplyMapToConfig(cfg *Config, m map[string]string) {
	for key, value := range m {
		if !whitelistSet[key] {
			continue
		}
		switch key {
		case "EVALUATOR_CMD":
			cfg.EvaluatorCmd = value
		case "ADVISOR_CMD":
			cfg.AdvisorCmd = value
		case "EXECUTOR_CMD":
			cfg.ExecutorCmd = value
		case "MAX_ITERATIONS":
			if v, err := strconv.Atoi(value); err == nil {
				cfg.MaxIterations = v
			}
		case "MAX_TIME":
			setSeconds(&cfg.MaxTime, value)
		case "TOOL_TIMEOUT":
			setSeconds(&cfg.ToolTimeout, value)
		case "EVALUATOR_TIMEOUT":
			setSeconds(&cfg.EvaluatorTimeout, value)
		case "ADVISOR_TIMEOUT":
			setSeconds(&cfg.AdvisorTimeout, value)
		case "EXECUTOR_TIMEOUT":
			setSeconds(&cfg.ExecutorTimeout, value)
		case "STRICT":
			cfg.Strict = parseBool(value)
		case "VERBOSE":
			cfg.Verbose = parseBool(value)
		case "CONTROL_FILE":
			cfg.ControlFile = value
		case "GOAL":
			cfg.Goal = value
		case "GOAL_FILE":
			cfg.GoalFile = value
		case "BRANCH":
			cfg.Branch = value
		case "FEEDBACK":
			cfg.Feedback = value
		case "CODING_AGENT":
			cfg.CodingAgent = value
		case "CODING_AGENT_MODEL":
			cfg.CodingAgentModel = value
		case "CONTEXT_FILE":
			cfg.ContextFile = value
		case "CONTEXT_CLEAR_AFTER_USE":
			cfg.ClearContextAfterUse = parseBool(value)
		case "CREATE_BRANCH_FROM_GOAL":
			cfg.CreateBranchFromGoal = parseBool(value)
		case "BRANCH_NAMER_CMD":
			cfg.BranchNamerCmd = value
		case "RESTORE_ORIGINAL_BRANCH":
			cfg.RestoreOriginalBranch = parseBool(value)
		case "CREATE_PR_ON_SUCCESS":
			cfg.CreatePROnSuccess = parseBool(value)
		case "PROMISE_FILE":
			cfg.PromiseFile = strings.TrimSpace(value)
		case "SCORE_THRESHOLD":
			if v, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				cfg.ScoreThreshold = v
			}
		}
	}
}

func setSeconds(dst *time.Duration, value string) {
	if v, err := strconv.Atoi(value); err == nil {
		*dst = time.Duration(v) * time.Second
	}
}

// parseBool interprets common boolean representations.
// "true", "1", "yes" (case-insensitive) return true; everything else returns false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
