package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gonewton/newton/internal/workspace"
)

// batchKeys lists the keys a project .conf file may set.
var batchKeys = map[string]bool{
	"project_root":        true,
	"coding_agent":        true,
	"coding_model":        true,
	"evaluator_cmd":       true,
	"advisor_cmd":         true,
	"executor_cmd":        true,
	"coder_cmd":           true,
	"pre_run_script":      true,
	"post_success_script": true,
	"post_fail_script":    true,
	"resume":              true,
	"verbose":             true,
	"max_iterations":      true,
	"max_time":            true,
	"control_file":        true,
}

// BatchConfig is one project's .conf file, with paths resolved.
type BatchConfig struct {
	Path        string
	ProjectRoot string
	CodingAgent string
	CodingModel string

	EvaluatorCmd string
	AdvisorCmd   string
	ExecutorCmd  string
	CoderCmd     string

	PreRunScript      string
	PostSuccessScript string
	PostFailScript    string

	Resume  bool
	Verbose bool
	// zero when not set in the file
	MaxIterations int
	MaxTime       time.Duration
	ControlFile   string
}

// BatchConfigPath returns <workspaceRoot>/.newton/configs/<projectID>.conf.
func BatchConfigPath(workspaceRoot, projectID string) string {
	return filepath.Join(workspaceRoot, workspace.MarkerDir, "configs", projectID+".conf")
}

// LoadBatchConfig reads and validates the .conf file of projectID.
//
// project_root, coding_agent and coding_model are required; project_root is
// resolved against workspaceRoot and must contain .newton. Evaluator and
// advisor commands default to <project_root>/.newton/scripts/{evaluator,advisor}.sh,
// executor and coder commands to <workspaceRoot>/.newton/scripts/{executor,coder}.sh.
// Relative commands resolve against the same base as their default.
func LoadBatchConfig(workspaceRoot, projectID string) (*BatchConfig, error) {
	path := BatchConfigPath(workspaceRoot, projectID)
	settings, err := LoadFile(path, batchKeys)
	if err != nil {
		return nil, &ConfigError{Path: path, Reason: "cannot read batch config", Err: err}
	}

	bc := &BatchConfig{Path: path}
	require := func(key string) (string, error) {
		v := settings[key]
		if v == "" {
			return "", &ConfigError{Path: path, Key: key, Reason: "is required"}
		}
		return v, nil
	}

	root, err := require("project_root")
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(root) {
		root = filepath.Join(workspaceRoot, root)
	}
	if info, statErr := os.Stat(filepath.Join(root, workspace.MarkerDir)); statErr != nil || !info.IsDir() {
		return nil, &ConfigError{Path: path, Key: "project_root", Reason: root + " must contain .newton", Err: statErr}
	}
	bc.ProjectRoot = root

	if bc.CodingAgent, err = require("coding_agent"); err != nil {
		return nil, err
	}
	if bc.CodingModel, err = require("coding_model"); err != nil {
		return nil, err
	}

	projectScripts := filepath.Join(root, workspace.MarkerDir, "scripts")
	wsScripts := filepath.Join(workspaceRoot, workspace.MarkerDir, "scripts")
	bc.EvaluatorCmd = resolveCommand(settings, "evaluator_cmd", root, filepath.Join(projectScripts, "evaluator.sh"))
	bc.AdvisorCmd = resolveCommand(settings, "advisor_cmd", root, filepath.Join(projectScripts, "advisor.sh"))
	bc.ExecutorCmd = resolveCommand(settings, "executor_cmd", workspaceRoot, filepath.Join(wsScripts, "executor.sh"))
	bc.CoderCmd = resolveCommand(settings, "coder_cmd", workspaceRoot, filepath.Join(wsScripts, "coder.sh"))

	bc.PreRunScript = settings["pre_run_script"]
	bc.PostSuccessScript = settings["post_success_script"]
	bc.PostFailScript = settings["post_fail_script"]
	bc.Resume = parseBool(settings["resume"])
	bc.Verbose = parseBool(settings["verbose"])
	bc.ControlFile = settings["control_file"]

	if v := settings["max_iterations"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, &ConfigError{Path: path, Key: "max_iterations", Reason: "invalid value " + strconv.Quote(v), Err: err}
		}
		bc.MaxIterations = n
	}
	if v := settings["max_time"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, &ConfigError{Path: path, Key: "max_time", Reason: "invalid value " + strconv.Quote(v), Err: err}
		}
		bc.MaxTime = time.Duration(n) * time.Second
	}

	return bc, nil
}

// resolveCommand returns the configured command for key, or def when key
// is absent. A relative program path is made absolute against base; a bare
// program name found neither under base nor containing a separator is left
// for PATH lookup. An explicitly empty value disables the command.
func resolveCommand(settings map[string]string, key, base, def string) string {
	v, ok := settings[key]
	if !ok {
		return def
	}
	if v == "" {
		return ""
	}
	program, args, _ := strings.Cut(v, " ")
	if filepath.IsAbs(program) {
		return v
	}
	candidate := filepath.Join(base, program)
	_, statErr := os.Stat(candidate)
	if statErr != nil && !strings.ContainsRune(program, filepath.Separator) && !strings.HasPrefix(program, ".") {
		return v
	}
	if args != "" {
		return candidate + " " + args
	}
	return candidate
}

// RunOverrides converts the project settings into run-config overrides.
func (bc *BatchConfig) RunOverrides() map[string]string {
	m := map[string]string{
		"EVALUATOR_CMD":      bc.EvaluatorCmd,
		"ADVISOR_CMD":        bc.AdvisorCmd,
		"EXECUTOR_CMD":       bc.ExecutorCmd,
		"CODING_AGENT":       bc.CodingAgent,
		"CODING_AGENT_MODEL": bc.CodingModel,
	}
	if bc.Verbose {
		m["VERBOSE"] = "true"
	}
	if bc.MaxIterations > 0 {
		m["MAX_ITERATIONS"] = strconv.Itoa(bc.MaxIterations)
	}
	if bc.MaxTime > 0 {
		m["MAX_TIME"] = strconv.Itoa(int(bc.MaxTime / time.Second))
	}
	if bc.ControlFile != "" {
		m["CONTROL_FILE"] = bc.ControlFile
	}
	return m
}
