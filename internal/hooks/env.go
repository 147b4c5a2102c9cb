package hooks

import "github.com/gonewton/newton/internal/envctx"

// Outcome values exported as NEWTON_RESULT.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// TaskVars describes the plan a hook runs for.
type TaskVars struct {
	ProjectID     string
	TaskID        string
	ProjectRoot   string
	WorkspaceRoot string
	GoalFile      string
	StateDir      string
	ControlFile   string
	BranchName    string
	BaseBranch    string
	CodingAgent   string
	CodingModel   string
	Resume        bool
}

func (v TaskVars) common() map[string]string {
	return map[string]string{
		envctx.CodingAgent:      v.CodingAgent,
		envctx.CodingAgentModel: v.CodingModel,
		envctx.ProjectRoot:      v.ProjectRoot,
		envctx.ProjectID:        v.ProjectID,
		envctx.TaskID:           v.TaskID,
		envctx.GoalFile:         v.GoalFile,
		envctx.WorkspaceRoot:    v.WorkspaceRoot,
		envctx.StateDir:         v.StateDir,
		envctx.ControlFile:      v.ControlFile,
		envctx.BranchName:       v.BranchName,
	}
}

// PreRunEnv is the environment of pre_run_script.
func (v TaskVars) PreRunEnv() envctx.Env {
	m := v.common()
	m[envctx.Resume] = resumeFlag(v.Resume)
	return envctx.New(m)
}

// PostEnv is the environment of post_success_script and post_fail_script.
func (v TaskVars) PostEnv(outcome string) envctx.Env {
	m := v.common()
	m[envctx.ExecCodingAgent] = v.CodingAgent
	m[envctx.ExecCodingAgentMdl] = v.CodingModel
	m[envctx.Result] = outcome
	m[envctx.BaseBranch] = v.BaseBranch
	return envctx.New(m)
}

func resumeFlag(resume bool) string {
	if resume {
		return "1"
	}
	return "0"
}
