package envctx

import (
	"strconv"
	"time"
)

// Contract variable names. Tools and hooks rely on these exact spellings.
const (
	WorkspacePath   = "NEWTON_WORKSPACE_PATH"
	ExecutionID     = "NEWTON_EXECUTION_ID"
	Iteration       = "NEWTON_ITERATION"
	IterationNumber = "NEWTON_ITERATION_NUMBER"
	IterationDir    = "NEWTON_ITERATION_DIR"
	EvaluatorDir    = "NEWTON_EVALUATOR_DIR"
	AdvisorDir      = "NEWTON_ADVISOR_DIR"
	ExecutorDir     = "NEWTON_EXECUTOR_DIR"
	ScoreFile       = "NEWTON_SCORE_FILE"
	StateDir        = "NEWTON_STATE_DIR"
	ArtifactsDir    = "NEWTON_ARTIFACTS_DIR"
	GoalFile        = "NEWTON_GOAL_FILE"
	ControlFile     = "NEWTON_CONTROL_FILE"
	BranchName      = "NEWTON_BRANCH_NAME"
	BaseBranch      = "NEWTON_BASE_BRANCH"

	EvaluatorCmd       = "NEWTON_EVALUATOR_CMD"
	AdvisorCmd         = "NEWTON_ADVISOR_CMD"
	ExecutorCmd        = "NEWTON_EXECUTOR_CMD"
	EvaluatorTimeoutMs = "NEWTON_EVALUATOR_TIMEOUT_MS"
	AdvisorTimeoutMs   = "NEWTON_ADVISOR_TIMEOUT_MS"
	ExecutorTimeoutMs  = "NEWTON_EXECUTOR_TIMEOUT_MS"
	UserFeedback       = "NEWTON_USER_FEEDBACK"

	EvaluatorStatusFile        = "NEWTON_EVALUATOR_STATUS_FILE"
	AdvisorRecommendationsFile = "NEWTON_ADVISOR_RECOMMENDATIONS_FILE"
	ExecutorPromptFile         = "NEWTON_EXECUTOR_PROMPT_FILE"
	ContextFile                = "NEWTON_CONTEXT_FILE"
	ContextClearAfterUse       = "NEWTON_CONTEXT_CLEAR_AFTER_USE"
	PromiseFile                = "NEWTON_PROMISE_FILE"

	// batch only
	ProjectID          = "NEWTON_PROJECT_ID"
	TaskID             = "NEWTON_TASK_ID"
	ProjectRoot        = "NEWTON_PROJECT_ROOT"
	Result             = "NEWTON_RESULT"
	Resume             = "NEWTON_RESUME"
	WorkspaceRoot      = "NEWTON_WS_ROOT"
	CoderCmd           = "NEWTON_CODER_CMD"
	CodingAgent        = "CODING_AGENT"
	CodingAgentModel   = "CODING_AGENT_MODEL"
	ExecCodingAgent    = "NEWTON_EXECUTOR_CODING_AGENT"
	ExecCodingAgentMdl = "NEWTON_EXECUTOR_CODING_AGENT_MODEL"

	// branch namer only
	Goal = "NEWTON_GOAL"
)

// Context holds everything needed to describe one tool invocation to the
// tool itself. Empty string fields are omitted from the built Env.
type Context struct {
	WorkspacePath string
	ExecutionID   string
	Iteration     int
	IterationDir  string
	EvaluatorDir  string
	AdvisorDir    string
	ExecutorDir   string
	ScoreFile     string
	StateDir      string
	ArtifactsDir  string
	GoalFile      string
	ControlFile   string
	BranchName    string
	BaseBranch    string
}

// Build returns the contract for c layered over extra. Contract variables
// win over anything in extra with the same name.
func (c Context) Build(extra Env) Env {
	n := strconv.Itoa(c.Iteration)
	core := map[string]string{
		WorkspacePath:   c.WorkspacePath,
		ExecutionID:     c.ExecutionID,
		Iteration:       n,
		IterationNumber: n,
		IterationDir:    c.IterationDir,
		EvaluatorDir:    c.EvaluatorDir,
		AdvisorDir:      c.AdvisorDir,
		ExecutorDir:     c.ExecutorDir,
		ScoreFile:       c.ScoreFile,
		StateDir:        c.StateDir,
		ArtifactsDir:    c.ArtifactsDir,
		GoalFile:        c.GoalFile,
		ControlFile:     c.ControlFile,
		BranchName:      c.BranchName,
		BaseBranch:      c.BaseBranch,
	}
	for k, v := range core {
		if v == "" {
			delete(core, k)
		}
	}
	return extra.Merge(New(core))
}

// Millis formats d as whole milliseconds for the *_TIMEOUT_MS variables.
func Millis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}

// FormatBool renders b the way hooks expect ("true"/"false").
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}
