package domain

import (
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ToolResult is the outcome of one subprocess invocation. It is never
// modified after the executor returns it.
type ToolResult struct {
	Tool          string        `json:"tool"`
	Command       string        `json:"command"`
	Success       bool          `json:"success"`
	ExitCode      int           `json:"exit_code"`
	ExecutionTime time.Duration `json:"execution_time"`
	Stdout        string        `json:"stdout"`
	Stderr        string        `json:"stderr"`
	TimedOut      bool          `json:"timed_out,omitempty"`
}

// ErrorContext locates an ErrorRecord within a run.
type ErrorContext struct {
	ExecutionID     string `json:"execution_id,omitempty"`
	IterationNumber int    `json:"iteration_number,omitempty"`
	ComponentID     string `json:"component_id,omitempty"`
}

// ErrorRecord describes one classified failure.
type ErrorRecord struct {
	ID         string        `json:"error_id"`
	Category   ErrorCategory `json:"category"`
	Severity   Severity      `json:"severity"`
	Message    string        `json:"message"`
	Context    ErrorContext  `json:"context"`
	Suggestion string        `json:"suggestion,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Workspace is the filesystem root a run operates on.
type Workspace struct {
	ID     string          `json:"workspace_id"`
	Path   string          `json:"path"`
	Status WorkspaceStatus `json:"status"`
}

// NewWorkspace returns a workspace in the Initializing state.
func NewWorkspace(path string) *Workspace {
	return &Workspace{ID: NewID(), Path: path, Status: WorkspaceInitializing}
}

// Transition moves the workspace to target.
func (w *Workspace) Transition(target WorkspaceStatus) error {
	if !w.Status.CanTransitionTo(target) {
		return &TransitionError{Kind: "workspace", From: string(w.Status), To: string(target)}
	}
	w.Status = target
	return nil
}

// Iteration is one evaluate/advise/execute cycle.
type Iteration struct {
	ID          string          `json:"iteration_id"`
	ExecutionID string          `json:"execution_id"`
	Number      int             `json:"iteration_number"`
	Status      IterationStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Evaluator   *ToolResult     `json:"evaluator_result,omitempty"`
	Advisor     *ToolResult     `json:"advisor_result,omitempty"`
	Executor    *ToolResult     `json:"executor_result,omitempty"`
	Score       *float64        `json:"evaluator_score,omitempty"`
	Promise     string          `json:"promise,omitempty"`
	Errors      []ErrorRecord   `json:"errors,omitempty"`
}

// NewIteration starts iteration number n of the given execution.
func NewIteration(executionID string, n int, now time.Time) *Iteration {
	return &Iteration{
		ID:          NewID(),
		ExecutionID: executionID,
		Number:      n,
		Status:      IterationRunning,
		StartedAt:   now,
	}
}

// Finish moves the iteration to a terminal status.
func (it *Iteration) Finish(target IterationStatus, at time.Time) error {
	if !it.Status.CanTransitionTo(target) {
		return &TransitionError{Kind: "iteration", From: string(it.Status), To: string(target)}
	}
	it.Status = target
	it.CompletedAt = &at
	return nil
}

// OptimizationExecution is the record of one full run. Only the
// orchestrator mutates it, and only through the transition methods below.
type OptimizationExecution struct {
	ExecutionID       string            `json:"execution_id"`
	WorkspaceID       string            `json:"workspace_id"`
	WorkspacePath     string            `json:"workspace_path"`
	MaxIterations     int               `json:"max_iterations"`
	MaxTime           time.Duration     `json:"max_time"`
	Strict            bool              `json:"strict,omitempty"`
	GoalFile          string            `json:"goal_file,omitempty"`
	GoalHash          string            `json:"goal_hash,omitempty"`
	Status            ExecutionStatus   `json:"status"`
	StartedAt         *time.Time        `json:"started_at,omitempty"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	FinalSolutionID   string            `json:"final_solution_id,omitempty"`
	TerminationReason TerminationReason `json:"termination_reason,omitempty"`
	Iterations        []*Iteration      `json:"iterations"`
	Errors            []ErrorRecord     `json:"errors,omitempty"`
}

// NewExecution returns a Pending execution for the workspace.
func NewExecution(ws *Workspace, maxIterations int, maxTime time.Duration) *OptimizationExecution {
	return &OptimizationExecution{
		ExecutionID:   NewID(),
		WorkspaceID:   ws.ID,
		WorkspacePath: ws.Path,
		MaxIterations: maxIterations,
		MaxTime:       maxTime,
		Status:        ExecutionPending,
		Iterations:    []*Iteration{},
	}
}

func (e *OptimizationExecution) move(target ExecutionStatus) error {
	if !e.Status.CanTransitionTo(target) {
		return &TransitionError{Kind: "execution", From: string(e.Status), To: string(target)}
	}
	e.Status = target
	return nil
}

// Start moves a Pending execution to Running.
func (e *OptimizationExecution) Start(at time.Time) error {
	if err := e.move(ExecutionRunning); err != nil {
		return err
	}
	e.StartedAt = &at
	return nil
}

// Complete records success with the final solution reference.
func (e *OptimizationExecution) Complete(at time.Time, solutionID string) error {
	if err := e.move(ExecutionCompleted); err != nil {
		return err
	}
	e.FinalSolutionID = solutionID
	e.CompletedAt = &at
	return nil
}

// Terminate records a resource-limit stop.
func (e *OptimizationExecution) Terminate(at time.Time, reason TerminationReason) error {
	if reason == "" {
		return &TransitionError{Kind: "execution", From: string(e.Status), To: string(ExecutionTerminated) + " without reason"}
	}
	if err := e.move(ExecutionTerminated); err != nil {
		return err
	}
	e.TerminationReason = reason
	e.CompletedAt = &at
	return nil
}

// Fail records an unrecoverable error. A Pending execution that fails
// during setup gets StartedAt equal to CompletedAt.
func (e *OptimizationExecution) Fail(at time.Time, rec *ErrorRecord) error {
	if err := e.move(ExecutionFailed); err != nil {
		return err
	}
	if e.StartedAt == nil {
		e.StartedAt = &at
	}
	e.CompletedAt = &at
	if rec != nil {
		e.Errors = append(e.Errors, *rec)
	}
	return nil
}

// AddIteration appends it; numbering must continue without gaps.
func (e *OptimizationExecution) AddIteration(it *Iteration) error {
	if it.Number != len(e.Iterations)+1 {
		return &TransitionError{Kind: "iteration number", From: strconv.Itoa(len(e.Iterations)), To: strconv.Itoa(it.Number)}
	}
	e.Iterations = append(e.Iterations, it)
	return nil
}

// IterationCount returns the number of iterations started so far.
func (e *OptimizationExecution) IterationCount() int {
	return len(e.Iterations)
}

// CompletedIterations counts iterations that finished without a strict abort.
func (e *OptimizationExecution) CompletedIterations() int {
	n := 0
	for _, it := range e.Iterations {
		if it.Status == IterationCompleted {
			n++
		}
	}
	return n
}

// AllErrors returns execution-level and iteration-level errors in the
// order they occurred.
func (e *OptimizationExecution) AllErrors() []ErrorRecord {
	var out []ErrorRecord
	for _, it := range e.Iterations {
		out = append(out, it.Errors...)
	}
	out = append(out, e.Errors...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out
}

// LatestError returns the most recent ErrorRecord, or nil.
func (e *OptimizationExecution) LatestError() *ErrorRecord {
	all := e.AllErrors()
	if len(all) == 0 {
		return nil
	}
	return &all[len(all)-1]
}

// Duration is the wall-clock time between start and completion, or zero.
func (e *OptimizationExecution) Duration() time.Duration {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(*e.StartedAt)
}
