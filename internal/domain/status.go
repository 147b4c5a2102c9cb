// Package domain defines the records produced by an optimization run and the
// closed status types that drive them.
//
// Every status type lists its legal transitions explicitly. Callers move a
// record between states only through the transition helpers, which reject
// anything not listed:
//
//	Execution: pending → running → completed | failed | terminated
//	           pending → failed (setup error)
//	Iteration: running → completed | failed
//	Workspace: initializing → ready → optimizing → completed
//	           any non-error state → error, error → initializing
package domain

import (
	"errors"
	"fmt"
)

// ErrIllegalTransition is matched by every TransitionError.
var ErrIllegalTransition = errors.New("illegal status transition")

// TransitionError reports a rejected status change.
type TransitionError struct {
	Kind string
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %q to %q", e.Kind, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

// ExecutionStatus is the lifecycle state of an OptimizationExecution.
type ExecutionStatus string

const (
	ExecutionPending    ExecutionStatus = "pending"
	ExecutionRunning    ExecutionStatus = "running"
	ExecutionCompleted  ExecutionStatus = "completed"
	ExecutionFailed     ExecutionStatus = "failed"
	ExecutionTerminated ExecutionStatus = "terminated"
)

// Valid reports whether s is a known execution status.
func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionRunning, ExecutionCompleted, ExecutionFailed, ExecutionTerminated:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionTerminated:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to target.
func (s ExecutionStatus) CanTransitionTo(target ExecutionStatus) bool {
	switch s {
	case ExecutionPending:
		return target == ExecutionRunning || target == ExecutionFailed
	case ExecutionRunning:
		return target == ExecutionCompleted || target == ExecutionFailed || target == ExecutionTerminated
	default:
		return false
	}
}

// IterationStatus is the lifecycle state of a single Iteration.
type IterationStatus string

const (
	IterationRunning   IterationStatus = "running"
	IterationCompleted IterationStatus = "completed"
	IterationFailed    IterationStatus = "failed"
)

// Valid reports whether s is a known iteration status.
func (s IterationStatus) Valid() bool {
	switch s {
	case IterationRunning, IterationCompleted, IterationFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s IterationStatus) IsTerminal() bool {
	return s == IterationCompleted || s == IterationFailed
}

// CanTransitionTo reports whether s may move to target.
func (s IterationStatus) CanTransitionTo(target IterationStatus) bool {
	return s == IterationRunning && target.IsTerminal()
}

// WorkspaceStatus is the lifecycle state of a Workspace.
type WorkspaceStatus string

const (
	WorkspaceInitializing WorkspaceStatus = "initializing"
	WorkspaceReady        WorkspaceStatus = "ready"
	WorkspaceOptimizing   WorkspaceStatus = "optimizing"
	WorkspaceCompleted    WorkspaceStatus = "completed"
	WorkspaceError        WorkspaceStatus = "error"
)

// Valid reports whether s is a known workspace status.
func (s WorkspaceStatus) Valid() bool {
	switch s {
	case WorkspaceInitializing, WorkspaceReady, WorkspaceOptimizing, WorkspaceCompleted, WorkspaceError:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether s may move to target. A completed
// workspace may be optimized again; an errored one must be re-initialized.
func (s WorkspaceStatus) CanTransitionTo(target WorkspaceStatus) bool {
	switch s {
	case WorkspaceInitializing:
		return target == WorkspaceReady || target == WorkspaceError
	case WorkspaceReady:
		return target == WorkspaceOptimizing || target == WorkspaceError
	case WorkspaceOptimizing:
		return target == WorkspaceCompleted || target == WorkspaceReady || target == WorkspaceError
	case WorkspaceCompleted:
		return target == WorkspaceOptimizing || target == WorkspaceError
	case WorkspaceError:
		return target == WorkspaceInitializing
	default:
		return false
	}
}

// TerminationReason explains why a Terminated execution stopped.
type TerminationReason string

const (
	ReasonIterationLimit TerminationReason = "IterationLimit"
	ReasonTimeLimit      TerminationReason = "TimeLimit"
)

// ErrorCategory is the failure taxonomy shared by the orchestrator and the
// batch controller.
type ErrorCategory string

const (
	CategoryValidation    ErrorCategory = "Validation"
	CategoryExecution     ErrorCategory = "Execution"
	CategoryConfiguration ErrorCategory = "Configuration"
	CategoryToolFailure   ErrorCategory = "ToolFailure"
	CategoryTimeout       ErrorCategory = "Timeout"
	CategorySystem        ErrorCategory = "System"
)

// Categories lists every ErrorCategory in taxonomy order.
var Categories = []ErrorCategory{
	CategoryValidation,
	CategoryExecution,
	CategoryConfiguration,
	CategoryToolFailure,
	CategoryTimeout,
	CategorySystem,
}

// Valid reports whether c is a known category.
func (c ErrorCategory) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity ranks an ErrorRecord.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Rank orders severities from 0 (Low) to 3 (Critical). Unknown values rank -1.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 0
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return -1
	}
}
