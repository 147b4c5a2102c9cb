// Package exitcode defines named exit codes for the newton CLI.
//
// Each code maps a specific termination condition to a numeric value
// recognized by shell scripts and CI pipelines.
package exitcode

import (
	"context"
	"errors"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/errclass"
)

// Exit code constants. The mapping is stable; scripts depend on it.
const (
	Success          = 0   // Run completed, or batch finished
	Error            = 1   // Unexpected failure, execution failed, --once plan failed
	Configuration    = 2   // Empty tool command, malformed config, bad flags
	WorkspaceInvalid = 3   // Workspace or goal file unusable
	IterationLimit   = 4   // Terminated at max_iterations
	TimeLimit        = 5   // Terminated at max_time
	Interrupted      = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Error:
		return "Error"
	case Configuration:
		return "Configuration"
	case WorkspaceInvalid:
		return "WorkspaceInvalid"
	case IterationLimit:
		return "IterationLimit"
	case TimeLimit:
		return "TimeLimit"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}

// FromCategory maps an error category onto an exit code.
func FromCategory(c domain.ErrorCategory) int {
	switch c {
	case domain.CategoryConfiguration:
		return Configuration
	case domain.CategoryValidation:
		return WorkspaceInvalid
	default:
		return Error
	}
}

// FromError maps an error returned by a command onto an exit code.
func FromError(err error) int {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, context.Canceled):
		return Interrupted
	}
	return FromCategory(errclass.Category(err))
}

// FromExecution maps a terminal execution onto an exit code. A failed
// execution takes the code of its first recorded error.
func FromExecution(exec *domain.OptimizationExecution) int {
	if exec == nil {
		return Error
	}
	switch exec.Status {
	case domain.ExecutionCompleted:
		return Success
	case domain.ExecutionTerminated:
		switch exec.TerminationReason {
		case domain.ReasonIterationLimit:
			return IterationLimit
		case domain.ReasonTimeLimit:
			return TimeLimit
		}
		return Error
	case domain.ExecutionFailed:
		if len(exec.Errors) > 0 {
			return FromCategory(exec.Errors[0].Category)
		}
	}
	return Error
}
