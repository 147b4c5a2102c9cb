// Package errclass maps failures onto the shared error taxonomy.
//
// Classify is pure apart from ID generation and the timestamp: the same
// cause always yields the same category, severity and suggestion.
package errclass

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/gonewton/newton/internal/domain"
)

// Classified is implemented by errors that already know their category.
type Classified interface {
	error
	ErrorCategory() domain.ErrorCategory
}

// Context identifies where a failure happened.
type Context struct {
	ExecutionID     string
	IterationNumber int
	ComponentID     string
}

var defaultSeverity = map[domain.ErrorCategory]domain.Severity{
	domain.CategoryValidation:    domain.SeverityHigh,
	domain.CategoryExecution:     domain.SeverityMedium,
	domain.CategoryConfiguration: domain.SeverityHigh,
	domain.CategoryToolFailure:   domain.SeverityMedium,
	domain.CategoryTimeout:       domain.SeverityMedium,
	domain.CategorySystem:        domain.SeverityCritical,
}

var suggestions = map[domain.ErrorCategory]string{
	domain.CategoryValidation:    "check that the workspace exists and contains the required files",
	domain.CategoryExecution:     "re-run with --verbose and inspect the execution log",
	domain.CategoryConfiguration: "fix the configuration file or flags and ensure every required key is set",
	domain.CategoryToolFailure:   "inspect the tool's stdout/stderr in the iteration artifacts directory",
	domain.CategoryTimeout:       "increase the tool timeout",
	domain.CategorySystem:        "verify the tool executable exists and is executable",
}

// DefaultSeverity returns the severity assigned to c.
func DefaultSeverity(c domain.ErrorCategory) domain.Severity {
	if s, ok := defaultSeverity[c]; ok {
		return s
	}
	return domain.SeverityMedium
}

// Suggestion returns the canned recovery hint for c.
func Suggestion(c domain.ErrorCategory) string {
	return suggestions[c]
}

// Category decides which taxonomy bucket cause belongs to.
func Category(cause error) domain.ErrorCategory {
	if cause == nil {
		return domain.CategoryExecution
	}

	var classified Classified
	if errors.As(cause, &classified) {
		return classified.ErrorCategory()
	}

	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		return domain.CategoryTimeout
	case errors.Is(cause, exec.ErrNotFound), errors.Is(cause, fs.ErrPermission):
		return domain.CategorySystem
	case errors.Is(cause, fs.ErrNotExist):
		return domain.CategoryValidation
	}

	var exitErr *exec.ExitError
	if errors.As(cause, &exitErr) {
		return domain.CategoryToolFailure
	}

	return domain.CategoryExecution
}

// Classify builds an ErrorRecord for cause.
func Classify(ctx Context, cause error) domain.ErrorRecord {
	category := Category(cause)
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	return newRecord(ctx, category, msg)
}

// ClassifyResult builds an ErrorRecord for a tool that ran but exited
// non-zero.
func ClassifyResult(ctx Context, result domain.ToolResult) domain.ErrorRecord {
	category := domain.CategoryToolFailure
	msg := fmt.Sprintf("%s exited with code %d", result.Tool, result.ExitCode)
	if result.TimedOut {
		category = domain.CategoryTimeout
		msg = fmt.Sprintf("%s timed out after %s", result.Tool, result.ExecutionTime.Round(time.Millisecond))
	}
	return newRecord(ctx, category, msg)
}

// New builds an ErrorRecord with an explicit category.
func New(ctx Context, category domain.ErrorCategory, msg string) domain.ErrorRecord {
	return newRecord(ctx, category, msg)
}

func newRecord(ctx Context, category domain.ErrorCategory, msg string) domain.ErrorRecord {
	return domain.ErrorRecord{
		ID:       domain.NewID(),
		Category: category,
		Severity: DefaultSeverity(category),
		Message:  msg,
		Context: domain.ErrorContext{
			ExecutionID:     ctx.ExecutionID,
			IterationNumber: ctx.IterationNumber,
			ComponentID:     ctx.ComponentID,
		},
		Suggestion: Suggestion(category),
		OccurredAt: time.Now().UTC(),
	}
}
