// Package tools runs the external evaluator, advisor and executor commands.
//
// Every tool is treated the same way: it is spawned with an explicit
// environment and working directory, its stdout and stderr are captured,
// and it either exits on its own or is killed when its timeout elapses.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/envctx"
)

// ErrEmptyCommand is returned before spawning when a tool has no command.
var ErrEmptyCommand = errors.New("empty tool command")

// ExecError is a failure to obtain an exit code from a tool. A non-zero
// exit is not an ExecError; it is reported through ToolResult.Success.
type ExecError struct {
	Category domain.ErrorCategory
	Tool     string
	Command  string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s %q: %v", e.Tool, e.Command, e.Err)
	}
	return fmt.Sprintf("%q: %v", e.Command, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ErrorCategory reports the taxonomy bucket of the failure.
func (e *ExecError) ErrorCategory() domain.ErrorCategory {
	return e.Category
}

// Invocation describes one tool run.
type Invocation struct {
	Tool    string
	Command string
	Env     envctx.Env
	WorkDir string
	Timeout time.Duration
}

// Runner executes a single tool invocation.
type Runner interface {
	Execute(ctx context.Context, inv Invocation) (domain.ToolResult, error)
}

// Executor is the subprocess-backed Runner.
type Executor struct {
	// BaseEnv supplies the inherited environment; defaults to os.Environ.
	BaseEnv func() []string
}

// NewExecutor returns an Executor inheriting the process environment.
func NewExecutor() *Executor {
	return &Executor{BaseEnv: os.Environ}
}

// ParseCommand splits a command line on whitespace. Quoting is not
// interpreted; tools needing shell features should be wrapped in a script.
func ParseCommand(command string) []string {
	return strings.Fields(command)
}

// Execute runs inv and waits for the process to exit, the timeout to
// elapse, or ctx to be cancelled, whichever comes first. On timeout or
// cancellation the whole process group is killed and reaped before
// Execute returns.
func (x *Executor) Execute(ctx context.Context, inv Invocation) (domain.ToolResult, error) {
	result := domain.ToolResult{Tool: inv.Tool, Command: inv.Command, ExitCode: -1}

	argv := ParseCommand(inv.Command)
	if len(argv) == 0 {
		return result, &ExecError{Category: domain.CategoryConfiguration, Tool: inv.Tool, Command: inv.Command, Err: ErrEmptyCommand}
	}

	base := os.Environ
	if x.BaseEnv != nil {
		base = x.BaseEnv
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = inv.WorkDir
	cmd.Env = inv.Env.Environ(base())
	cmd.Stdin = nil
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		result.ExecutionTime = time.Since(start)
		return result, &ExecError{Category: domain.CategorySystem, Tool: inv.Tool, Command: inv.Command, Err: err}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var timeout <-chan time.Time
	if inv.Timeout > 0 {
		timer := time.NewTimer(inv.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	finish := func() {
		result.ExecutionTime = time.Since(start)
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
	}

	select {
	case err := <-done:
		finish()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
			result.ExitCode = 0
			result.Success = true
		case errors.As(err, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return result, &ExecError{Category: domain.CategorySystem, Tool: inv.Tool, Command: inv.Command, Err: err}
		}
		return result, nil

	case <-timeout:
		killProcessGroup(cmd)
		<-done
		finish()
		result.TimedOut = true
		return result, &ExecError{
			Category: domain.CategoryTimeout,
			Tool:     inv.Tool,
			Command:  inv.Command,
			Err:      fmt.Errorf("timed out after %s", inv.Timeout),
		}

	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		finish()
		category := domain.CategoryExecution
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			category = domain.CategoryTimeout
			result.TimedOut = true
		}
		return result, &ExecError{Category: category, Tool: inv.Tool, Command: inv.Command, Err: ctx.Err()}
	}
}
