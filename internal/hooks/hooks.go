// Package hooks runs the batch lifecycle scripts configured per project.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/gonewton/newton/internal/envctx"
	"github.com/gonewton/newton/internal/logging"
)

// Kind names a lifecycle hook.
type Kind string

const (
	PreRun      Kind = "pre_run_script"
	PostSuccess Kind = "post_success_script"
	PostFail    Kind = "post_fail_script"
)

// Result is the outcome of one hook run.
type Result struct {
	Kind     Kind
	Ran      bool
	ExitCode int
	Duration time.Duration
}

// Succeeded reports whether the hook was skipped or exited 0.
func (r Result) Succeeded() bool {
	return !r.Ran || r.ExitCode == 0
}

// Runner executes hook scripts with `sh -c` in a fixed directory.
type Runner struct {
	Dir     string
	Stdout  io.Writer
	Stderr  io.Writer
	BaseEnv func() []string
}

// NewRunner returns a Runner whose hooks inherit the process environment
// and standard streams.
func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir, Stdout: os.Stdout, Stderr: os.Stderr, BaseEnv: os.Environ}
}

// Run executes script. An empty script is skipped. A non-zero exit is
// reported in the Result, not as an error; the error is reserved for
// failures to start the shell or a cancelled ctx.
func (r *Runner) Run(ctx context.Context, kind Kind, script string, env envctx.Env) (Result, error) {
	res := Result{Kind: kind}
	if script == "" {
		return res, nil
	}

	base := os.Environ
	if r.BaseEnv != nil {
		base = r.BaseEnv
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = r.Dir
	cmd.Env = env.Environ(base())
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	logging.Info(fmt.Sprintf("Running %s", kind))
	start := time.Now()
	err := cmd.Run()
	res.Duration = time.Since(start)
	res.Ran = true

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case ctx.Err() != nil:
		res.ExitCode = -1
		return res, fmt.Errorf("%s interrupted: %w", kind, ctx.Err())
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("failed to execute %s: %w", kind, err)
	}

	if res.ExitCode != 0 {
		logging.Warn(fmt.Sprintf("%s exited with code %d", kind, res.ExitCode))
	} else {
		logging.Debug(fmt.Sprintf("%s finished in %s", kind, logging.FormatDuration(res.Duration)))
	}
	return res, nil
}
