// Package gitops wraps the git and gh command-line tools used around a run:
// branch detection and switching, branch naming and pull requests.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/envctx"
)

// DefaultBaseBranch is used when origin/HEAD cannot be resolved.
const DefaultBaseBranch = "main"

// BranchNameFile is read when the branch namer prints nothing.
const BranchNameFile = "branch_name.txt"

// CommandError reports a git or gh invocation that failed.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ErrorCategory reports ToolFailure.
func (e *CommandError) ErrorCategory() domain.ErrorCategory {
	return domain.CategoryToolFailure
}

// Repo runs git commands in one working tree.
type Repo struct {
	Dir string
	Git string
	GH  string
}

// NewRepo returns a Repo for dir using git and gh from PATH.
func NewRepo(dir string) *Repo {
	return &Repo{Dir: dir, Git: "git", GH: "gh"}
}

func (r *Repo) run(ctx context.Context, bin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{
			Args:   append([]string{bin}, args...),
			Stderr: strings.TrimSpace(stderr.String()),
			Err:    err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// DetectBaseBranch returns the branch origin/HEAD points at, without the
// origin/ prefix. Any failure yields DefaultBaseBranch.
func (r *Repo) DetectBaseBranch(ctx context.Context) string {
	out, err := r.run(ctx, r.Git, "-C", r.Dir, "rev-parse", "--abbrev-ref", "origin/HEAD")
	if err != nil || out == "" {
		return DefaultBaseBranch
	}
	if stripped, ok := strings.CutPrefix(out, "origin/"); ok {
		if stripped == "" {
			return DefaultBaseBranch
		}
		return stripped
	}
	return out
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.run(ctx, r.Git, "rev-parse", "--abbrev-ref", "HEAD")
}

// BranchExists reports whether a local branch called name exists.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	_, err := r.run(ctx, r.Git, "show-ref", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// CreateBranch creates name from HEAD and checks it out.
func (r *Repo) CreateBranch(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.Git, "checkout", "-b", name)
	return err
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(ctx context.Context, name string) error {
	_, err := r.run(ctx, r.Git, "checkout", name)
	return err
}

// SwitchTo checks out name, creating it first when it does not exist.
func (r *Repo) SwitchTo(ctx context.Context, name string) error {
	if r.BranchExists(ctx, name) {
		return r.Checkout(ctx, name)
	}
	return r.CreateBranch(ctx, name)
}

// CreatePR opens a pull request for the current branch and returns the
// URL gh prints.
func (r *Repo) CreatePR(ctx context.Context, title, body, base string) (string, error) {
	if _, err := exec.LookPath(r.GH); err != nil {
		return "", &CommandError{Args: []string{r.GH}, Err: fmt.Errorf("gh CLI is not installed: %w", err)}
	}
	return r.run(ctx, r.GH, "pr", "create", "--title", title, "--body", body, "--base", base)
}

// ErrEmptyBranchName is returned when the namer produced nothing usable.
var ErrEmptyBranchName = errors.New("branch namer produced no output (neither stdout nor " + BranchNameFile + ")")

// GenerateBranchName runs namerCmd with `sh -c`, exposing the goal and the
// state directory. The branch name is the trimmed stdout, or the content of
// <stateDir>/branch_name.txt when stdout is empty.
func GenerateBranchName(ctx context.Context, goal, namerCmd, stateDir string) (string, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return "", fmt.Errorf("create state directory %s: %w", stateDir, err)
	}

	env := envctx.New(map[string]string{
		envctx.Goal:     goal,
		envctx.StateDir: stateDir,
	})

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", namerCmd)
	cmd.Env = env.Environ(os.Environ())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &CommandError{Args: []string{"sh", "-c", namerCmd}, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	if name := strings.TrimSpace(stdout.String()); name != "" {
		return name, nil
	}
	data, err := os.ReadFile(filepath.Join(stateDir, BranchNameFile))
	if err == nil {
		if name := strings.TrimSpace(string(data)); name != "" {
			return name, nil
		}
	}
	return "", ErrEmptyBranchName
}
