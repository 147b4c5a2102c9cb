package gitops

import (
	"context"
	"fmt"

	"github.com/gonewton/newton/internal/logging"
)

// BranchOptions selects the branch a run works on.
type BranchOptions struct {
	// Branch is used as-is when set.
	Branch string
	// FromGoal asks NamerCmd for a name when Branch is empty.
	FromGoal bool
	NamerCmd string
	Goal     string
	StateDir string
	// Restore checks the original branch out again in End.
	Restore bool
}

// Session is the branch state of one run. A zero Branch means no branch
// handling was requested and End and OpenPR do nothing.
type Session struct {
	Branch   string
	Base     string
	Original string

	repo    *Repo
	restore bool
}

// StartSession resolves the run branch and checks it out, creating it when
// missing.
func (r *Repo) StartSession(ctx context.Context, opts BranchOptions) (*Session, error) {
	s := &Session{repo: r, restore: opts.Restore}

	name := opts.Branch
	if name == "" && opts.FromGoal {
		generated, err := GenerateBranchName(ctx, opts.Goal, opts.NamerCmd, opts.StateDir)
		if err != nil {
			return nil, fmt.Errorf("generate branch name: %w", err)
		}
		name = generated
	}
	if name == "" {
		return s, nil
	}

	original, err := r.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	s.Original = original
	s.Base = r.DetectBaseBranch(ctx)

	if original != name {
		if err := r.SwitchTo(ctx, name); err != nil {
			return nil, err
		}
	}
	s.Branch = name
	logging.Info(fmt.Sprintf("Working on branch %s (base %s)", name, s.Base))
	return s, nil
}

// End restores the original branch when requested.
func (s *Session) End(ctx context.Context) error {
	if !s.restore || s.Branch == "" || s.Original == "" || s.Original == s.Branch {
		return nil
	}
	if err := s.repo.Checkout(ctx, s.Original); err != nil {
		return err
	}
	logging.Info("Restored branch " + s.Original)
	return nil
}

// OpenPR creates a pull request from the run branch into the base branch.
func (s *Session) OpenPR(ctx context.Context, title, body string) (string, error) {
	if s.Branch == "" {
		return "", nil
	}
	return s.repo.CreatePR(ctx, title, body, s.Base)
}
