// Package queue stores batch plans as files. The directory a plan lives in
// is its state; moving the file is the only way to change it.
package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gonewton/newton/internal/workspace"
)

// Queue is the plan directory of one project:
// <workspace>/.newton/plan/<project_id>/{todo,completed,failed,draft}.
type Queue struct {
	planRoot string
	root     string
}

// New returns the queue of projectID under the workspace root.
func New(workspaceRoot, projectID string) *Queue {
	planRoot := filepath.Join(workspaceRoot, workspace.MarkerDir, "plan")
	return &Queue{planRoot: planRoot, root: filepath.Join(planRoot, projectID)}
}

// Root returns the project's plan directory.
func (q *Queue) Root() string {
	return q.root
}

// Dir returns the directory holding plans in state s.
func (q *Queue) Dir(s PlanState) string {
	return filepath.Join(q.root, string(s))
}

// Ensure creates the state directories. The workspace must already have a
// .newton/plan directory.
func (q *Queue) Ensure() error {
	info, err := os.Stat(q.planRoot)
	if err != nil || !info.IsDir() {
		return &workspace.ValidationError{Path: q.planRoot, Reason: "plan directory not found", Err: err}
	}
	for _, s := range States {
		if err := os.MkdirAll(q.Dir(s), 0755); err != nil {
			return fmt.Errorf("create %s directory: %w", s, err)
		}
	}
	return nil
}

// List returns the plan files in state s in lexical order. Directories and
// dot files are skipped.
func (q *Queue) List(s PlanState) ([]string, error) {
	entries, err := os.ReadDir(q.Dir(s))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s directory: %w", s, err)
	}

	var files []string
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		files = append(files, filepath.Join(q.Dir(s), e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Next returns the first todo plan, or "" when the queue is empty.
func (q *Queue) Next() (string, error) {
	files, err := q.List(StateTodo)
	if err != nil || len(files) == 0 {
		return "", err
	}
	return files[0], nil
}

// Move renames the plan at path from one state directory to another and
// returns its new path. A file of the same name already in the target is
// replaced, so the plan never exists in two places.
func (q *Queue) Move(path string, from, to PlanState) (string, error) {
	if !from.CanTransitionTo(to) {
		return "", from.transitionError(to)
	}
	if filepath.Dir(path) != q.Dir(from) {
		return "", fmt.Errorf("plan %s is not in %s", path, q.Dir(from))
	}

	dest := filepath.Join(q.Dir(to), filepath.Base(path))
	if err := os.MkdirAll(q.Dir(to), 0755); err != nil {
		return "", fmt.Errorf("create %s directory: %w", to, err)
	}
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("remove existing %s: %w", dest, err)
	}
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move plan to %s: %w", to, err)
	}
	return dest, nil
}
