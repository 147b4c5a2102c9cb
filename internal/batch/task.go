package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gonewton/newton/internal/artifacts"
	"github.com/gonewton/newton/internal/control"
	"github.com/gonewton/newton/internal/workspace"
)

// RunLogName is the per-task run log inside the task state directory.
const RunLogName = "newton_run.log"

// Task is the on-disk layout of one plan inside the project checkout:
//
//	<project_root>/.newton/tasks/<task_id>/input/spec.md
//	<project_root>/.newton/tasks/<task_id>/state/
//	<project_root>/.newton/state/
type Task struct {
	ID              string
	Dir             string
	GoalFile        string
	StateDir        string
	ProjectStateDir string
	ControlFile     string
	Branch          string
	BaseBranch      string
}

// NewTask returns the layout of taskID under projectRoot. A relative
// controlFile is placed in the task state directory; empty means
// control.DefaultFileName.
func NewTask(projectRoot, taskID, controlFile string) *Task {
	dir := filepath.Join(projectRoot, workspace.MarkerDir, "tasks", taskID)
	state := filepath.Join(dir, "state")
	return &Task{
		ID:              taskID,
		Dir:             dir,
		GoalFile:        filepath.Join(dir, "input", "spec.md"),
		StateDir:        state,
		ProjectStateDir: filepath.Join(projectRoot, workspace.MarkerDir, "state"),
		ControlFile:     control.Resolve(state, controlFile),
	}
}

// Prepare writes goal as the task input and creates the state
// directories. Without resume, both state directories are wiped first.
func (t *Task) Prepare(goal []byte, resume bool) error {
	if err := artifacts.WriteFile(t.GoalFile, goal); err != nil {
		return fmt.Errorf("write task goal: %w", err)
	}
	for _, dir := range []string{t.StateDir, t.ProjectStateDir} {
		if !resume {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("reset %s: %w", dir, err)
			}
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// RunLog returns the path of the task's run log.
func (t *Task) RunLog() string {
	return filepath.Join(t.StateDir, RunLogName)
}

// AppendRunLog appends "[timestamp] message" to the run log.
func (t *Task) AppendRunLog(at time.Time, message string) error {
	if err := os.MkdirAll(t.StateDir, 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(t.RunLog(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[%s] %s\n", at.UTC().Format(time.RFC3339), message)
	return err
}
