// Package state persists execution history under
// <workspace>/.newton/executions/<execution_id>/.
//
// execution.json holds the full OptimizationExecution snapshot and is
// rewritten after every iteration. error.log holds one JSON line per
// ErrorRecord in occurrence order.
package state

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gonewton/newton/internal/domain"
	"github.com/gonewton/newton/internal/workspace"
)

const (
	executionFileName = "execution.json"
	errorLogFileName  = "error.log"
)

// ErrNotFound is returned when no history exists for an execution id.
var ErrNotFound = errors.New("execution not found")

// Manager reads and writes execution history for one workspace.
type Manager struct {
	dir string
}

// NewManager returns a Manager for the workspace root.
func NewManager(workspaceRoot string) *Manager {
	return &Manager{dir: filepath.Join(workspaceRoot, ".newton", "executions")}
}

// Dir returns the history directory of an execution.
func (m *Manager) Dir(executionID string) string {
	return filepath.Join(m.dir, executionID)
}

// ErrorLogPath returns the error.log path of an execution.
func (m *Manager) ErrorLogPath(executionID string) string {
	return filepath.Join(m.Dir(executionID), errorLogFileName)
}

// Save persists the execution as indented JSON and rewrites its error log.
func (m *Manager) Save(exec *domain.OptimizationExecution) error {
	// Marshal with 4-space indent
	data, err := json.MarshalIndent(exec, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	dir := m.Dir(exec.ExecutionID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create execution dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, executionFileName), data); err != nil {
		return fmt.Errorf("write execution file: %w", err)
	}

	var log bytes.Buffer
	for _, rec := range exec.AllErrors() {
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal error record: %w", err)
		}
		log.Write(line)
		log.WriteByte('\n')
	}
	if err := os.WriteFile(m.ErrorLogPath(exec.ExecutionID), log.Bytes(), 0644); err != nil {
		return fmt.Errorf("write error log: %w", err)
	}

	return nil
}

// Load reads and parses an execution snapshot.
func (m *Manager) Load(executionID string) (*domain.OptimizationExecution, error) {
	data, err := os.ReadFile(filepath.Join(m.Dir(executionID), executionFileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, executionID)
	}
	if err != nil {
		return nil, fmt.Errorf("read execution file: %w", err)
	}

	var exec domain.OptimizationExecution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("unmarshal execution: %w", err)
	}

	return &exec, nil
}

// ReadErrorLog returns the raw lines of an execution's error log. A missing
// log yields no lines.
func (m *Manager) ReadErrorLog(executionID string) ([]string, error) {
	f, err := os.Open(m.ErrorLogPath(executionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read error log: %w", err)
	}
	return lines, nil
}

// List returns the ids of all recorded executions, most recently written
// first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read executions dir: %w", err)
	}

	type item struct {
		id  string
		mod int64
	}
	var items []item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(m.dir, e.Name(), executionFileName))
		if err != nil {
			continue
		}
		items = append(items, item{id: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].mod > items[j].mod })

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.id
	}
	return ids, nil
}

// ValidateGoal checks that the goal file recorded for exec still exists and
// still hashes to the recorded value.
func ValidateGoal(exec *domain.OptimizationExecution) error {
	if exec.GoalFile == "" {
		return nil
	}
	if _, err := os.Stat(exec.GoalFile); err != nil {
		return fmt.Errorf("goal file not found: %w", err)
	}

	goal, err := workspace.LoadGoal(exec.GoalFile)
	if err != nil {
		return err
	}

	if exec.GoalHash != "" && exec.GoalHash != goal.Hash {
		return fmt.Errorf("goal file changed: expected hash %s, got %s", exec.GoalHash, goal.Hash)
	}

	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
