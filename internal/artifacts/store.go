// Package artifacts owns the on-disk layout of a workspace run: the
// per-iteration directories, the score file, captured tool output and the
// state files shared between tools.
//
// Layout, relative to the workspace root:
//
//	artifacts/
//	  score.txt
//	  iter-1/
//	    evaluator/  status.md stdout.log stderr.log
//	    advisor/    recommendations.md stdout.log stderr.log
//	    executor/   stdout.log stderr.log
//	.newton/state/
//	  goal.txt
//	  executor_prompt.md
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gonewton/newton/internal/domain"
)

// Phase directory names.
const (
	PhaseEvaluator = "evaluator"
	PhaseAdvisor   = "advisor"
	PhaseExecutor  = "executor"
)

const (
	artifactsDirName          = "artifacts"
	scoreFileName             = "score.txt"
	evaluatorStatusName       = "status.md"
	advisorRecommendationName = "recommendations.md"
	goalFileName              = "goal.txt"
	executorPromptName        = "executor_prompt.md"
)

// Store locates and writes run artifacts under a workspace root.
type Store struct {
	root string
}

// New returns a Store rooted at the workspace path.
func New(workspace string) *Store {
	return &Store{root: workspace}
}

// Root returns the workspace path.
func (s *Store) Root() string { return s.root }

// ArtifactsDir returns <ws>/artifacts.
func (s *Store) ArtifactsDir() string {
	return filepath.Join(s.root, artifactsDirName)
}

// StateDir returns <ws>/.newton/state.
func (s *Store) StateDir() string {
	return filepath.Join(s.root, ".newton", "state")
}

// ScoreFile returns <ws>/artifacts/score.txt.
func (s *Store) ScoreFile() string {
	return filepath.Join(s.ArtifactsDir(), scoreFileName)
}

// GoalTextFile returns the file an inline goal is written to.
func (s *Store) GoalTextFile() string {
	return filepath.Join(s.StateDir(), goalFileName)
}

// ExecutorPromptFile returns <ws>/.newton/state/executor_prompt.md.
func (s *Store) ExecutorPromptFile() string {
	return filepath.Join(s.StateDir(), executorPromptName)
}

// IterationLayout holds the directories of one iteration.
type IterationLayout struct {
	Number       int
	Dir          string
	EvaluatorDir string
	AdvisorDir   string
	ExecutorDir  string
}

// PhaseDir returns the directory for the named phase.
func (l IterationLayout) PhaseDir(phase string) string {
	switch phase {
	case PhaseEvaluator:
		return l.EvaluatorDir
	case PhaseAdvisor:
		return l.AdvisorDir
	case PhaseExecutor:
		return l.ExecutorDir
	default:
		return l.Dir
	}
}

// EvaluatorStatusFile is where the evaluator may leave a status summary
// for the advisor.
func (l IterationLayout) EvaluatorStatusFile() string {
	return filepath.Join(l.EvaluatorDir, evaluatorStatusName)
}

// AdvisorRecommendationsFile is where the advisor leaves recommendations
// for the executor.
func (l IterationLayout) AdvisorRecommendationsFile() string {
	return filepath.Join(l.AdvisorDir, advisorRecommendationName)
}

// Iteration returns the layout for iteration n without touching disk.
func (s *Store) Iteration(n int) IterationLayout {
	dir := filepath.Join(s.ArtifactsDir(), "iter-"+strconv.Itoa(n))
	return IterationLayout{
		Number:       n,
		Dir:          dir,
		EvaluatorDir: filepath.Join(dir, PhaseEvaluator),
		AdvisorDir:   filepath.Join(dir, PhaseAdvisor),
		ExecutorDir:  filepath.Join(dir, PhaseExecutor),
	}
}

// PrepareIteration creates the directories for iteration n.
func (s *Store) PrepareIteration(n int) (IterationLayout, error) {
	l := s.Iteration(n)
	for _, dir := range []string{l.EvaluatorDir, l.AdvisorDir, l.ExecutorDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return l, fmt.Errorf("create iteration dir: %w", err)
		}
	}
	if err := os.MkdirAll(s.StateDir(), 0755); err != nil {
		return l, fmt.Errorf("create state dir: %w", err)
	}
	return l, nil
}

// SaveToolOutput writes the captured streams of r into dir.
func (s *Store) SaveToolOutput(dir string, r domain.ToolResult) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stdout.log"), []byte(r.Stdout), 0644); err != nil {
		return fmt.Errorf("write stdout: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stderr.log"), []byte(r.Stderr), 0644); err != nil {
		return fmt.Errorf("write stderr: %w", err)
	}
	return nil
}

// ErrInvalidScore is returned when score.txt holds something other than a number.
var ErrInvalidScore = errors.New("invalid score")

// ReadScore parses the evaluator score. A missing or blank file yields nil.
func (s *Store) ReadScore() (*float64, error) {
	data, err := os.ReadFile(s.ScoreFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read score: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %q", ErrInvalidScore, s.ScoreFile(), text)
	}
	return &v, nil
}

// WriteGoal stores inline goal text and returns the file path.
func (s *Store) WriteGoal(text string) (string, error) {
	path := s.GoalTextFile()
	if err := WriteFile(path, []byte(text)); err != nil {
		return "", fmt.Errorf("write goal: %w", err)
	}
	return path, nil
}

// ReadOptional returns the trimmed content of path, or "" when the file is
// missing or blank.
func ReadOptional(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// WriteFile writes data to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
