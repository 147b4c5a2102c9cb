// Package workspace validates workspace directories and locates the
// workspace root that holds the .newton directory.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gonewton/newton/internal/domain"
)

// MarkerDir is the directory that marks a workspace root.
const MarkerDir = ".newton"

// ErrRootNotFound is returned when no ancestor holds a .newton directory.
var ErrRootNotFound = errors.New("no .newton directory found")

// ValidationError describes a workspace that cannot be used.
type ValidationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid workspace %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid workspace %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrorCategory reports Validation.
func (e *ValidationError) ErrorCategory() domain.ErrorCategory {
	return domain.CategoryValidation
}

// Validate checks that path exists and is a directory and returns its
// absolute form.
func Validate(path string) (string, error) {
	if path == "" {
		return "", &ValidationError{Path: path, Reason: "path is empty"}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &ValidationError{Path: path, Reason: "cannot resolve path", Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &ValidationError{Path: abs, Reason: "path does not exist", Err: err}
	}
	if !info.IsDir() {
		return "", &ValidationError{Path: abs, Reason: "not a directory"}
	}
	return abs, nil
}

// RequireDirs checks that each of rel exists as a directory under root.
func RequireDirs(root string, rel ...string) error {
	for _, r := range rel {
		p := filepath.Join(root, r)
		info, err := os.Stat(p)
		if err != nil {
			return &ValidationError{Path: root, Reason: "missing " + r, Err: err}
		}
		if !info.IsDir() {
			return &ValidationError{Path: root, Reason: r + " is not a directory"}
		}
	}
	return nil
}

// FindRoot walks up from start to the first directory containing .newton.
// An empty start means the current working directory.
func FindRoot(start string) (string, error) {
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = wd
	}
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", start, err)
	}

	for {
		info, statErr := os.Stat(filepath.Join(dir, MarkerDir))
		if statErr == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &ValidationError{Path: start, Reason: "no workspace root", Err: ErrRootNotFound}
		}
		dir = parent
	}
}

// Goal is a goal file read once, with the fingerprint recorded on the
// execution so that a resumed run can tell whether the goal was edited.
type Goal struct {
	Path string
	Text string
	// Hash is the hex SHA-256 of the raw file bytes.
	Hash string
}

// LoadGoal reads the goal file at path. Any read failure is a
// ValidationError.
func LoadGoal(path string) (Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Goal{}, &ValidationError{Path: path, Reason: "unreadable goal file", Err: err}
	}
	sum := sha256.Sum256(data)
	return Goal{Path: path, Text: string(data), Hash: hex.EncodeToString(sum[:])}, nil
}

// ReadGoal returns the content of the goal file.
func ReadGoal(path string) (string, error) {
	g, err := LoadGoal(path)
	return g.Text, err
}
