// Package control reads the control file the evaluator writes to declare
// whether the goal has been reached.
package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gonewton/newton/internal/domain"
)

// DefaultFileName is used when no control_file is configured.
const DefaultFileName = "newton_control.json"

// Signal is the decoded control file. Fields other than these are ignored.
type Signal struct {
	Done     bool           `json:"done"`
	Message  string         `json:"message,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ParseError reports a control file that exists but cannot be used.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid control file %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ErrorCategory reports Validation; a broken control file is a malformed
// workspace artifact.
func (e *ParseError) ErrorCategory() domain.ErrorCategory {
	return domain.CategoryValidation
}

var errMissingDone = errors.New(`required field "done" is missing`)

// Read loads the control file at path. A missing file returns (nil, nil).
func Read(path string) (*Signal, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read control file: %w", err)
	}

	var raw struct {
		Done     *bool          `json:"done"`
		Message  string         `json:"message"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	if raw.Done == nil {
		return nil, &ParseError{Path: path, Err: errMissingDone}
	}
	return &Signal{Done: *raw.Done, Message: raw.Message, Metadata: raw.Metadata}, nil
}

// Done reports whether the control file at path says the goal is reached.
// A missing file is "not done"; a malformed one is an error.
func Done(path string) (bool, error) {
	sig, err := Read(path)
	if err != nil || sig == nil {
		return false, err
	}
	return sig.Done, nil
}

// Succeeded is the batch gate: only a readable file with done=true counts.
// Absent and unparsable files are both failure.
func Succeeded(path string) bool {
	done, err := Done(path)
	return err == nil && done
}

// Write stores sig at path, creating parent directories.
func Write(path string, sig Signal) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create control dir: %w", err)
	}
	data, err := json.MarshalIndent(sig, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal control file: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve returns the control file path for name inside dir. Absolute
// names are used as-is.
func Resolve(dir, name string) string {
	if name == "" {
		name = DefaultFileName
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
