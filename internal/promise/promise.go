// Package promise finds completion promises in executor output and keeps
// the last one on disk.
//
// An executor declares it believes the goal is met by printing a marker
// such as <promise>COMPLETE</promise>. The orchestrator ends the run on a
// complete promise only once the evaluator score also reaches the
// configured threshold.
package promise

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFile is the promise file used when none is configured, relative
// to the workspace.
const DefaultFile = ".newton/state/promise.txt"

// DefaultScoreThreshold is the minimum evaluator score a complete promise
// needs to stop the run.
const DefaultScoreThreshold = 95.0

const (
	openTag  = "<promise>"
	closeTag = "</promise>"
)

// Detect returns the first complete promise value in output. Incomplete
// and unterminated markers are skipped.
func Detect(output string) (string, bool) {
	rest := output
	for {
		start := strings.Index(rest, openTag)
		if start < 0 {
			return "", false
		}
		rest = rest[start+len(openTag):]
		end := strings.Index(rest, closeTag)
		if end < 0 {
			return "", false
		}
		value := strings.TrimSpace(rest[:end])
		if IsComplete(value) {
			return value, true
		}
		rest = rest[end+len(closeTag):]
	}
}

// IsComplete reports whether value declares completion. "INCOMPLETE" and
// similar negations do not count.
func IsComplete(value string) bool {
	v := strings.ToLower(value)
	return strings.Contains(v, "complete") && !strings.Contains(v, "incomplete")
}

// Met reports whether a complete promise together with score ends the run.
// A missing score never does.
func Met(value string, score *float64, threshold float64) bool {
	return IsComplete(value) && score != nil && *score >= threshold
}

// Write stores value at path, creating parent directories.
func Write(path, value string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create promise dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(value), 0644); err != nil {
		return fmt.Errorf("write promise file %s: %w", path, err)
	}
	return nil
}

// Read returns the stored promise. A missing file reads as "".
func Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read promise file %s: %w", path, err)
	}
	return string(data), nil
}

// Resolve returns the promise file for name inside workspace. Absolute
// names are used as-is.
func Resolve(workspace, name string) string {
	if name == "" {
		name = DefaultFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(workspace, name)
}
