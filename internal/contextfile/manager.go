// Package contextfile manages the markdown file that carries notes between
// iterations and into the executor prompt.
package contextfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Header starts every context file.
const Header = "# Newton Loop Context\n\n"

// DefaultPath is the context file location relative to the workspace.
var DefaultPath = filepath.Join(".newton", "state", "context.md")

// Resolve returns path made absolute against the workspace. Empty means
// DefaultPath.
func Resolve(workspace, path string) string {
	if path == "" {
		path = DefaultPath
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workspace, path)
}

// Init writes a fresh context file holding only the header.
// Creates parent directories if needed.
func Init(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.WriteFile(filePath, []byte(Header), 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}
	return nil
}

// Clear resets the file to its header.
func Clear(filePath string) error {
	return Init(filePath)
}

// Append adds a timestamped entry, creating the file with its header first
// when it does not exist. Empty messages are ignored.
func Append(filePath, title, message string) error {
	if message == "" {
		return nil
	}
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := Init(filePath); err != nil {
			return err
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Context added at %s\n", time.Now().UTC().Format(time.RFC3339))
	if title != "" {
		b.WriteString(title + "\n")
	}
	b.WriteString("\n" + message + "\n\n")

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open context file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("failed to append context: %w", err)
	}
	return nil
}

// Read returns the whole file, or "" if it doesn't exist.
func Read(filePath string) string {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return ""
	}
	return string(content)
}

// Body returns the file content without the header. A file holding only
// the header has an empty body.
func Body(filePath string) string {
	content := strings.TrimPrefix(Read(filePath), Header)
	content = strings.TrimPrefix(content, strings.TrimSpace(Header))
	return strings.TrimSpace(content)
}
