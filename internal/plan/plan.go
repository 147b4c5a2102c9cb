// Package plan reads batch plan files: optional YAML front-matter, the
// derived task id and the git branch a task runs on.
package plan

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frontmatter is the optional YAML block at the top of a plan file.
type Frontmatter struct {
	Branch string `yaml:"branch"`
	Title  string `yaml:"title"`
}

// Plan is one queued work item.
type Plan struct {
	Path        string
	TaskID      string
	Frontmatter Frontmatter
	Body        []byte
	// FrontmatterErr is set when the front-matter block did not parse. The
	// plan is still usable with default metadata.
	FrontmatterErr error
}

// Load reads the plan at path. Only a read failure is an error.
func Load(path string) (*Plan, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	p := &Plan{
		Path:   path,
		TaskID: SanitizeTaskID(filepath.Base(path)),
		Body:   content,
	}
	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		p.FrontmatterErr = fmt.Errorf("parse front-matter of %s: %w", path, err)
		return p, nil
	}
	p.Frontmatter = *fm
	p.Body = body
	return p, nil
}

// Branch returns the branch this plan runs on.
func (p *Plan) Branch() string {
	return ResolveBranch(p.Frontmatter, p.TaskID)
}

// ParseFrontmatter extracts YAML front-matter from markdown content.
// Returns the front-matter, remaining content, and any error.
func ParseFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	// Find end of front-matter
	rest := normalized[4:]
	var fmData, remaining []byte
	switch {
	case bytes.HasPrefix(rest, []byte("---")):
		remaining = rest[3:]
	default:
		endIdx := bytes.Index(rest, []byte("\n---"))
		if endIdx == -1 {
			return &Frontmatter{}, content, nil
		}
		fmData = rest[:endIdx]
		remaining = rest[endIdx+4:] // skip \n---
	}

	var fm Frontmatter
	if err := yaml.Unmarshal(fmData, &fm); err != nil {
		return nil, nil, err
	}
	fm.Branch = strings.TrimSpace(fm.Branch)

	return &fm, bytes.TrimLeft(remaining, "\n"), nil
}

// SanitizeTaskID keeps only ASCII letters, digits, '_' and '-' from name.
// The extension dot is dropped along with everything else. An empty result
// falls back to task-<unix millis>.
func SanitizeTaskID(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("task-%d", time.Now().UnixMilli())
	}
	return b.String()
}

// ResolveBranch uses the front-matter branch verbatim when present, else
// feature/<task_id> with underscores turned into dashes.
func ResolveBranch(fm Frontmatter, taskID string) string {
	if fm.Branch != "" {
		return fm.Branch
	}
	return "feature/" + strings.ReplaceAll(taskID, "_", "-")
}
