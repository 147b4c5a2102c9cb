package contextfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_CreatesFileWithHeader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "nested", "deep", "context.md")

	require.NoError(t, Init(filePath))

	content, err := os.ReadFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, Header, string(content))
	assert.Empty(t, Body(filePath))
}

func TestAppend(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "context.md")

	require.NoError(t, Append(filePath, "Build", "tests are flaky on CI"))
	require.NoError(t, Append(filePath, "", "second note"))

	content := Read(filePath)
	assert.True(t, strings.HasPrefix(content, Header))
	assert.Contains(t, content, "## Context added at ")
	assert.Contains(t, content, "Build\n\ntests are flaky on CI\n")
	assert.Contains(t, content, "second note")
	assert.Equal(t, 1, strings.Count(content, "# Newton Loop Context"))

	body := Body(filePath)
	assert.NotContains(t, body, "# Newton Loop Context")
	assert.Contains(t, body, "second note")
}

func TestAppend_EmptyMessageIsNoop(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "context.md")

	require.NoError(t, Append(filePath, "title", ""))

	_, err := os.Stat(filePath)
	assert.True(t, os.IsNotExist(err))
}

func TestClear_ResetsToHeader(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "context.md")
	require.NoError(t, Append(filePath, "t", "m"))

	require.NoError(t, Clear(filePath))

	assert.Equal(t, Header, Read(filePath))
}

func TestRead_MissingFile(t *testing.T) {
	assert.Equal(t, "", Read(filepath.Join(t.TempDir(), "missing.md")))
	assert.Equal(t, "", Body(filepath.Join(t.TempDir(), "missing.md")))
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"default", "", filepath.Join("/ws", ".newton", "state", "context.md")},
		{"relative", "notes/ctx.md", filepath.Join("/ws", "notes", "ctx.md")},
		{"absolute", "/tmp/ctx.md", "/tmp/ctx.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve("/ws", tt.path))
		})
	}
}
