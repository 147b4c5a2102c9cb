package control

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonewton/newton/internal/domain"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name     string
		content  *string
		wantNil  bool
		wantDone bool
		wantMsg  string
		wantErr  bool
	}{
		{name: "missing file", wantNil: true},
		{name: "done true", content: ptr(`{"done": true, "message": "goal met"}`), wantDone: true, wantMsg: "goal met"},
		{name: "done false", content: ptr(`{"done": false}`)},
		{name: "extra fields ignored", content: ptr(`{"done": true, "score": 99, "notes": ["a"]}`), wantDone: true},
		{name: "invalid json", content: ptr(`{done: yes`), wantErr: true},
		{name: "missing done", content: ptr(`{"message": "hi"}`), wantErr: true},
		{name: "empty file", content: ptr(``), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), DefaultFileName)
			if tt.content != nil {
				require.NoError(t, os.WriteFile(path, []byte(*tt.content), 0644))
			}

			sig, err := Read(path)
			if tt.wantErr {
				var pe *ParseError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, domain.CategoryValidation, pe.ErrorCategory())
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, sig)
				return
			}
			require.NotNil(t, sig)
			assert.Equal(t, tt.wantDone, sig.Done)
			assert.Equal(t, tt.wantMsg, sig.Message)
		})
	}
}

func TestSucceeded(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.json")
	assert.False(t, Succeeded(missing))

	notDone := filepath.Join(dir, "not_done.json")
	require.NoError(t, Write(notDone, Signal{Done: false}))
	assert.False(t, Succeeded(notDone))

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("nope"), 0644))
	assert.False(t, Succeeded(broken))

	done := filepath.Join(dir, "nested", "done.json")
	require.NoError(t, Write(done, Signal{Done: true, Metadata: map[string]any{"k": "v"}}))
	assert.True(t, Succeeded(done))

	sig, err := Read(done)
	require.NoError(t, err)
	assert.Equal(t, "v", sig.Metadata["k"])
}

func TestResolve(t *testing.T) {
	assert.Equal(t, filepath.Join("/state", DefaultFileName), Resolve("/state", ""))
	assert.Equal(t, filepath.Join("/state", "ctl.json"), Resolve("/state", "ctl.json"))
	assert.Equal(t, "/abs/ctl.json", Resolve("/state", "/abs/ctl.json"))
}

func ptr(s string) *string { return &s }
