package logging_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gonewton/newton/internal/logging"
)

func init() {
	// Disable color output in tests so assertions match plain text.
	color.NoColor = true
}

// capture redirects log output into buffers for the duration of fn.
func capture(t *testing.T, fn func()) (string, string) {
	t.Helper()

	var out, errOut bytes.Buffer
	logging.SetOutput(&out, &errOut)
	defer logging.ResetOutput()

	fn()
	return out.String(), errOut.String()
}

// ---------------------------------------------------------------------------
// FormatDuration tests
// ---------------------------------------------------------------------------

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{1500 * time.Millisecond, "1s"},
		{90 * time.Second, "1m 30s"},
		{3661 * time.Second, "1h 1m 1s"},
		{2 * time.Hour, "2h 0m 0s"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, logging.FormatDuration(tt.d))
		})
	}
}

// ---------------------------------------------------------------------------
// Log output tests
// ---------------------------------------------------------------------------

func TestLevels(t *testing.T) {
	tests := []struct {
		name     string
		log      func(string)
		prefix   string
		toStderr bool
	}{
		{"info", logging.Info, "[INFO]", false},
		{"success", logging.Success, "[SUCCESS]", false},
		{"warn", logging.Warn, "[WARN]", false},
		{"error", logging.Error, "[ERROR]", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := capture(t, func() { tt.log("message " + tt.name) })

			target, other := out, errOut
			if tt.toStderr {
				target, other = errOut, out
			}
			assert.Contains(t, target, tt.prefix+" message "+tt.name)
			assert.Empty(t, other)
		})
	}
}

func TestPhaseHasSeparators(t *testing.T) {
	out, _ := capture(t, func() {
		logging.Phase("Iteration 1")
	})
	assert.Contains(t, out, "[PHASE] Iteration 1")
	assert.Contains(t, out, "━━━━")
}

func TestDebugSuppressedWhenNotVerbose(t *testing.T) {
	logging.SetVerbose(false)
	out, _ := capture(t, func() {
		logging.Debug("hidden")
	})
	assert.Empty(t, out)
}

func TestDebugShownWhenVerbose(t *testing.T) {
	logging.SetVerbose(true)
	defer logging.SetVerbose(false)

	out, _ := capture(t, func() {
		logging.Debug("visible")
	})
	assert.Contains(t, out, "[DEBUG] visible")
}

func TestToolOutput(t *testing.T) {
	logging.SetVerbose(false)
	out, _ := capture(t, func() {
		logging.ToolOutput("evaluator", "score=1\n", "")
	})
	assert.Empty(t, out)

	logging.SetVerbose(true)
	defer logging.SetVerbose(false)

	out, _ = capture(t, func() {
		logging.ToolOutput("evaluator", "score=1\n", "warning: slow\n")
	})
	assert.Contains(t, out, "=== Evaluator Output ===\nscore=1\n")
	assert.Contains(t, out, "--- stderr ---\nwarning: slow\n")
	assert.Contains(t, out, "=== End Evaluator Output ===")
}
