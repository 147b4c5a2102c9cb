// Package logging provides colored, leveled log output for the newton CLI.
//
// All output functions write a prefixed, color-coded line. Debug output and
// captured tool streams are suppressed unless verbose mode is enabled via
// SetVerbose(true).
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	mu      sync.Mutex
	verbose bool
	stdout  io.Writer = os.Stdout
	stderr  io.Writer = os.Stderr
)

// Color printers for each log level.
var (
	infoPrefix    = color.New(color.FgBlue).SprintFunc()
	successPrefix = color.New(color.FgGreen).SprintFunc()
	warnPrefix    = color.New(color.FgYellow).SprintFunc()
	errorPrefix   = color.New(color.FgRed).SprintFunc()
	phasePrefix   = color.New(color.FgCyan).SprintFunc()
	debugPrefix   = color.New(color.FgBlue).SprintFunc()
	toolPrefix    = color.New(color.FgMagenta).SprintFunc()
)

// SetVerbose enables or disables Debug and ToolOutput.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// Verbose reports whether verbose mode is on.
func Verbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects log output. Nil leaves the current writer in place.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// ResetOutput restores os.Stdout and os.Stderr.
func ResetOutput() {
	mu.Lock()
	defer mu.Unlock()
	stdout = os.Stdout
	stderr = os.Stderr
}

func writeLine(w func() io.Writer, line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(w(), line)
}

func out() io.Writer    { return stdout }
func errOut() io.Writer { return stderr }

// Info prints an informational message to stdout in blue.
func Info(msg string) {
	writeLine(out, infoPrefix("[INFO]")+" "+msg)
}

// Success prints a success message to stdout in green.
func Success(msg string) {
	writeLine(out, successPrefix("[SUCCESS]")+" "+msg)
}

// Warn prints a warning message to stdout in yellow.
func Warn(msg string) {
	writeLine(out, warnPrefix("[WARN]")+" "+msg)
}

// Error prints an error message to stderr in red.
func Error(msg string) {
	writeLine(errOut, errorPrefix("[ERROR]")+" "+msg)
}

// Phase prints a phase header to stdout in cyan, surrounded by separator lines.
func Phase(msg string) {
	sep := phasePrefix("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(stdout, sep)
	fmt.Fprintln(stdout, phasePrefix("[PHASE]")+" "+msg)
	fmt.Fprintln(stdout, sep)
}

// Debug prints a debug message to stdout in blue, only when verbose mode is enabled.
func Debug(msg string) {
	if !Verbose() {
		return
	}
	writeLine(out, debugPrefix("[DEBUG]")+" "+msg)
}

// ToolOutput prints the captured streams of a tool in verbose mode.
//
// Example output for ToolOutput("evaluator", "score=12\n", ""):
//
//	=== Evaluator Output ===
//	score=12
//	=== End Evaluator Output ===
func ToolOutput(tool, toolStdout, toolStderr string) {
	if !Verbose() {
		return
	}
	name := tool
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}

	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(stdout, toolPrefix(fmt.Sprintf("=== %s Output ===", name)))
	if s := strings.TrimRight(toolStdout, "\n"); s != "" {
		fmt.Fprintln(stdout, s)
	}
	if s := strings.TrimRight(toolStderr, "\n"); s != "" {
		fmt.Fprintln(stdout, toolPrefix("--- stderr ---"))
		fmt.Fprintln(stdout, s)
	}
	fmt.Fprintln(stdout, toolPrefix(fmt.Sprintf("=== End %s Output ===", name)))
}

// FormatDuration converts a duration to a human-readable string, truncated
// to whole seconds.
//
// Examples:
//
//	FormatDuration(0)                => "0s"
//	FormatDuration(45 * time.Second) => "45s"
//	FormatDuration(90 * time.Second) => "1m 30s"
//	FormatDuration(3661 * time.Second) => "1h 1m 1s"
//	FormatDuration(2 * time.Hour)    => "2h 0m 0s"
func FormatDuration(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	if seconds < 3600 {
		m := seconds / 60
		s := seconds % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}
