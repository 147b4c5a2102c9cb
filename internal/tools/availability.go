package tools

import (
	"os/exec"
	"path/filepath"
)

// CheckAvailability reports, for each named program, whether it can be
// found in PATH.
func CheckAvailability(programs ...string) map[string]bool {
	result := make(map[string]bool, len(programs))
	for _, p := range programs {
		_, err := exec.LookPath(p)
		result[p] = err == nil
	}
	return result
}

// Resolvable reports whether the program of a tool command line exists.
// Relative program paths are resolved against workDir.
func Resolvable(command, workDir string) bool {
	argv := ParseCommand(command)
	if len(argv) == 0 {
		return false
	}
	program := argv[0]
	if filepath.Base(program) != program && !filepath.IsAbs(program) && workDir != "" {
		program = filepath.Join(workDir, program)
	}
	_, err := exec.LookPath(program)
	return err == nil
}
