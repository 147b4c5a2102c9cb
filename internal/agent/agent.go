// Package agent sanity-checks the coding agent and model a batch project
// hands to its scripts. Newton never runs the agent itself, so a mismatch
// is only worth a warning.
package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// Known coding agents.
const (
	Claude = "claude"
	Codex  = "codex"
)

// codexModelRe matches OpenAI-family model prefixes: o1, o3, gpt-*, etc.
var codexModelRe = regexp.MustCompile(`^(o[0-9]|gpt|chatgpt|text|ft|gpt4)`)

// claudeModelHints are lower-cased prefixes of Claude models.
var claudeModelHints = []string{"opus", "sonnet", "haiku", "claude-"}

// Known reports whether name is one of the agents Newton recognises.
func Known(name string) bool {
	switch strings.ToLower(name) {
	case Claude, Codex:
		return true
	default:
		return false
	}
}

// CheckModel reports a model that plainly belongs to the other agent
// family. Empty models and unknown agents or models pass.
func CheckModel(agentName, model string) error {
	if model == "" {
		return nil
	}
	a := strings.ToLower(agentName)
	lower := strings.ToLower(model)

	switch {
	case a == Claude && lower == "default":
		return fmt.Errorf("coding_model %q is not compatible with coding_agent=%s (\"default\" is a codex model)", model, agentName)
	case a == Codex && IsClaudeModelHint(model):
		return fmt.Errorf("coding_model %q looks like a claude model but coding_agent=%s", model, agentName)
	case a == Claude && IsCodexModelHint(model):
		return fmt.Errorf("coding_model %q looks like a codex/openai model but coding_agent=%s", model, agentName)
	}
	return nil
}

// Warnings returns human-readable problems with an agent/model pair.
func Warnings(agentName, model string) []string {
	var out []string
	if agentName != "" && !Known(agentName) {
		out = append(out, fmt.Sprintf("coding_agent %q is not a known agent (%s, %s)", agentName, Claude, Codex))
	}
	if err := CheckModel(agentName, model); err != nil {
		out = append(out, err.Error())
	}
	return out
}

// IsClaudeModelHint returns true when model appears to target a Claude
// backend (opus, sonnet, haiku, or claude-* prefix).
func IsClaudeModelHint(model string) bool {
	lower := strings.ToLower(model)
	for _, hint := range claudeModelHints {
		if strings.HasPrefix(lower, hint) {
			return true
		}
	}
	return false
}

// IsCodexModelHint returns true when model appears to target an
// OpenAI / Codex backend (default, o1, o3, gpt-*, chatgpt-*, etc.).
func IsCodexModelHint(model string) bool {
	lower := strings.ToLower(model)
	if lower == "default" {
		return true
	}
	return codexModelRe.MatchString(lower)
}
