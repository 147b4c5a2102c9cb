// Package prompt renders the executor prompt file from the goal, the
// advisor's recommendations and the shared context.
package prompt

import "strings"

// BuildExecutorPrompt constructs the executor prompt. Sections whose input
// is blank after trimming are left out entirely.
func BuildExecutorPrompt(goal, recommendations, context string) string {
	recSection := ""
	if rec := strings.TrimSpace(recommendations); rec != "" {
		recSection = strings.ReplaceAll(RecommendationsSection, "{{RECOMMENDATIONS}}", rec)
	}

	ctxSection := ""
	if ctx := strings.TrimSpace(context); ctx != "" {
		ctxSection = strings.ReplaceAll(ContextSection, "{{CONTEXT}}", ctx)
	}

	// Single pass so placeholder-like text inside the inputs is left alone.
	r := strings.NewReplacer(
		"{{GOAL}}", strings.TrimSpace(goal),
		"{{RECOMMENDATIONS_SECTION}}", recSection,
		"{{CONTEXT_SECTION}}", ctxSection,
	)
	return r.Replace(ExecutorTemplate)
}
