package prompt

import _ "embed"

// Template files embedded at compile time
var (
	//go:embed templates/executor.md
	ExecutorTemplate string

	//go:embed templates/recommendations-section.md
	RecommendationsSection string

	//go:embed templates/context-section.md
	ContextSection string
)
