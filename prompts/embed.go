// Package prompts holds the prompt texts sent to Claude.
package prompts

import _ "embed"

//go:embed analyzer/system.md
var AnalyzerSystemPrompt string

//go:embed analyzer/request.md.tmpl
var AnalyzerRequestTemplate string

//go:embed planner/system.md
var PlannerSystemPrompt string

//go:embed planner/plan.md.tmpl
var PlannerTemplate string

//go:embed executor/system.md
var ExecutorSystemPrompt string

//go:embed executor/task.md.tmpl
var ExecutorTaskTemplate string
