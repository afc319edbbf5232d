// output.go parses Claude JSON output from completed invocations.
package claude

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Output holds the parsed result from a Claude CLI invocation
// using --output-format json.
type Output struct {
	Result     string  `json:"result"`
	CostUSD    float64 `json:"cost_usd"`
	DurationMS int64   `json:"duration_ms"`
	SessionID  string  `json:"session_id"`
	IsError    bool    `json:"is_error"`
}

// rawOutput is the full JSON envelope returned by Claude CLI
// with --output-format json.
type rawOutput struct {
	Type       string  `json:"type"`
	Subtype    string  `json:"subtype"`
	Result     string  `json:"result"`
	CostUSD    float64 `json:"cost_usd"`
	DurationMS int64   `json:"duration_ms"`
	SessionID  string  `json:"session_id"`
	IsError    bool    `json:"is_error"`
	NumTurns   int     `json:"num_turns"`
}

// ParseOutput parses the raw JSON bytes from Claude's
// --output-format json response into an Output.
func ParseOutput(raw []byte) (*Output, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty claude output")
	}

	var out rawOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parsing claude output: %w", err)
	}

	if out.Type != "result" {
		return nil, fmt.Errorf("unexpected claude output type: %q (expected \"result\")", out.Type)
	}

	return &Output{
		Result:     out.Result,
		CostUSD:    out.CostUSD,
		DurationMS: out.DurationMS,
		SessionID:  out.SessionID,
		IsError:    out.IsError,
	}, nil
}

// CleanJSON extracts JSON from Claude's output, handling cases where
// the model includes explanatory text before/after the JSON or wraps it in
// markdown code fences.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)

	// Fences only count when the text does not already start as JSON, so
	// fences embedded in string values survive.
	if !strings.HasPrefix(s, "{") {
		if idx := strings.Index(s, "```json"); idx != -1 {
			s = s[idx+7:]
			if endIdx := strings.Index(s, "```"); endIdx != -1 {
				s = s[:endIdx]
			}
			return strings.TrimSpace(s)
		}
		if idx := strings.Index(s, "```"); idx != -1 {
			s = s[idx+3:]
			// Skip optional language identifier on same line.
			if nlIdx := strings.Index(s, "\n"); nlIdx != -1 && nlIdx < 20 {
				s = s[nlIdx+1:]
			}
			if endIdx := strings.Index(s, "```"); endIdx != -1 {
				s = s[:endIdx]
			}
			return strings.TrimSpace(s)
		}
	}

	// Look for '{"' to avoid matching braces in prose like "{see below}".
	start := strings.Index(s, `{"`)
	if start == -1 {
		start = strings.Index(s, "{")
	}
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}

	return strings.TrimSpace(s)
}
