package suggest

import (
	"strings"

	"github.com/tidwall/gjson"
)

// ParseSuggestions extracts a list of address strings from free-form
// model output. The payload is expected to be a JSON array of strings,
// optionally wrapped in a fenced code block. Anything else (prose,
// JSON objects, empty output) yields nil: malformed output is
// recovered as the empty list, never an error.
func ParseSuggestions(text string) []string {
	text = stripCodeFence(text)
	if text == "" || !gjson.Valid(text) {
		return nil
	}

	result := gjson.Parse(text)
	if !result.IsArray() {
		return nil
	}

	var suggestions []string
	result.ForEach(func(_, value gjson.Result) bool {
		// Skip non-string entries (nulls, numbers, nested values)
		if value.Type == gjson.String {
			suggestions = append(suggestions, value.String())
		}
		return true
	})

	return suggestions
}

// stripCodeFence removes a surrounding ``` or ```json fence
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
