package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// extractObject returns the first balanced {...} span in text, or everything
// from the first brace when the object is truncated.
func extractObject(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return text[start:], true
}

// DecodeJSON decodes the first JSON object in a model answer into v. Answers
// wrapped in prose or code fences, or with trailing commas, single quotes or a
// missing closing brace, are repaired before decoding.
func DecodeJSON(text string, v interface{}) error {
	obj, ok := extractObject(StripFences(text))
	if !ok {
		return ErrNoJSON
	}
	if err := json.Unmarshal([]byte(obj), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(obj)
	if err != nil {
		return fmt.Errorf("failed to repair model JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("failed to decode model JSON: %w", err)
	}
	return nil
}
