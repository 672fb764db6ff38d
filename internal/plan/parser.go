package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Parse recovers a Plan from raw model output. The reply may be pure JSON,
// JSON inside a fenced code block, or JSON surrounded by prose. On any
// unrecoverable shape the error is returned so the caller can degrade to
// Fallback.
func Parse(raw string) (Plan, error) {
	trimmed := stripFences(raw)

	if strings.HasPrefix(strings.TrimSpace(trimmed), "{") {
		if p, err := parseObject(strings.TrimSpace(trimmed)); err == nil {
			return p, nil
		}
	}

	// Second chance: the first balanced object anywhere in the original
	// unfenced text.
	start := strings.IndexByte(raw, '{')
	if start == -1 {
		return Plan{}, fmt.Errorf("no JSON object in reply")
	}
	return parseObject(raw[start:])
}

func parseObject(text string) (Plan, error) {
	obj, ok := balancedObject(text)
	if !ok {
		return Plan{}, fmt.Errorf("no balanced JSON object in reply")
	}
	var p Plan
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// balancedObject returns the substring from the first '{' to its matching
// close brace, tracking string-quote state and escape characters so braces
// inside string values do not unbalance the scan.
func balancedObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// stripFences removes a leading and trailing markdown fence marker,
// including an optional language tag on the opening fence.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		firstLine := strings.TrimSpace(s[:idx])
		// Drop a language tag like "json" on the fence line.
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, "{}") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
