// Package jsonx implements JSONExtractor (spec §4.2): a tolerant parser
// that recovers a JSON object/array from free-form LLM output. Ported
// strategy-for-strategy from original_source/utils/json_parser.py,
// including its in-string/escape bracket-matching state machine.
package jsonx

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Extract recovers a JSON value from content, trying each strategy in
// order until one succeeds. content may already be a decoded value
// (map[string]any / []any), a JSON string, or free-form prose wrapping
// JSON. Returns (value, true) on success, (nil, false) otherwise —
// the "return nil" terminal case in spec §4.2.
func Extract(content any) (any, bool) {
	// Strategy 1: already structured.
	switch content.(type) {
	case map[string]any, []any:
		return content, true
	}

	text, ok := content.(string)
	if !ok {
		return nil, false
	}

	// Strategy 2: direct parse.
	if v, ok := tryUnmarshal(text); ok {
		return v, true
	}

	// Strategy 3: fenced code block.
	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		if v, ok := tryUnmarshal(m[1]); ok {
			return v, true
		}
	}

	// Strategy 4: bracket-matching scan, ignoring braces inside strings.
	if v, ok := bracketScan(text); ok {
		return v, true
	}

	// Strategy 5: heuristic question fallback.
	if v, ok := questionFallback(text); ok {
		return v, true
	}

	// Strategy 6: give up.
	return nil, false
}

func tryUnmarshal(s string) (any, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

// bracketScan finds the first '{' and advances a depth counter,
// treating characters inside JSON string literals as opaque (respecting
// backslash-escaping), returning the substring once depth returns to
// zero. Mirrors the Python original's manual scan exactly.
func bracketScan(content string) (any, bool) {
	start := strings.IndexByte(content, '{')
	if start == -1 {
		return nil, false
	}

	depth := 0
	inString := false
	escape := false

	for i := start; i < len(content); i++ {
		ch := content[i]

		switch {
		case ch == '"' && !escape:
			inString = !inString
		case ch == '\\':
			escape = !escape
		default:
			escape = false
		}

		if !inString {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := strings.TrimSpace(content[start : i+1])
					if v, ok := tryUnmarshal(candidate); ok {
						return v, true
					}
					return nil, false
				}
			}
		}
	}
	return nil, false
}

// questionFallback synthesizes a canned deep-dive-style question
// response when the text looks conversational rather than structured,
// per spec §4.2 strategy 5.
func questionFallback(content string) (any, bool) {
	lower := strings.ToLower(content)
	if !strings.Contains(lower, "question") && !strings.Contains(content, "?") {
		return nil, false
	}

	trimmed := strings.TrimSpace(content)
	lines := strings.Split(trimmed, "\n")

	question := ""
	for _, line := range lines {
		if strings.Contains(line, "?") {
			question = strings.TrimSpace(line)
			break
		}
	}
	if question == "" {
		if len(lines) > 0 {
			question = strings.TrimSpace(lines[0])
		} else {
			question = "Can you describe your symptoms?"
		}
	}

	return map[string]any{
		"question":      question,
		"question_type": "open_ended",
		"internal_analysis": map[string]any{
			"extracted": true,
		},
	}, true
}

// AsObject is a convenience wrapper for call sites that only ever want
// an object (not an array) result, covering the common case of
// analysis envelopes.
func AsObject(content any) (map[string]any, bool) {
	v, ok := Extract(content)
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}
