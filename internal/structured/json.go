// Package structured turns model output into validated quiz and flashcard payloads.
package structured

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

var errNoJSON = errors.New("no JSON object found in response")

// stripFences returns the body of the first Markdown code fence, or the
// trimmed input when there is none.
func stripFences(raw string) string {
	if m := fencePattern.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// extractObject returns the JSON object in raw: the whole (unfenced) text when
// it parses, otherwise the first balanced {...} span.
func extractObject(raw string) ([]byte, error) {
	text := stripFences(raw)
	if json.Valid([]byte(text)) && strings.HasPrefix(text, "{") {
		return []byte(text), nil
	}
	span, ok := firstBalancedObject(text)
	if !ok {
		// the fence may have hidden the object; scan the original text too
		if span, ok = firstBalancedObject(raw); !ok {
			return nil, errNoJSON
		}
	}
	if !json.Valid([]byte(span)) {
		return nil, errNoJSON
	}
	return []byte(span), nil
}

// firstBalancedObject scans for the first '{' and returns the text up to its
// matching '}', skipping braces inside string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// decodeItems pulls the named array out of a JSON object, keeping each element raw.
func decodeItems(obj []byte, field string) (title, description string, items []json.RawMessage, err error) {
	var top map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(obj))
	if err := dec.Decode(&top); err != nil {
		return "", "", nil, err
	}
	title = rawString(top["title"])
	description = rawString(top["description"])
	if arr, ok := top[field]; ok {
		if err := json.Unmarshal(arr, &items); err != nil {
			return title, description, nil, err
		}
	}
	return title, description, items, nil
}

func rawString(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return strings.TrimSpace(s)
}
