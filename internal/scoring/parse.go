package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ParsePayload decodes the JSON value carried by model output. The text is
// parsed as-is after removing code fences; if that fails, the first balanced
// object found in it is parsed instead.
func ParsePayload(text string) (any, error) {
	cleaned := stripFences(text)
	if cleaned == "" {
		return nil, errors.New("scoring response is empty")
	}

	var data any
	parseErr := json.Unmarshal([]byte(cleaned), &data)
	if parseErr == nil {
		return data, nil
	}

	object, ok := firstObject(cleaned)
	if !ok {
		return nil, fmt.Errorf("parse scoring response: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(object), &data); err != nil {
		return nil, fmt.Errorf("parse extracted scoring object: %w", err)
	}
	return data, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = raw[len("```"):]
		// Drop a language tag such as "json" on the opening line.
		if nl := strings.IndexByte(raw, '\n'); nl != -1 && !strings.ContainsAny(raw[:nl], "{[") {
			raw = raw[nl+1:]
		}
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// firstObject returns the first {...} span whose braces balance, ignoring
// braces inside JSON strings.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start == -1 {
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
