package util

import (
	"errors"
	"strings"
)

// ExtractJSONObject returns the outermost {...} object in s, dropping any
// markdown code fences or prose an LLM wrapped around it.
func ExtractJSONObject(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", errors.New("no JSON object found")
	}
	return s[start : end+1], nil
}
