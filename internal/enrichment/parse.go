package enrichment

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// fencedBlock matches a markdown code fence, with or without a language tag.
var fencedBlock = regexp.MustCompile("(?s)\x60\x60\x60[a-zA-Z]*\\s*(.*?)\\s*\x60\x60\x60")

// decodeModelJSON parses a chat completion into T. Models often wrap JSON in
// markdown fences or surround it with prose, so both are stripped first.
func decodeModelJSON[T any](content string) (T, error) {
	var out T
	text := extractJSON(content)
	if text == "" {
		return out, fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("decode model response: %w (content: %s)", err, truncate(text, 200))
	}
	return out, nil
}

func extractJSON(content string) string {
	content = strings.TrimSpace(content)
	if m := fencedBlock.FindStringSubmatch(content); len(m) > 1 {
		content = strings.TrimSpace(m[1])
	}
	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return content
	}
	first, last := strings.Index(content, "{"), strings.LastIndex(content, "}")
	if first >= 0 && last > first {
		return content[first : last+1]
	}
	return content
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
