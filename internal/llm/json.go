package llm

import (
	"encoding/json"
	"log"
	"strings"
)

// ParseJSONArray parses a JSON array response from an LLM, handling
// markdown code blocks and surrounding prose.
func ParseJSONArray(text string) []map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	// Models sometimes wrap the array in explanation text
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end <= start {
		log.Printf("No JSON array found in LLM response")
		return nil
	}

	var result []map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		log.Printf("Failed to parse LLM response as JSON array: %v", err)
		return nil
	}

	return result
}

// StringField reads a string value from a parsed response object.
func StringField(m map[string]any, key, fallback string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// IntField reads an integer value from a parsed response object. Models
// emit numbers as JSON floats, so both encodings are accepted.
func IntField(m map[string]any, key string, fallback int) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return int(i)
			}
		}
	}
	return fallback
}
