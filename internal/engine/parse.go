package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// StripCodeFences removes one enclosing ``` fence (with optional language
// tag) from text. Text without a leading fence is only trimmed.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl != -1 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// decodeJSON decodes a JSON object from a model response, tolerating code
// fences and prose around the object.
func decodeJSON(text string, out any) error {
	body := StripCodeFences(text)
	if err := json.Unmarshal([]byte(body), out); err == nil {
		return nil
	}

	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}
	if err := json.Unmarshal([]byte(body[start:end+1]), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
