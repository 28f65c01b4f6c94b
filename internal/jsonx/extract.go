// Package jsonx extracts JSON documents from model responses.
//
// Models often wrap JSON in markdown fences or surround it with prose.
// These helpers locate and parse the embedded document.
package jsonx

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Extract returns the JSON object embedded in a model response.
//
// Handles the common response shapes: a bare JSON document, a document
// inside a ```json fence, and an object surrounded by commentary (located
// by first '{' and last '}'). Arrays and brace-in-string edge cases are
// out of scope; callers needing those should request stricter output.
func Extract(response string) (string, error) {
	response = stripFences(response)

	var probe interface{}
	if err := json.Unmarshal([]byte(response), &probe); err == nil {
		return response, nil
	}

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		candidate := response[start : end+1]
		if err := json.Unmarshal([]byte(candidate), &probe); err == nil {
			return candidate, nil
		}
	}

	preview := response
	if len(preview) > 100 {
		preview = preview[:100] + "..."
	}
	return "", fmt.Errorf("no valid JSON in response: %q", preview)
}

// Parse extracts the embedded JSON object and unmarshals it into T.
func Parse[T any](response string) (T, error) {
	var result T
	doc, err := Extract(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(doc), &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return result, nil
}

// stripFences removes markdown code fence markers around a response.
func stripFences(response string) string {
	trimmed := strings.TrimSpace(response)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}
	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}
