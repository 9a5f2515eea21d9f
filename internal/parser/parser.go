// Package parser recovers a single JSON object from LLM free text. Models
// frequently wrap JSON replies in markdown code fences or surrounding prose;
// this package strips both before handing the payload to encoding/json. It
// performs no schema validation; that is the calling stage's responsibility.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedOutput is returned when no parseable JSON object can be
// recovered from the model's reply. It indicates a prompt/schema mismatch
// rather than a transport failure.
var ErrMalformedOutput = errors.New("model output contains no parseable JSON object")

// Extract returns the raw bytes of the first JSON object found in text.
// It first strips markdown code fences; if the remainder is not valid JSON
// it falls back to the span from the first '{' to the last '}'.
func Extract(text string) ([]byte, error) {
	cleaned := stripFences(text)

	if json.Valid([]byte(cleaned)) && strings.HasPrefix(cleaned, "{") {
		return []byte(cleaned), nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("%w: %s", ErrMalformedOutput, preview(text))
	}

	span := cleaned[start : end+1]
	if !json.Valid([]byte(span)) {
		return nil, fmt.Errorf("%w: %s", ErrMalformedOutput, preview(text))
	}

	return []byte(span), nil
}

// Decode extracts the JSON object from text and unmarshals it into v.
func Decode(text string, v any) error {
	raw, err := Extract(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return nil
}

// stripFences removes leading/trailing markdown code-fence markers.
func stripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}
	return cleaned
}

// preview truncates model output for error messages so logs stay readable.
// Truncation is rune-based so multibyte output never ends mid-character.
func preview(text string) string {
	text = strings.TrimSpace(text)
	if runes := []rune(text); len(runes) > 120 {
		return string(runes[:120]) + "..."
	}
	return text
}
