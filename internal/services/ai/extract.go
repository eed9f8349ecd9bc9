package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSONObject finds the outermost JSON object in model output. Models
// wrap JSON in prose or code fences, so everything from the first "{" to the
// last "}" is tried before giving up.
func ExtractJSONObject(raw string) (map[string]any, error) {
	v, err := extract(raw, "{", "}")
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an object", ErrNoJSON)
	}
	return obj, nil
}

// ExtractJSONArray finds the outermost JSON array in model output
func ExtractJSONArray(raw string) ([]any, error) {
	v, err := extract(raw, "[", "]")
	if err != nil {
		return nil, err
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected an array", ErrNoJSON)
	}
	return arr, nil
}

func extract(raw, open, closing string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrNoJSON
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil && strings.HasPrefix(raw, open) {
		return v, nil
	}

	start := strings.Index(raw, open)
	end := strings.LastIndex(raw, closing)
	if start == -1 || end == -1 || end < start {
		return nil, ErrNoJSON
	}
	var inner any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &inner); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoJSON, err)
	}
	return inner, nil
}
