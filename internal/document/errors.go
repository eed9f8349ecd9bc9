package document

import (
	"errors"
	"fmt"
)

// StructuralError is returned when a candidate is not a keyed structure at all.
// It is the only input the normalizer refuses to repair.
type StructuralError struct {
	// Got describes the JSON shape that was received instead of an object
	Got string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("document must be a JSON object, got %s", e.Got)
}

// IsStructural reports whether err is (or wraps) a StructuralError
func IsStructural(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

func structuralError(v any) error {
	return &StructuralError{Got: shapeOf(v)}
}

func shapeOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "array"
	case map[string]any:
		return "object"
	default:
		if _, ok := asFloat(v); ok {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}
