package marquee

import (
	"strconv"
	"strings"
)

// Lookup walks a decoded JSON document using dot notation.
//
// Object keys are matched exactly; a segment that parses as a non-negative
// integer indexes into an array. For example "properties.periods.0.temperature"
// reads {"properties": {"periods": [{"temperature": 71}]}}.
//
// The empty path returns doc itself. ok is false if any segment is missing,
// out of range, or applied to the wrong kind of value.
func Lookup(doc any, path string) (any, bool) {
	if path == "" {
		return doc, true
	}

	current := doc
	for _, part := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[part]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(v) {
				return nil, false
			}
			current = v[i]
		default:
			return nil, false
		}
	}
	return current, true
}

// LookupString returns the string at path.
// Numbers and booleans are formatted; null and containers are not strings.
func LookupString(doc any, path string) (string, bool) {
	v, ok := Lookup(doc, path)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	default:
		return "", false
	}
}

// LookupFloat returns the number at path.
// Numeric strings are parsed, since some APIs quote their numbers.
func LookupFloat(doc any, path string) (float64, bool) {
	v, ok := Lookup(doc, path)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// LookupSlice returns the array at path.
func LookupSlice(doc any, path string) ([]any, bool) {
	v, ok := Lookup(doc, path)
	if !ok {
		return nil, false
	}
	s, ok := v.([]any)
	return s, ok
}

// Lookup is shorthand for [Lookup] on the snapshot's document.
func (s Snapshot) Lookup(path string) (any, bool) {
	return Lookup(s.Document, path)
}
