package schematic

import "fmt"

// Fragment is one structured data blob bound to a schematic kind, produced
// by descriptor parsing and consumed when applied to an entity.
type Fragment struct {
	Type   TypeID
	Fields map[string]any
}

// Field accessors for decode functions. YAML and script bridges hand fields
// over as loosely typed values; these normalize the numeric representations
// a decode function actually meets.

func FieldInt(f Fragment, name string) (int, error) {
	v, ok := f.Fields[name]
	if !ok {
		return 0, fmt.Errorf("field %q missing", name)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n == float64(int(n)) {
			return int(n), nil
		}
		return 0, fmt.Errorf("field %q: %v is not an integer", name, n)
	default:
		return 0, fmt.Errorf("field %q: expected integer, got %T", name, v)
	}
}

func FieldIntOr(f Fragment, name string, def int) (int, error) {
	if _, ok := f.Fields[name]; !ok {
		return def, nil
	}
	return FieldInt(f, name)
}

func FieldFloat(f Fragment, name string) (float64, error) {
	v, ok := f.Fields[name]
	if !ok {
		return 0, fmt.Errorf("field %q missing", name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("field %q: expected number, got %T", name, v)
	}
}

func FieldString(f Fragment, name string) (string, error) {
	v, ok := f.Fields[name]
	if !ok {
		return "", fmt.Errorf("field %q missing", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q: expected string, got %T", name, v)
	}
	return s, nil
}

func FieldStringOr(f Fragment, name, def string) (string, error) {
	if _, ok := f.Fields[name]; !ok {
		return def, nil
	}
	return FieldString(f, name)
}

func FieldBool(f Fragment, name string) (bool, error) {
	v, ok := f.Fields[name]
	if !ok {
		return false, fmt.Errorf("field %q missing", name)
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q: expected bool, got %T", name, v)
	}
	return b, nil
}
