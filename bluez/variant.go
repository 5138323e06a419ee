package bluez

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// decode reinterprets a variant payload as T. It is a pure type check plus
// extraction: no coercion ever happens (a string never decodes as an
// integer), and a mismatch reports absence instead of failing.
func decode[T any](v dbus.Variant) (T, bool) {
	t, ok := v.Value().(T)
	return t, ok
}

// decodeStrings decodes an array-typed variant as a string slice. Unlike the
// per-field decode above, element mismatches are hard errors: once a list is
// present every element must be a well-formed string, never silently dropped.
func decodeStrings(v dbus.Variant) ([]string, error) {
	switch val := v.Value().(type) {
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out, nil
	case []dbus.Variant:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.Value().(string)
			if !ok {
				return nil, fmt.Errorf("%w: string array element has type %T", ErrMalformedReply, elem.Value())
			}
			out = append(out, s)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			s, ok := elem.(string)
			if !ok {
				return nil, fmt.Errorf("%w: string array element has type %T", ErrMalformedReply, elem)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: expected string array, got %T", ErrMalformedReply, v.Value())
	}
}

func requiredErr(name string) error {
	return fmt.Errorf("%w: missing required property %q", ErrMalformedReply, name)
}

// requiredProp decodes a field that must be present and well-typed; failing
// either way fails the whole snapshot.
func requiredProp[T any](props map[string]dbus.Variant, name string) (T, error) {
	var zero T
	v, ok := props[name]
	if !ok {
		return zero, requiredErr(name)
	}
	t, ok := decode[T](v)
	if !ok {
		return zero, fmt.Errorf("%w: property %q has type %T", ErrMalformedReply, name, v.Value())
	}
	return t, nil
}

// optionalProp decodes a field that may be absent. A present but mistyped
// value also counts as absent; optional fields fail soft.
func optionalProp[T any](props map[string]dbus.Variant, name string) *T {
	v, ok := props[name]
	if !ok {
		return nil
	}
	t, ok := decode[T](v)
	if !ok {
		return nil
	}
	return &t
}
