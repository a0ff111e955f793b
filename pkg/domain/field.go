package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType identifies the declared type of a node field.
type FieldType int

const (
	FieldString FieldType = iota + 1
	FieldInt
	FieldFloat
	FieldBool
	FieldVec3
	FieldCol4
)

// String returns the wire name of the type ("string", "int", "float", "bool", "vec3", "col4").
func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldInt:
		return "int"
	case FieldFloat:
		return "float"
	case FieldBool:
		return "bool"
	case FieldVec3:
		return "vec3"
	case FieldCol4:
		return "col4"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	return t >= FieldString && t <= FieldCol4
}

// MarshalText encodes the type by its wire name.
func (t FieldType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown field type %d", ErrTypeMismatch, int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText decodes a wire name.
func (t *FieldType) UnmarshalText(text []byte) error {
	parsed, err := ParseFieldType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseFieldType maps a wire name to its FieldType.
func ParseFieldType(name string) (FieldType, error) {
	switch name {
	case "string":
		return FieldString, nil
	case "int":
		return FieldInt, nil
	case "float":
		return FieldFloat, nil
	case "bool":
		return FieldBool, nil
	case "vec3":
		return FieldVec3, nil
	case "col4":
		return FieldCol4, nil
	}
	return 0, fmt.Errorf("%w: unknown schema type %q", ErrTypeMismatch, name)
}

// Vec3 is a three component vector.
type Vec3 struct {
	X, Y, Z float64
}

// Col4 is an RGBA color.
type Col4 struct {
	R, G, B, A float64
}

// Field is a typed value stored on a node.
type Field struct {
	Type  FieldType
	Value any
}

// Normalize widens Go numeric kinds to the canonical field representations
// (int64 and float64). Other values are returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case float32:
		return float64(x)
	}
	return v
}

// TypeOf returns the field type of a canonical value.
func TypeOf(v any) (FieldType, error) {
	switch Normalize(v).(type) {
	case string:
		return FieldString, nil
	case int64:
		return FieldInt, nil
	case float64:
		return FieldFloat, nil
	case bool:
		return FieldBool, nil
	case Vec3:
		return FieldVec3, nil
	case Col4:
		return FieldCol4, nil
	}
	return 0, fmt.Errorf("%w: unsupported value type %T", ErrTypeMismatch, v)
}

// Coerce converts v into the canonical representation of t.
// Values already of type t pass through; strings are parsed with ParseValue.
func Coerce(t FieldType, v any) (any, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: unknown field type %d", ErrTypeMismatch, int(t))
	}
	v = Normalize(v)
	if actual, err := TypeOf(v); err == nil && actual == t {
		return v, nil
	}
	if s, ok := v.(string); ok {
		return ParseValue(t, s)
	}
	return nil, fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
}

// FormatValue renders a value in its wire form. Vectors and colors are
// comma-joined floats with no surrounding whitespace.
func FormatValue(t FieldType, v any) (string, error) {
	v = Normalize(v)
	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldInt:
		if i, ok := v.(int64); ok {
			return strconv.FormatInt(i, 10), nil
		}
	case FieldFloat:
		if f, ok := v.(float64); ok {
			return formatFloat(f), nil
		}
	case FieldBool:
		if b, ok := v.(bool); ok {
			return strconv.FormatBool(b), nil
		}
	case FieldVec3:
		if vec, ok := v.(Vec3); ok {
			return joinFloats(vec.X, vec.Y, vec.Z), nil
		}
	case FieldCol4:
		if c, ok := v.(Col4); ok {
			return joinFloats(c.R, c.G, c.B, c.A), nil
		}
	default:
		return "", fmt.Errorf("%w: unknown field type %d", ErrTypeMismatch, int(t))
	}
	return "", fmt.Errorf("%w: %T is not %s", ErrTypeMismatch, v, t)
}

// ParseValue parses the wire form of a value of type t.
func ParseValue(t FieldType, s string) (any, error) {
	switch t {
	case FieldString:
		return s, nil
	case FieldInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: int %q", ErrParseError, s)
		}
		return i, nil
	case FieldFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: float %q", ErrParseError, s)
		}
		return f, nil
	case FieldBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, fmt.Errorf("%w: bool %q", ErrParseError, s)
		}
		return b, nil
	case FieldVec3:
		f, err := splitFloats(s, 3)
		if err != nil {
			return nil, err
		}
		return Vec3{X: f[0], Y: f[1], Z: f[2]}, nil
	case FieldCol4:
		f, err := splitFloats(s, 4)
		if err != nil {
			return nil, err
		}
		return Col4{R: f[0], G: f[1], B: f[2], A: f[3]}, nil
	}
	return nil, fmt.Errorf("%w: unknown field type %d", ErrTypeMismatch, int(t))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func joinFloats(fs ...float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, ",")
}

func splitFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("%w: expected %d components in %q", ErrParseError, n, s)
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d of %q", ErrParseError, i, s)
		}
		out[i] = f
	}
	return out, nil
}

// ParseAny converts loosely typed input, such as decoded YAML, into the
// canonical value of t. Strings are read as the wire form, lists as vector
// or color components, and other scalars by their printed form.
func ParseAny(t FieldType, v any) (any, error) {
	var raw string
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: missing %s value", ErrParseError, t)
	case string:
		raw = x
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = fmt.Sprint(p)
		}
		raw = strings.Join(parts, ",")
	default:
		if canonical, err := Coerce(t, x); err == nil {
			return canonical, nil
		}
		raw = fmt.Sprint(x)
	}
	return ParseValue(t, raw)
}
