// Package convert turns raw stored property values into the Go type a caller
// asks for. Values coming out of a document store are loosely typed (strings
// typed in a form, numbers decoded as whatever width the codec chose), so
// every typed read goes through a Converter.
package convert

import (
	"fmt"
	"strings"
	"time"

	errors "github.com/goliatone/go-errors"
	"github.com/spf13/cast"
)

// TextCodeConversion tags errors produced by a failed conversion.
const TextCodeConversion = "CONVERSION_FAILED"

// DefaultListSeparators split a stored string into a list.
const DefaultListSeparators = "|,"

// Type is an explicit conversion target.
type Type int

const (
	// Any returns the raw value untouched.
	Any Type = iota
	String
	Int
	Int64
	Float64
	Bool
	Duration
	Time
	StringSlice
	StringMap
)

var typeNames = map[Type]string{
	Any:         "any",
	String:      "string",
	Int:         "int",
	Int64:       "int64",
	Float64:     "float64",
	Bool:        "bool",
	Duration:    "duration",
	Time:        "time",
	StringSlice: "[]string",
	StringMap:   "map[string]string",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

var typeAliases = map[string]Type{
	"list":     StringSlice,
	"strings":  StringSlice,
	"map":      StringMap,
	"integer":  Int,
	"float":    Float64,
	"boolean":  Bool,
	"datetime": Time,
}

// ParseType resolves a type name as printed by Type.String, or one of the
// short aliases accepted on the command line.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Any, nil
	}
	if t, ok := typeAliases[name]; ok {
		return t, nil
	}
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return Any, errors.New(fmt.Sprintf("unknown type %q", name), errors.CategoryBadInput)
}

// Zero is what typed lookups return for an absent value. Container types get
// an empty, non-nil container so callers can range over the result.
func (t Type) Zero() any {
	switch t {
	case StringSlice:
		return []string{}
	case StringMap:
		return map[string]string{}
	default:
		return nil
	}
}

// Matches reports whether v already has the Go type t converts to.
func (t Type) Matches(v any) bool {
	switch t {
	case Any:
		return true
	case String:
		_, ok := v.(string)
		return ok
	case Int:
		_, ok := v.(int)
		return ok
	case Int64:
		_, ok := v.(int64)
		return ok
	case Float64:
		_, ok := v.(float64)
		return ok
	case Bool:
		_, ok := v.(bool)
		return ok
	case Duration:
		_, ok := v.(time.Duration)
		return ok
	case Time:
		_, ok := v.(time.Time)
		return ok
	case StringSlice:
		_, ok := v.([]string)
		return ok
	case StringMap:
		_, ok := v.(map[string]string)
		return ok
	default:
		return false
	}
}

// TypeOf infers the conversion target from a sample value, typically a
// caller supplied default. Unknown types map to Any.
func TypeOf(v any) Type {
	switch v.(type) {
	case string:
		return String
	case int:
		return Int
	case int64:
		return Int64
	case float64:
		return Float64
	case bool:
		return Bool
	case time.Duration:
		return Duration
	case time.Time:
		return Time
	case []string:
		return StringSlice
	case map[string]string:
		return StringMap
	default:
		return Any
	}
}

// Converter converts a raw value to the target type.
type Converter interface {
	Convert(target Type, raw any) (any, error)
}

// CastConverter is the default Converter backed by spf13/cast.
type CastConverter struct {
	listSeparators string
}

// Option configures a CastConverter.
type Option func(*CastConverter)

// WithListSeparators overrides the characters splitting a string into a list.
func WithListSeparators(separators string) Option {
	return func(c *CastConverter) {
		c.listSeparators = separators
	}
}

// New creates the default converter.
func New(opts ...Option) *CastConverter {
	c := &CastConverter{listSeparators: DefaultListSeparators}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert implements Converter. A nil raw value converts to nil for every
// target so absence is never turned into a zero value here.
func (c *CastConverter) Convert(target Type, raw any) (any, error) {
	if raw == nil || target == Any {
		return raw, nil
	}

	var (
		out any
		err error
	)

	switch target {
	case String:
		out, err = cast.ToStringE(raw)
	case Int:
		out, err = cast.ToIntE(raw)
	case Int64:
		out, err = cast.ToInt64E(raw)
	case Float64:
		out, err = cast.ToFloat64E(raw)
	case Bool:
		out, err = cast.ToBoolE(raw)
	case Duration:
		out, err = cast.ToDurationE(raw)
	case Time:
		out, err = cast.ToTimeE(raw)
	case StringSlice:
		out, err = c.toStringSlice(raw)
	case StringMap:
		out, err = cast.ToStringMapStringE(raw)
	default:
		err = fmt.Errorf("unsupported target %s", target)
	}

	if err != nil {
		return nil, conversionError(target, raw, err)
	}
	return out, nil
}

func (c *CastConverter) toStringSlice(raw any) ([]string, error) {
	s, ok := raw.(string)
	if !ok {
		return cast.ToStringSliceE(raw)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(c.listSeparators, r)
	})

	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}

func conversionError(target Type, raw any, source error) *errors.Error {
	return errors.Wrap(source, errors.CategoryBadInput, fmt.Sprintf("cannot convert value to %s", target)).
		WithTextCode(TextCodeConversion).
		WithMetadata(map[string]any{
			"target":     target.String(),
			"value_type": fmt.Sprintf("%T", raw),
		})
}

// IsConversionError reports whether err was produced by a failed conversion.
func IsConversionError(err error) bool {
	var e *errors.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Category == errors.CategoryBadInput && e.TextCode == TextCodeConversion
}
