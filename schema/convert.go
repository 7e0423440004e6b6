package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Time layouts used for the index representation of date kinds.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = time.RFC3339
)

// FormatValue converts a model value into the representation handed to the
// engine for the given field kind: string, int64, float64, bool, time.Time
// or []string. Nil values fall back to the field default.
func FormatValue(f Field, v any) (any, error) {
	if v == nil {
		if f.Default == nil {
			return nil, nil
		}
		v = f.Default
	}

	switch f.Kind {
	case Text, EdgeNgram, Keyword, Decimal:
		return toString(v), nil
	case MultiValue:
		return toStringSlice(v), nil
	case Integer:
		return toInt64(f, v)
	case Float:
		return toFloat64(f, v)
	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("field %q: cannot parse %q as bool: %w", f.Name, b, err)
			}
			return parsed, nil
		default:
			return nil, fmt.Errorf("field %q: cannot convert %T to bool", f.Name, v)
		}
	case Date, DateTime:
		t, err := toTime(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		if f.Kind == Date {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		}
		return t, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported kind %q", f.Name, f.Kind)
	}
}

// ParseValue converts the stored engine representation back into a typed Go
// value. Engines hand back strings or float64s for most kinds; this restores
// int64, bool, time.Time and []string per the declaration.
func ParseValue(f Field, stored any) (any, error) {
	if stored == nil {
		return nil, nil
	}

	switch f.Kind {
	case Text, EdgeNgram, Keyword, Decimal:
		return toString(stored), nil
	case MultiValue:
		return toStringSlice(stored), nil
	case Integer:
		return toInt64(f, stored)
	case Float:
		return toFloat64(f, stored)
	case Boolean:
		switch b := stored.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err != nil {
				return nil, fmt.Errorf("field %q: cannot parse %q as bool: %w", f.Name, b, err)
			}
			return parsed, nil
		case float64:
			return b != 0, nil
		default:
			return nil, fmt.Errorf("field %q: cannot parse %T as bool", f.Name, stored)
		}
	case Date, DateTime:
		t, err := toTime(stored)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("field %q: unsupported kind %q", f.Name, f.Kind)
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toStringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			out = append(out, toString(item))
		}
		return out
	case []int:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			out = append(out, strconv.Itoa(item))
		}
		return out
	case string:
		if vals == "" {
			return []string{}
		}
		return strings.Split(vals, ",")
	case nil:
		return []string{}
	default:
		return []string{toString(v)}
	}
}

func toInt64(f Field, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: cannot parse %q as int: %w", f.Name, n, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("field %q: cannot convert %T to int", f.Name, v)
	}
}

func toFloat64(f Field, v any) (float64, error) {
	switch n := v.(type) {
	case float32:
		return float64(n), nil
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: cannot parse %q as float: %w", f.Name, n, err)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("field %q: cannot convert %T to float", f.Name, v)
	}
}

func toTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		for _, layout := range []string{DateTimeLayout, "2006-01-02T15:04:05", DateLayout} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot parse %q as time", t)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", v)
	}
}
