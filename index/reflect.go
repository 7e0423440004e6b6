package index

import (
	"reflect"
	"strings"
)

// Attr resolves a dotted attribute path ("Author", "Metadata.Source") on an
// arbitrary struct or map value. Pointers are dereferenced along the way;
// struct field names match case-insensitively so YAML declarations can use
// lower-case paths. The second return is false when the path does not
// resolve.
func Attr(obj any, path string) (any, bool) {
	v := reflect.ValueOf(obj)

	for _, part := range strings.Split(path, ".") {
		for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
			if v.IsNil() {
				return nil, false
			}
			v = v.Elem()
		}

		switch v.Kind() {
		case reflect.Struct:
			field := v.FieldByNameFunc(func(name string) bool {
				return strings.EqualFold(name, part)
			})
			if !field.IsValid() {
				return nil, false
			}
			v = field
		case reflect.Map:
			if v.Type().Key().Kind() != reflect.String {
				return nil, false
			}
			entry := v.MapIndex(reflect.ValueOf(part))
			if !entry.IsValid() {
				return nil, false
			}
			v = entry
		default:
			return nil, false
		}
	}

	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}
	if !v.CanInterface() {
		return nil, false
	}
	return v.Interface(), true
}
