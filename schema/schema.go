package schema

import (
	"fmt"
	"sort"
)

// Schema is the merged set of declared fields an engine builds its native
// mapping from.
type Schema struct {
	fields        map[string]Field
	documentField string
}

// Build validates a field list and assembles it into a Schema. Exactly one
// field must be marked as the document field. Fields sharing a name must
// share a kind.
func Build(fields []Field) (*Schema, error) {
	s := &Schema{fields: make(map[string]Field, len(fields))}

	for _, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if existing, ok := s.fields[f.Name]; ok {
			if existing.Kind != f.Kind {
				return nil, fmt.Errorf("field %q declared as both %q and %q", f.Name, existing.Kind, f.Kind)
			}
			// Keep the stronger declaration when indexes overlap.
			if f.Boost > existing.Boost {
				existing.Boost = f.Boost
			}
			existing.Indexed = existing.Indexed || f.Indexed
			existing.Stored = existing.Stored || f.Stored
			existing.Document = existing.Document || f.Document
			s.fields[f.Name] = existing
			if existing.Document {
				s.documentField = existing.Name
			}
			continue
		}
		s.fields[f.Name] = f
		if f.Document {
			if s.documentField != "" && s.documentField != f.Name {
				return nil, fmt.Errorf("multiple document fields declared: %q and %q", s.documentField, f.Name)
			}
			s.documentField = f.Name
		}
	}

	if s.documentField == "" {
		return nil, fmt.Errorf("no document field declared")
	}
	return s, nil
}

// DocumentField returns the name of the primary full-text field.
func (s *Schema) DocumentField() string {
	return s.documentField
}

// Field returns the declaration for name.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Fields returns all declared fields sorted by name.
func (s *Schema) Fields() []Field {
	out := make([]Field, 0, len(s.fields))
	for _, f := range s.fields {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all field names, system fields included, sorted.
func (s *Schema) Names() []string {
	out := make([]string, 0, len(s.fields)+3)
	out = append(out, IDField, ModelField, PKField)
	for name := range s.fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of declared fields, system fields excluded.
func (s *Schema) Len() int {
	return len(s.fields)
}
