package index

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mow-search/mow/schema"
)

// Definition is a YAML-declarable index:
//
//	indexes:
//	  - model: core.article
//	    pk_attr: ID
//	    fields:
//	      - name: text
//	        kind: text
//	        document: true
//	        attr: Body
//	      - name: author
//	        kind: keyword
//	        attr: Author
//	        boost: 2.0
type Definition struct {
	Model  string            `yaml:"model"`
	PKAttr string            `yaml:"pk_attr"`
	Fields []FieldDefinition `yaml:"fields"`
}

type FieldDefinition struct {
	Name     string  `yaml:"name"`
	Kind     string  `yaml:"kind"`
	Document bool    `yaml:"document"`
	Attr     string  `yaml:"attr"`
	Boost    float64 `yaml:"boost"`
	Indexed  *bool   `yaml:"indexed"`
	Stored   *bool   `yaml:"stored"`
	Default  any     `yaml:"default"`
}

type definitionFile struct {
	Indexes []Definition `yaml:"indexes"`
}

// LoadDefinitions decodes YAML index definitions into Index implementations.
func LoadDefinitions(r io.Reader) ([]Index, error) {
	var file definitionFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode index definitions: %w", err)
	}
	if len(file.Indexes) == 0 {
		return nil, fmt.Errorf("no indexes declared")
	}

	out := make([]Index, 0, len(file.Indexes))
	for _, def := range file.Indexes {
		idx, err := def.Build()
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}
	return out, nil
}

// Build turns the definition into a ModelIndex.
func (d Definition) Build() (Index, error) {
	fields := make([]schema.Field, 0, len(d.Fields))
	for _, fd := range d.Fields {
		opts := []schema.FieldOption{schema.WithAttr(fd.Attr)}
		if fd.Document {
			opts = append(opts, schema.WithDocument())
		}
		if fd.Boost > 0 {
			opts = append(opts, schema.WithBoost(fd.Boost))
		}
		if fd.Indexed != nil && !*fd.Indexed {
			opts = append(opts, schema.NotIndexed())
		}
		if fd.Stored != nil && !*fd.Stored {
			opts = append(opts, schema.NotStored())
		}
		if fd.Default != nil {
			opts = append(opts, schema.WithDefault(fd.Default))
		}
		fields = append(fields, schema.NewField(fd.Name, schema.Kind(fd.Kind), opts...))
	}

	var opts []ModelIndexOption
	if d.PKAttr != "" {
		opts = append(opts, WithPKAttr(d.PKAttr))
	}
	return NewModelIndex(d.Model, fields, opts...)
}
