package bleve

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/token/edgengram"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/mow-search/mow/schema"
)

const (
	edgeNgramAnalyzer = "edge_ngram"
	edgeNgramFilter   = "edge_ngram_filter"

	edgeNgramMin = 2
	edgeNgramMax = 15
)

// BuildIndexMapping derives a bleve index mapping from a schema. Every field
// keeps its declared analysis: full-text fields use the standard analyzer,
// autocomplete fields an edge n-gram analyzer, exact-match fields the keyword
// analyzer. The model and pk fields are always present as keyword terms.
func BuildIndexMapping(s *schema.Schema) (mapping.IndexMapping, error) {
	im := bleve.NewIndexMapping()

	err := im.AddCustomTokenFilter(edgeNgramFilter, map[string]any{
		"type": edgengram.Name,
		"min":  float64(edgeNgramMin),
		"max":  float64(edgeNgramMax),
	})
	if err != nil {
		return nil, fmt.Errorf("register edge ngram filter: %w", err)
	}

	err = im.AddCustomAnalyzer(edgeNgramAnalyzer, map[string]any{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			edgeNgramFilter,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("register edge ngram analyzer: %w", err)
	}

	doc := bleve.NewDocumentMapping()

	for _, f := range s.Fields() {
		fm, err := fieldMapping(f, f.Name == s.DocumentField())
		if err != nil {
			return nil, err
		}
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	doc.AddFieldMappingsAt(schema.ModelField, keywordMapping())
	doc.AddFieldMappingsAt(schema.PKField, keywordMapping())

	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im, nil
}

func fieldMapping(f schema.Field, isDocument bool) (*mapping.FieldMapping, error) {
	var fm *mapping.FieldMapping

	switch f.Kind {
	case schema.Text:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
		if isDocument {
			// Term vectors back positional highlighting on the document field.
			fm.IncludeTermVectors = true
		}
	case schema.EdgeNgram:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = edgeNgramAnalyzer
	case schema.Keyword, schema.MultiValue, schema.Decimal:
		fm = keywordMapping()
	case schema.Integer, schema.Float:
		fm = bleve.NewNumericFieldMapping()
	case schema.Boolean:
		fm = bleve.NewBooleanFieldMapping()
	case schema.Date, schema.DateTime:
		fm = bleve.NewDateTimeFieldMapping()
	default:
		return nil, fmt.Errorf("field %q: no bleve mapping for kind %q", f.Name, f.Kind)
	}

	fm.Index = f.Indexed
	fm.Store = f.Stored
	fm.IncludeInAll = false
	return fm, nil
}

func keywordMapping() *mapping.FieldMapping {
	fm := bleve.NewTextFieldMapping()
	fm.Analyzer = keyword.Name
	return fm
}
