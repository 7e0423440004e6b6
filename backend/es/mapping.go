package es

import (
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/mow-search/mow/schema"
)

const (
	edgeNgramAnalyzer = "edge_ngram_analyzer"
	edgeNgramFilter   = "edge_ngram_filter"

	edgeNgramMin = 2
	edgeNgramMax = 15
)

func buildSettings() *types.IndexSettings {
	minGram := edgeNgramMin
	maxGram := edgeNgramMax

	ngram := types.NewEdgeNGramTokenFilter()
	ngram.MinGram = &minGram
	ngram.MaxGram = &maxGram

	analyzer := types.NewCustomAnalyzer()
	analyzer.Tokenizer = "standard"
	analyzer.Filter = []string{"lowercase", edgeNgramFilter}

	return &types.IndexSettings{
		Analysis: &types.IndexSettingsAnalysis{
			Filter: map[string]types.TokenFilter{
				edgeNgramFilter: ngram,
			},
			Analyzer: map[string]types.Analyzer{
				edgeNgramAnalyzer: analyzer,
			},
		},
	}
}

// buildMapping derives the index mapping from the schema. Autocomplete
// fields analyze with edge n-grams at index time and plainly at search time,
// so prefixes match without exploding the query.
func buildMapping(s *schema.Schema) (*types.TypeMapping, error) {
	props := map[string]types.Property{
		schema.ModelField: types.NewKeywordProperty(),
		schema.PKField:    types.NewKeywordProperty(),
	}

	for _, f := range s.Fields() {
		prop, err := fieldProperty(f)
		if err != nil {
			return nil, err
		}
		props[f.Name] = prop
	}

	return &types.TypeMapping{Properties: props}, nil
}

func fieldProperty(f schema.Field) (types.Property, error) {
	switch f.Kind {
	case schema.Text:
		return types.NewTextProperty(), nil
	case schema.EdgeNgram:
		prop := types.NewTextProperty()
		analyzer := edgeNgramAnalyzer
		search := "standard"
		prop.Analyzer = &analyzer
		prop.SearchAnalyzer = &search
		return prop, nil
	case schema.Keyword, schema.MultiValue, schema.Decimal:
		return types.NewKeywordProperty(), nil
	case schema.Integer:
		return types.NewLongNumberProperty(), nil
	case schema.Float:
		return types.NewDoubleNumberProperty(), nil
	case schema.Boolean:
		return types.NewBooleanProperty(), nil
	case schema.Date, schema.DateTime:
		return types.NewDateProperty(), nil
	default:
		return nil, fmt.Errorf("field %q: no elasticsearch mapping for kind %q", f.Name, f.Kind)
	}
}
