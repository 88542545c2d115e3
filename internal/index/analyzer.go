package index

import (
	"github.com/blevesearch/bleve/v2/analysis"
	_ "github.com/blevesearch/bleve/v2/config"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

const (
	porterStemFilterName = "selfhostedsearch_porter_stem"
	docTextAnalyzerName  = "selfhostedsearch_doc_text"
)

// porterStemFilter stems each token's term using go-porterstemmer,
// resolving spec's stemmer Open Question (Decision: Porter, see
// DESIGN.md) with the pack's own stemming library rather than bleve's
// bundled implementation.
type porterStemFilter struct{}

func (porterStemFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	for _, token := range input {
		stemmed := porterstemmer.StemString(string(token.Term))
		token.Term = []byte(stemmed)
	}
	return input
}

func porterStemFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	return porterStemFilter{}, nil
}

func init() {
	registry.RegisterTokenFilter(porterStemFilterName, porterStemFilterConstructor)
}

// buildIndexMapping constructs the bleve mapping used for every document:
// "text"/"title" go through the stemmed analyzer; "url"/"site"/"lang" stay
// keyword fields so site/language filters can do exact term matches.
func buildIndexMapping() (*mapping.IndexMappingImpl, error) {
	im := mapping.NewIndexMapping()

	if err := im.AddCustomAnalyzer(docTextAnalyzerName, map[string]interface{}{
		"type":          "custom",
		"tokenizer":     "unicode",
		"token_filters": []string{"to_lower", porterStemFilterName},
	}); err != nil {
		return nil, err
	}

	docMapping := mapping.NewDocumentMapping()

	textField := mapping.NewTextFieldMapping()
	textField.Analyzer = docTextAnalyzerName
	docMapping.AddFieldMappingsAt("text", textField)
	docMapping.AddFieldMappingsAt("title", textField)

	keywordField := mapping.NewTextFieldMapping()
	keywordField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("url", keywordField)
	docMapping.AddFieldMappingsAt("site", keywordField)
	docMapping.AddFieldMappingsAt("lang", keywordField)

	dateField := mapping.NewDateTimeFieldMapping()
	docMapping.AddFieldMappingsAt("fetched_at", dateField)

	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = docTextAnalyzerName
	return im, nil
}
