// Package lexical provides an optional in-memory keyword index over chunk
// content. It complements the vector index with plain term matching and is
// rebuilt from the store on open; nothing in it is persisted.
package lexical

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// chunkDoc is the shape handed to bleve for analysis.
type chunkDoc struct {
	Content string `json:"content"`
}

// Match is one keyword hit.
type Match struct {
	ChunkID string
	Score   float64
}

// Index is a memory-only keyword index keyed by chunk id.
type Index struct {
	index bleve.Index
}

// New creates an empty index.
func New() (*Index, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return &Index{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// Add indexes the content of one chunk.
func (x *Index) Add(chunkID, content string) error {
	if err := x.index.Index(chunkID, chunkDoc{Content: content}); err != nil {
		return fmt.Errorf("index chunk %s: %w", chunkID, err)
	}
	return nil
}

// Search returns up to limit chunks matching the query terms, best first.
func (x *Index) Search(query string, limit int) ([]Match, error) {
	if limit <= 0 {
		limit = 10
	}

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	req := bleve.NewSearchRequestOptions(contentQuery, limit, 0, false)

	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	matches := make([]Match, 0, len(res.Hits))
	for _, hit := range res.Hits {
		matches = append(matches, Match{ChunkID: hit.ID, Score: hit.Score})
	}

	return matches, nil
}

// Close releases the index.
func (x *Index) Close() error {
	return x.index.Close()
}
