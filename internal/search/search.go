// Package search provides the document search service behind a narrow interface.
package search

import (
	"context"

	"shopassist.dev/assistant/internal/store"
)

const DefaultMaxResults = 10

// Searcher runs a fuzzy product search. Results are ordered by relevance,
// best first. An empty result is not an error.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]store.Product, error)
}

// Loader is implemented by searchers that index a local catalog.
type Loader interface {
	Load(products []store.Product) error
}

// field boosts shared by the local and remote backends
var searchFields = []struct {
	name  string
	boost float64
}{
	{"title", 2},
	{"description", 1},
	{"category", 1},
	{"brand", 1},
}
