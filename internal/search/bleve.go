package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/store"
)

// BleveSearcher keeps an in-memory bleve index of the catalog.
// Load swaps in a freshly built index, so searches never see a half-built one.
type BleveSearcher struct {
	mu       sync.RWMutex
	index    bleve.Index
	products map[string]store.Product
	logger   *zap.Logger
}

func NewBleveSearcher(logger *zap.Logger) (*BleveSearcher, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	return &BleveSearcher{
		index:    index,
		products: make(map[string]store.Product),
		logger:   logger,
	}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	productMapping := bleve.NewDocumentMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	idField.Store = false
	productMapping.AddFieldMappingsAt("id", idField)

	for _, f := range searchFields {
		textField := bleve.NewTextFieldMapping()
		textField.Analyzer = standard.Name
		textField.Store = false
		productMapping.AddFieldMappingsAt(f.name, textField)
	}

	indexMapping.DefaultMapping = productMapping
	return indexMapping
}

// Load replaces the indexed catalog with products.
func (b *BleveSearcher) Load(products []store.Product) error {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create bleve index: %w", err)
	}

	byID := make(map[string]store.Product, len(products))
	batch := index.NewBatch()
	for _, p := range products {
		doc := map[string]interface{}{
			"id":          p.ID,
			"title":       p.Title,
			"description": p.Description,
			"category":    p.Category,
			"brand":       p.Brand,
		}
		if err := batch.Index(p.ID, doc); err != nil {
			index.Close()
			return fmt.Errorf("failed to add product %s to batch: %w", p.ID, err)
		}
		byID[p.ID] = p
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return fmt.Errorf("failed to index products: %w", err)
	}

	b.mu.Lock()
	old := b.index
	b.index = index
	b.products = byID
	b.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			b.logger.Warn("Failed to close previous bleve index", zap.Error(err))
		}
	}
	b.logger.Info("Search index loaded", zap.Int("products", len(byID)))
	return nil
}

func (b *BleveSearcher) Search(ctx context.Context, query string, maxResults int) ([]store.Product, error) {
	if strings.TrimSpace(query) == "" {
		return []store.Product{}, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	disjunction := bleve.NewDisjunctionQuery()
	for _, f := range searchFields {
		q := bleve.NewMatchQuery(query)
		q.SetField(f.name)
		q.SetFuzziness(1)
		q.SetBoost(f.boost)
		disjunction.AddQuery(q)
	}

	req := bleve.NewSearchRequest(disjunction)
	req.Size = maxResults

	b.mu.RLock()
	defer b.mu.RUnlock()

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := make([]store.Product, 0, len(res.Hits))
	for _, hit := range res.Hits {
		p, ok := b.products[hit.ID]
		if !ok {
			continue
		}
		p.Score = hit.Score
		out = append(out, p)
	}
	return out, nil
}

func (b *BleveSearcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
