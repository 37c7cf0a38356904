package images

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"shopassist.dev/assistant/internal/metrics"
	"shopassist.dev/assistant/internal/store"
)

// Generator produces an image URL for a product.
type Generator interface {
	Generate(ctx context.Context, title, category string) (string, error)
}

const (
	defaultGenerateTimeout = 30 * time.Second
	enrichConcurrency      = 4
)

type cacheKey struct {
	title    string
	category string
}

// Cache memoizes resolved images per (title, category) for the life of the
// process. Entries are never evicted.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]Image
	group   singleflight.Group

	generator       Generator
	generateTimeout time.Duration
	logger          *zap.Logger
	metrics   *metrics.Metrics
}

type Option func(*Cache)

// WithGenerator enables generated images. Failures fall back to placeholders.
func WithGenerator(g Generator) Option {
	return func(c *Cache) { c.generator = g }
}

// WithGenerateTimeout bounds a single generation call.
func WithGenerateTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.generateTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

func NewCache(logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		entries:         make(map[cacheKey]Image),
		generateTimeout: defaultGenerateTimeout,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the memoized image for the product, computing it on first use.
// Concurrent first lookups of the same key share one computation. Generation
// is detached from the caller's cancellation and bounded by its own timeout;
// a placeholder served because generation timed out is not memoized.
func (c *Cache) Resolve(ctx context.Context, title, category string) Image {
	key := cacheKey{title: title, category: category}

	c.mu.RLock()
	img, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.metrics.ImageLookup(true)
		return img
	}
	c.metrics.ImageLookup(false)

	v, _, _ := c.group.Do(title+"\x00"+category, func() (interface{}, error) {
		c.mu.RLock()
		img, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return img, nil
		}

		img, memoize := c.compute(context.WithoutCancel(ctx), title, category)
		if memoize {
			c.mu.Lock()
			c.entries[key] = img
			c.mu.Unlock()
		}
		return img, nil
	})
	return v.(Image)
}

func (c *Cache) compute(ctx context.Context, title, category string) (Image, bool) {
	if c.generator == nil {
		return Placeholder(title, category), true
	}

	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	url, err := c.generator.Generate(ctx, title, category)
	if err != nil || url == "" {
		c.logger.Warn("Image generation failed, using placeholder", zap.String("title", title), zap.Error(err))
		c.metrics.Fallback("images")
		transient := errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		return Placeholder(title, category), !transient
	}
	return Image{URL: url, Alt: title + " - AI Generated", Source: SourceAI}, true
}

// Enrich fills in missing product images. The input slice is not modified.
func (c *Cache) Enrich(ctx context.Context, products []store.Product) []store.Product {
	out := make([]store.Product, len(products))
	copy(out, products)

	var g errgroup.Group
	g.SetLimit(enrichConcurrency)
	for i := range out {
		if out[i].Image != "" {
			continue
		}
		g.Go(func() error {
			out[i].Image = c.Resolve(ctx, out[i].Title, out[i].Category).URL
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
