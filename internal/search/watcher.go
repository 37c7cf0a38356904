package search

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"shopassist.dev/assistant/internal/store"
)

// Catalog is the part of the product store the watcher needs.
type Catalog interface {
	IngestCatalogFromFile(ctx context.Context, filePath string) (int, error)
	GetAllProducts(ctx context.Context) ([]store.Product, error)
}

// Watcher re-ingests the catalog file when it changes and reloads the index.
type Watcher struct {
	path     string
	catalog  Catalog
	loader   Loader
	logger   *zap.Logger
	debounce time.Duration
}

func NewWatcher(path string, catalog Catalog, loader Loader, logger *zap.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		catalog:  catalog,
		loader:   loader,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
}

// Reload ingests the catalog file and pushes the stored catalog into the index.
func (w *Watcher) Reload(ctx context.Context) error {
	if _, err := w.catalog.IngestCatalogFromFile(ctx, w.path); err != nil {
		return err
	}
	return LoadFromCatalog(ctx, w.catalog, w.loader)
}

// LoadFromCatalog indexes everything currently stored in the catalog.
func LoadFromCatalog(ctx context.Context, catalog Catalog, loader Loader) error {
	products, err := catalog.GetAllProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to read catalog: %w", err)
	}
	return loader.Load(products)
}

// Run blocks until ctx is done. The parent directory is watched because
// editors often replace files by rename.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Info("Watching catalog file", zap.String("path", w.path))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Catalog watcher error", zap.Error(err))

		case <-timer.C:
			if err := w.Reload(ctx); err != nil {
				w.logger.Error("Catalog reload failed", zap.Error(err))
				continue
			}
			w.logger.Info("Catalog reloaded", zap.String("path", w.path))
		}
	}
}
