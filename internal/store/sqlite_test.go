package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "catalog.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndGetAllProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := 4.6
	n := 212
	_, err := s.UpsertProducts(ctx, []Product{
		{ID: "xps-13", Title: "XPS 13", Price: "$999", Category: "laptops", Rating: &r, Reviews: &n},
		{Title: "OptiPlex 7010", Category: "desktops"},
	})
	require.NoError(t, err)

	got, err := s.GetAllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "xps-13", got[0].ID)
	require.NotNil(t, got[0].Rating)
	assert.Equal(t, 4.6, *got[0].Rating)
	require.NotNil(t, got[0].Reviews)
	assert.Equal(t, 212, *got[0].Reviews)

	assert.NotEmpty(t, got[1].ID)
	assert.Nil(t, got[1].Rating)
	assert.Nil(t, got[1].Reviews)

	// update in place
	_, err = s.UpsertProducts(ctx, []Product{{ID: "xps-13", Title: "XPS 13 Plus"}})
	require.NoError(t, err)
	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestParseCatalog(t *testing.T) {
	products, err := ParseCatalog([]byte(`[{"title":"Alienware m16","category":"gaming","rating":4.7,"reviews":88}]`))
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Alienware m16", products[0].Title)

	_, err = ParseCatalog([]byte(`[{"description":"no title"}]`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = ParseCatalog([]byte(`[{"title":"x","rating":9}]`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	_, err = ParseCatalog([]byte(`{"title":"not an array"}`))
	assert.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestIngestCatalogFromFile_ReplacesCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertProducts(ctx, []Product{{ID: "old", Title: "Old product"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"p1","title":"Latitude 5440","category":"laptops","price":"$1,099"},
		{"id":"p2","title":"UltraSharp U2723QE","category":"monitors"}
	]`), 0o644))

	n, err := s.IngestCatalogFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetAllProducts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)
}

func TestIngestCatalogFromFile_InvalidKeepsExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertProducts(ctx, []Product{{ID: "keep", Title: "Keep me"}})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x"}]`), 0o644))

	_, err = s.IngestCatalogFromFile(ctx, path)
	assert.ErrorIs(t, err, ErrInvalidCatalog)

	count, err := s.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
