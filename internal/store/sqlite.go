package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// ErrInvalidCatalog is returned when a catalog file fails schema validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

const catalogSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["title"],
    "properties": {
      "id":          {"type": "string"},
      "title":       {"type": "string", "minLength": 1},
      "description": {"type": "string"},
      "price":       {"type": "string"},
      "category":    {"type": "string"},
      "brand":       {"type": "string"},
      "image":       {"type": "string"},
      "url":         {"type": "string"},
      "rating":      {"type": "number", "minimum": 0, "maximum": 5},
      "reviews":     {"type": "integer", "minimum": 0}
    }
  }
}`

// SQLiteStore holds the product catalog the search index is built from.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS products (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        price TEXT NOT NULL DEFAULT '',
        category TEXT NOT NULL DEFAULT '',
        brand TEXT NOT NULL DEFAULT '',
        image TEXT NOT NULL DEFAULT '',
        url TEXT NOT NULL DEFAULT '',
        rating REAL,
        reviews INTEGER,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_products_category ON products (category);
    `
	_, err := s.db.Exec(schema)
	return err
}

// UpsertProducts inserts or replaces products by id. Products without an id get one.
func (s *SQLiteStore) UpsertProducts(ctx context.Context, products []Product) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := upsert(ctx, tx, products)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit products: %w", err)
	}
	return n, nil
}

// ReplaceProducts swaps the whole catalog for products in one transaction.
func (s *SQLiteStore) ReplaceProducts(ctx context.Context, products []Product) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM products"); err != nil {
		return 0, fmt.Errorf("failed to clear products: %w", err)
	}
	n, err := upsert(ctx, tx, products)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit products: %w", err)
	}
	return n, nil
}

func upsert(ctx context.Context, tx *sql.Tx, products []Product) (int, error) {
	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO products (id, title, description, price, category, brand, image, url, rating, reviews, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            description = excluded.description,
            price = excluded.price,
            category = excluded.category,
            brand = excluded.brand,
            image = excluded.image,
            url = excluded.url,
            rating = excluded.rating,
            reviews = excluded.reviews,
            updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare product upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for i := range products {
		p := &products[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		var rating sql.NullFloat64
		if p.Rating != nil {
			rating = sql.NullFloat64{Float64: *p.Rating, Valid: true}
		}
		var reviews sql.NullInt64
		if p.Reviews != nil {
			reviews = sql.NullInt64{Int64: int64(*p.Reviews), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Description, p.Price, p.Category, p.Brand, p.Image, p.URL, rating, reviews, now); err != nil {
			return 0, fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
	}
	return len(products), nil
}

func (s *SQLiteStore) GetAllProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, title, description, price, category, brand, image, url, rating, reviews FROM products ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var rating sql.NullFloat64
		var reviews sql.NullInt64
		if err := rows.Scan(&p.ID, &p.Title, &p.Description, &p.Price, &p.Category, &p.Brand, &p.Image, &p.URL, &rating, &reviews); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		if rating.Valid {
			v := rating.Float64
			p.Rating = &v
		}
		if reviews.Valid {
			v := int(reviews.Int64)
			p.Reviews = &v
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) CountProducts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// ParseCatalog validates raw JSON against the catalog schema and decodes it.
func ParseCatalog(data []byte) ([]Product, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(catalogSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(msgs, "; "))
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	return products, nil
}

// IngestCatalogFromFile reads a JSON product array and replaces the stored catalog with it.
func (s *SQLiteStore) IngestCatalogFromFile(ctx context.Context, filePath string) (int, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read catalog file %s: %w", filePath, err)
	}

	products, err := ParseCatalog(data)
	if err != nil {
		return 0, err
	}
	if len(products) == 0 {
		s.logger.Warn("Catalog file has no products", zap.String("path", filePath))
	}

	n, err := s.ReplaceProducts(ctx, products)
	if err != nil {
		return 0, err
	}
	s.logger.Info("Ingested catalog", zap.String("path", filePath), zap.Int("products", n))
	return n, nil
}
