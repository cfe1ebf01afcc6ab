package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-assistant/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Store struct {
	db  *sqlx.DB
	url string
}

// productRow is the products table layout. Keywords are stored as a comma
// separated list.
type productRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Price       decimal.Decimal `db:"price"`
	Category    string          `db:"category"`
	Description string          `db:"description"`
	Keywords    string          `db:"keywords"`
	InStock     bool            `db:"in_stock"`
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, url: databaseURL}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProducts retrieves all products in insertion order
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, name, price, category, description, keywords, in_stock FROM products ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	products := make([]models.Product, 0, len(rows))
	for _, r := range rows {
		products = append(products, r.toProduct())
	}
	return products, nil
}

// CountProducts returns the number of catalog rows
func (s *Store) CountProducts(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM products")
	return n, err
}

// SeedProducts inserts products that are not present yet. Existing rows are
// left untouched so edits made in the database survive a restart.
func (s *Store) SeedProducts(ctx context.Context, products []models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (id, name, price, category, description, keywords, in_stock)
		VALUES (:id, :name, :price, :category, :description, :keywords, :in_stock)
		ON CONFLICT (id) DO NOTHING`

	for _, p := range products {
		if _, err := tx.NamedExecContext(ctx, query, fromProduct(p)); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

func (r productRow) toProduct() models.Product {
	keywords := []string{}
	for _, kw := range strings.Split(r.Keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return models.Product{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		Category:    r.Category,
		Description: r.Description,
		Keywords:    keywords,
		InStock:     r.InStock,
	}
}

func fromProduct(p models.Product) productRow {
	return productRow{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Category:    p.Category,
		Description: p.Description,
		Keywords:    strings.Join(p.Keywords, ","),
		InStock:     p.InStock,
	}
}
