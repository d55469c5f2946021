package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"cart-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	price       NUMERIC(12,2) NOT NULL CHECK (price >= 0),
	image       TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cart_snapshots (
	session_id TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the tables the service needs
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// SeedProducts inserts products that are not yet in the catalog
func (s *Store) SeedProducts(ctx context.Context, products []models.Product) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range products {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO products (id, name, price, image, category, description)
			VALUES (:id, :name, :price, :image, :category, :description)
			ON CONFLICT (id) DO NOTHING`, p)
		if err != nil {
			return fmt.Errorf("failed to seed product %s: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// GetProducts retrieves all products
func (s *Store) GetProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id")
	return products, err
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}
