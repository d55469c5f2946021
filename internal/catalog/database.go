package catalog

import (
	"context"

	"cart-service/internal/models"
)

// ProductStore is the subset of the database store the catalog reads from.
type ProductStore interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

// Database serves the catalog from the products table.
type Database struct {
	store ProductStore
}

// NewDatabase creates a database-backed catalog
func NewDatabase(store ProductStore) *Database {
	return &Database{store: store}
}

func (d *Database) List(ctx context.Context) ([]models.Product, error) {
	return d.store.GetProducts(ctx)
}

func (d *Database) Get(ctx context.Context, id string) (*models.Product, error) {
	return d.store.GetProductByID(ctx, id)
}
