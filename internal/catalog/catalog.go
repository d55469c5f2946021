package catalog

import (
	"context"
	"fmt"

	"cart-service/internal/models"

	"github.com/shopspring/decimal"
)

// Catalog supplies the products that can be added to a cart.
type Catalog interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (*models.Product, error)
}

// Static is a catalog backed by a fixed product list.
type Static struct {
	products []models.Product
	byID     map[string]int
}

// NewStatic creates a catalog from products, keeping their order.
func NewStatic(products []models.Product) *Static {
	s := &Static{
		products: make([]models.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	copy(s.products, products)
	for i, p := range s.products {
		s.byID[p.ID] = i
	}
	return s
}

// NewMock returns the demo catalog.
func NewMock() *Static {
	return NewStatic(MockProducts())
}

func (s *Static) List(_ context.Context) ([]models.Product, error) {
	out := make([]models.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (s *Static) Get(_ context.Context, id string) (*models.Product, error) {
	idx, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrProductNotFound, id)
	}
	p := s.products[idx]
	return &p, nil
}

// MockProducts is the product list shown by the demo storefront.
func MockProducts() []models.Product {
	return []models.Product{
		{
			ID:          "1",
			Name:        "Wireless Headphones",
			Price:       decimal.RequireFromString("199.99"),
			Image:       "https://images.pexels.com/photos/3394650/pexels-photo-3394650.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Electronics",
			Description: "High-quality wireless headphones with noise cancellation",
		},
		{
			ID:          "2",
			Name:        "Laptop Stand",
			Price:       decimal.RequireFromString("49.99"),
			Image:       "https://images.pexels.com/photos/5632373/pexels-photo-5632373.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Accessories",
			Description: "Ergonomic laptop stand for better posture",
		},
		{
			ID:          "3",
			Name:        "Coffee Mug",
			Price:       decimal.RequireFromString("24.99"),
			Image:       "https://images.pexels.com/photos/982612/pexels-photo-982612.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Drinkware",
			Description: "Premium ceramic coffee mug with company logo",
		},
		{
			ID:          "4",
			Name:        "Desk Plant",
			Price:       decimal.RequireFromString("34.99"),
			Image:       "https://images.pexels.com/photos/4503821/pexels-photo-4503821.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Decor",
			Description: "Low-maintenance succulent plant for your desk",
		},
		{
			ID:          "5",
			Name:        "Notebook Set",
			Price:       decimal.RequireFromString("19.99"),
			Image:       "https://images.pexels.com/photos/4226914/pexels-photo-4226914.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Stationery",
			Description: "Set of 3 premium notebooks for note-taking",
		},
		{
			ID:          "6",
			Name:        "Bluetooth Speaker",
			Price:       decimal.RequireFromString("89.99"),
			Image:       "https://images.pexels.com/photos/1649771/pexels-photo-1649771.jpeg?auto=compress&cs=tinysrgb&w=300",
			Category:    "Electronics",
			Description: "Portable Bluetooth speaker with excellent sound quality",
		},
	}
}
