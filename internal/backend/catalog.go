package backend

import (
	"context"
	"sync"
)

// Product is the catalog view the cart API needs at add-time: display name,
// unit price and remaining stock.
type Product struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Category   string `json:"category"`
	Stock      int    `json:"stock"`
}

// Catalog resolves products for add-to-cart. Backed by the data backend in
// production; the in-memory implementation serves demo mode and tests.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
}

// MemoryCatalog is a mutex-guarded in-process Catalog.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func NewMemoryCatalog(products []Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[string]Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *MemoryCatalog) GetProduct(_ context.Context, id string) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// SetStock adjusts a product's remaining stock (used for initialization).
func (c *MemoryCatalog) SetStock(id string, stock int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.products[id]; ok {
		p.Stock = stock
		c.products[id] = p
	}
}

// SeedProducts is the demo catalog served when no data backend is wired.
func SeedProducts() []Product {
	return []Product{
		{ID: "p1", Name: "Noise-Cancelling Headphones", PriceCents: 12999, Category: "electronics", Stock: 10},
		{ID: "p2", Name: "Minimal Backpack", PriceCents: 4999, Category: "fashion", Stock: 18},
		{ID: "p3", Name: "Ergonomic Desk Lamp", PriceCents: 2599, Category: "home", Stock: 12},
		{ID: "p4", Name: "Bestselling Novel", PriceCents: 899, Category: "books", Stock: 40},
	}
}
