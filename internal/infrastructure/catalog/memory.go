package catalog

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/shopscan/backend/internal/domain"
)

// MemoryCatalog is a thread-safe in-memory product catalog. Entries keep
// their insertion order, which doubles as the catalog's internal ranking:
// FindByText returns matches in that order, already deduplicated.
type MemoryCatalog struct {
	mutex     sync.RWMutex
	products  []domain.LocalProduct
	byBarcode map[string]int // barcode -> index into products
	byID      map[string]int
}

// NewMemoryCatalog creates an empty in-memory catalog
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		byBarcode: make(map[string]int),
		byID:      make(map[string]int),
	}
}

// LoadFile seeds the catalog from a JSON file holding an array of products.
// A missing path is not an error; the catalog simply starts empty.
func (c *MemoryCatalog) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var products []domain.LocalProduct
	if err := json.Unmarshal(data, &products); err != nil {
		return err
	}

	for _, p := range products {
		c.Add(p)
	}
	return nil
}

// Add appends a product to the catalog, indexing its barcode and ID
func (c *MemoryCatalog) Add(product domain.LocalProduct) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idx := len(c.products)
	c.products = append(c.products, product)
	if product.Barcode != "" {
		c.byBarcode[product.Barcode] = idx
	}
	if product.ID != "" {
		c.byID[product.ID] = idx
	}
}

// FindByBarcode looks up a product by exact barcode match. A hit records the
// scan on the product. Returns ErrProductNotFound on a miss.
func (c *MemoryCatalog) FindByBarcode(ctx context.Context, barcode string) (*domain.LocalProduct, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	idx, exists := c.byBarcode[barcode]
	if !exists {
		return nil, domain.ErrProductNotFound
	}

	c.products[idx].ScanCount++
	c.products[idx].LastScanned = time.Now()

	product := c.products[idx]
	return &product, nil
}

// FindByText searches products by case-insensitive substring match against
// name, brand, and category, preserving catalog order
func (c *MemoryCatalog) FindByText(ctx context.Context, query string, limit int) ([]domain.LocalProduct, error) {
	if limit <= 0 {
		return nil, nil
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var matches []domain.LocalProduct
	for _, p := range c.products {
		if matchesQuery(p, needle) {
			matches = append(matches, p)
			if len(matches) >= limit {
				break
			}
		}
	}
	return matches, nil
}

// FindByID looks up a product by its catalog identity
func (c *MemoryCatalog) FindByID(ctx context.Context, id string) (*domain.LocalProduct, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	idx, exists := c.byID[id]
	if !exists {
		return nil, domain.ErrProductNotFound
	}
	product := c.products[idx]
	return &product, nil
}

// List returns all catalog products in insertion order
func (c *MemoryCatalog) List(ctx context.Context) ([]domain.LocalProduct, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	products := make([]domain.LocalProduct, len(c.products))
	copy(products, c.products)
	return products, nil
}

// Size returns the current number of catalog entries
func (c *MemoryCatalog) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.products)
}

// matchesQuery checks a single product against a lowercased needle
func matchesQuery(p domain.LocalProduct, needle string) bool {
	if strings.Contains(strings.ToLower(p.Name), needle) {
		return true
	}
	if p.Brand != "" && strings.Contains(strings.ToLower(p.Brand), needle) {
		return true
	}
	if p.Category != "" && strings.Contains(strings.ToLower(p.Category), needle) {
		return true
	}
	return p.Barcode != "" && p.Barcode == needle
}
