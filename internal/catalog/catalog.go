// Package catalog holds the product reference data and the lookups the
// assistant runs against it. A Catalog is immutable once built.
package catalog

import (
	"errors"
	"sort"
	"strings"

	"shop-assistant/internal/models"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned when no tier of the lookup matches.
var ErrProductNotFound = errors.New("product not found")

// Catalog is a read-only product list.
type Catalog struct {
	products []models.Product
	byID     map[string]int
}

// New builds a catalog from the given products. The slice and keyword
// lists are copied so later changes by the caller are not observed.
func New(products []models.Product) *Catalog {
	c := &Catalog{
		products: make([]models.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		c.products[i] = cloneProduct(p)
		c.byID[p.ID] = i
	}
	return c
}

// Default returns the built-in demo catalog.
func Default() *Catalog {
	return New(defaultProducts)
}

// DefaultProducts returns a copy of the built-in demo products.
func DefaultProducts() []models.Product {
	out := make([]models.Product, len(defaultProducts))
	for i, p := range defaultProducts {
		out[i] = cloneProduct(p)
	}
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// All returns every product in catalog order.
func (c *Catalog) All() []models.Product {
	out := make([]models.Product, len(c.products))
	for i, p := range c.products {
		out[i] = cloneProduct(p)
	}
	return out
}

// Get looks a product up by id.
func (c *Catalog) Get(id string) (models.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return cloneProduct(c.products[i]), true
}

// Find resolves a free-text term to a product. Tiers are tried in order and
// the first product matching the first successful tier wins:
// exact name, exact keyword, name containment, keyword containment.
func (c *Catalog) Find(term string) (models.Product, bool) {
	t := normalize(term)
	if t == "" {
		return models.Product{}, false
	}

	tiers := []func(models.Product) bool{
		func(p models.Product) bool { return strings.ToLower(p.Name) == t },
		func(p models.Product) bool {
			for _, kw := range p.Keywords {
				if strings.ToLower(kw) == t {
					return true
				}
			}
			return false
		},
		func(p models.Product) bool { return containsEither(strings.ToLower(p.Name), t) },
		func(p models.Product) bool {
			for _, kw := range p.Keywords {
				if containsEither(strings.ToLower(kw), t) {
					return true
				}
			}
			return false
		},
	}

	for _, match := range tiers {
		for _, p := range c.products {
			if match(p) {
				return cloneProduct(p), true
			}
		}
	}
	return models.Product{}, false
}

// Search returns every product whose name, description or any keyword
// contains the query. No ranking is applied.
func (c *Catalog) Search(query string) []models.Product {
	t := normalize(query)
	results := []models.Product{}
	for _, p := range c.products {
		if strings.Contains(strings.ToLower(p.Name), t) ||
			strings.Contains(strings.ToLower(p.Description), t) ||
			anyContains(p.Keywords, t) {
			results = append(results, cloneProduct(p))
		}
	}
	return results
}

// ByCategory returns the products of a category, case-insensitively.
func (c *Catalog) ByCategory(category string) []models.Product {
	results := []models.Product{}
	for _, p := range c.products {
		if strings.EqualFold(p.Category, category) {
			results = append(results, cloneProduct(p))
		}
	}
	return results
}

// Categories returns the sorted set of distinct categories.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	categories := []string{}
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func anyContains(keywords []string, t string) bool {
	for _, kw := range keywords {
		if strings.Contains(strings.ToLower(kw), t) {
			return true
		}
	}
	return false
}

func cloneProduct(p models.Product) models.Product {
	if p.Keywords != nil {
		kws := make([]string, len(p.Keywords))
		copy(kws, p.Keywords)
		p.Keywords = kws
	}
	return p
}

func usd(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
