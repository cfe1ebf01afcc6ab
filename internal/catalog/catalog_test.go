package catalog

import (
	"testing"

	"shop-assistant/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	assert.Equal(t, 31, c.Len())

	apple, ok := c.Get("fruit-001")
	require.True(t, ok)
	assert.Equal(t, "apple", apple.Name)
	assert.True(t, decimal.RequireFromString("1.99").Equal(apple.Price))
}

func TestFindTiers(t *testing.T) {
	c := Default()

	tests := []struct {
		term string
		want string
	}{
		{"apple", "apple"},
		{"  APPLE ", "apple"},
		{"red apple", "apple"},
		{"cola", "soda"},
		{"bottled water", "bottle of water"},
		{"a ripe banana please", "banana"},
		{"wheat", "bread"},
		{"cell", "smartphone"},
		{"fruit", "apple"},
	}

	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			p, ok := c.Find(tt.term)
			require.True(t, ok)
			assert.Equal(t, tt.want, p.Name)
		})
	}
}

func TestFindExactNotShadowedByLooserMatch(t *testing.T) {
	c := New([]models.Product{
		{ID: "1", Name: "notebook computer", Keywords: []string{"laptop"}},
		{ID: "2", Name: "notebook", Keywords: []string{"paper"}},
	})

	p, ok := c.Find("notebook")
	require.True(t, ok)
	assert.Equal(t, "2", p.ID)
}

func TestFindKeywordBeforeSubstring(t *testing.T) {
	c := New([]models.Product{
		{ID: "1", Name: "pen holder", Keywords: []string{"desk"}},
		{ID: "2", Name: "ballpoint", Keywords: []string{"pen"}},
	})

	p, ok := c.Find("pen")
	require.True(t, ok)
	assert.Equal(t, "2", p.ID)
}

func TestFindNotFound(t *testing.T) {
	c := Default()

	_, ok := c.Find("spaceship")
	assert.False(t, ok)

	_, ok = c.Find("   ")
	assert.False(t, ok)
}

func TestFindIsIdempotent(t *testing.T) {
	c := Default()
	for _, p := range c.All() {
		first, ok := c.Find(p.Name)
		require.True(t, ok)
		second, ok := c.Find(p.Name)
		require.True(t, ok)
		assert.Equal(t, first, second)
		assert.Equal(t, p.ID, first.ID)
	}
}

func TestSearch(t *testing.T) {
	c := Default()

	results := c.Search("fresh")
	assert.NotEmpty(t, results)
	for _, p := range results {
		assert.Contains(t, p.Description+" "+p.Name, "resh")
	}

	juices := c.Search("juice")
	require.Len(t, juices, 1)
	assert.Equal(t, "juice", juices[0].Name)

	assert.Empty(t, c.Search("spaceship"))
}

func TestByCategoryAndCategories(t *testing.T) {
	c := Default()

	dairy := c.ByCategory("DAIRY")
	assert.Len(t, dairy, 4)

	assert.Empty(t, c.ByCategory("toys"))

	assert.Equal(t, []string{
		"beverages", "dairy", "electronics", "fruits", "household",
		"meat", "office", "pantry", "vegetables",
	}, c.Categories())
}

func TestCatalogIsImmutable(t *testing.T) {
	products := []models.Product{{ID: "1", Name: "apple", Keywords: []string{"fruit"}}}
	c := New(products)

	products[0].Name = "pear"
	products[0].Keywords[0] = "veg"

	p, ok := c.Get("1")
	require.True(t, ok)
	assert.Equal(t, "apple", p.Name)
	assert.Equal(t, []string{"fruit"}, p.Keywords)

	p.Keywords[0] = "changed"
	again, _ := c.Get("1")
	assert.Equal(t, "fruit", again.Keywords[0])
}
