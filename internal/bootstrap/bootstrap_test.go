package bootstrap

import (
	"context"
	"testing"

	"shop-assistant/config"
	"shop-assistant/internal/checkout"
	"shop-assistant/internal/command"
	"shop-assistant/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLoadCatalogStatic(t *testing.T) {
	cat, closeFn, err := LoadCatalog(context.Background(), config.DatabaseConfig{CatalogSource: "static"})
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, 31, cat.Len())
}

func TestLoadCatalogPostgres(t *testing.T) {
	t.Skip("Integration test - requires Postgres")
}

func TestInterpreterStrategy(t *testing.T) {
	assert.Equal(t, command.MatchFirst, Interpreter(config.BusinessConfig{CommandMatch: "first"}).Strategy())
	assert.Equal(t, command.MatchLongest, Interpreter(config.BusinessConfig{CommandMatch: "fuzzy"}).Strategy())
}

func TestCheckoutOptions(t *testing.T) {
	cfg := config.BusinessConfig{
		TaxRate:            "0.10",
		PaymentSuccessRate: 1,
		PaymentDelay:       0,
	}
	m := checkout.New(CheckoutOptions(cfg)...)

	res, err := m.StartCheckout(context.Background(), []models.CartLine{
		{ProductID: "pantry-001", Name: "bread", Price: mustDecimal("2.50"), Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "1.00", res.Order.Tax.StringFixed(2))

	_, err = m.ProcessPayment(context.Background())
	assert.NoError(t, err)
}

func TestCheckoutOptionsIgnoresBadTaxRate(t *testing.T) {
	m := checkout.New(CheckoutOptions(config.BusinessConfig{TaxRate: "eight percent"})...)

	res, err := m.StartCheckout(context.Background(), []models.CartLine{
		{ProductID: "pantry-001", Name: "bread", Price: mustDecimal("2.50"), Quantity: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, "0.80", res.Order.Tax.StringFixed(2))
}

func TestIdentifierRequiresAPIKey(t *testing.T) {
	assert.Nil(t, Identifier(config.VisionConfig{}))
	assert.NotNil(t, Identifier(config.VisionConfig{APIKey: "sk-test"}))
}
