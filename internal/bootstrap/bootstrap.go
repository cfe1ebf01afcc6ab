// Package bootstrap builds the shared collaborators of the server and
// terminal binaries from config.
package bootstrap

import (
	"context"
	"fmt"

	"shop-assistant/config"
	"shop-assistant/internal/broker"
	"shop-assistant/internal/cart"
	"shop-assistant/internal/catalog"
	"shop-assistant/internal/checkout"
	"shop-assistant/internal/command"
	"shop-assistant/internal/service"
	"shop-assistant/internal/store"
	"shop-assistant/internal/util"
	"shop-assistant/internal/vision"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LoadCatalog returns the built-in catalog, or the products table when
// CATALOG_SOURCE=postgres. An empty table is seeded from the built-in list.
func LoadCatalog(ctx context.Context, cfg config.DatabaseConfig) (*catalog.Catalog, func() error, error) {
	if cfg.CatalogSource != "postgres" {
		return catalog.Default(), func() error { return nil }, nil
	}

	logger := util.GetLogger()

	db, err := store.NewStore(cfg.URL)
	if err != nil {
		return nil, nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}

	n, err := db.CountProducts(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to count products: %w", err)
	}
	if n == 0 {
		if err := db.SeedProducts(ctx, catalog.DefaultProducts()); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("Seeded product catalog", zap.Int("products", len(catalog.DefaultProducts())))
	}

	products, err := db.GetProducts(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Catalog loaded from database", zap.Int("products", len(products)))

	return catalog.New(products), db.Close, nil
}

// Interpreter builds the command interpreter for the configured strategy.
func Interpreter(cfg config.BusinessConfig) *command.Interpreter {
	strategy, err := command.ParseStrategy(cfg.CommandMatch)
	if err != nil {
		util.GetLogger().Warn("Falling back to longest command match", zap.Error(err))
	}
	return command.NewInterpreter(command.Commands, strategy)
}

// CheckoutOptions translates the business config into checkout options.
func CheckoutOptions(cfg config.BusinessConfig) []checkout.Option {
	opts := []checkout.Option{
		checkout.WithPaymentDelay(cfg.PaymentDelay),
		checkout.WithPaymentDecider(checkout.RandomDecider(cfg.PaymentSuccessRate)),
		checkout.WithStrictSteps(cfg.StrictSteps),
	}
	if rate, err := decimal.NewFromString(cfg.TaxRate); err == nil {
		opts = append(opts, checkout.WithTaxRate(rate))
	} else {
		util.GetLogger().Warn("Invalid TAX_RATE, using default",
			zap.String("tax_rate", cfg.TaxRate),
			zap.Error(err))
	}
	return opts
}

// Identifier returns the vision backend, or nil without an API key.
func Identifier(cfg config.VisionConfig) vision.Identifier {
	if cfg.APIKey == "" {
		util.GetLogger().Warn("OPENAI_API_KEY not set, object identification disabled")
		return nil
	}
	return vision.NewOpenAIIdentifier(vision.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
}

// AssistantConfig assembles the per-session collaborators.
func AssistantConfig(cfg *config.Config, cat *catalog.Catalog, repo cart.Repository, identifier vision.Identifier, publisher *broker.EventPublisher) service.AssistantConfig {
	return service.AssistantConfig{
		Catalog:         cat,
		Interpreter:     Interpreter(cfg.Business),
		Repository:      repo,
		Identifier:      identifier,
		Publisher:       publisher,
		VisionTimeout:   cfg.Vision.Timeout,
		CheckoutOptions: CheckoutOptions(cfg.Business),
	}
}
