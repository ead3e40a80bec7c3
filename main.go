package main

import (
	"context"
	"os"

	"aunz-product-finder/catalog"
	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/services"
	"aunz-product-finder/sources"
	"aunz-product-finder/sources/ebay"
	"aunz-product-finder/sources/marketplace"
	"aunz-product-finder/sources/supplier"
	"aunz-product-finder/sources/trends"
	"aunz-product-finder/storage"
	"aunz-product-finder/utils"
)

func main() {
	logger := utils.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	market := models.Market(cfg.Market)

	logger.Info("=== AU/NZ Product Finder starting ===")
	logger.Info("Config — market: %s | top-N: %d | concurrency: %d | rate: %dms | timeout: %ds",
		market, cfg.TopN, cfg.ConcurrencyLimit, cfg.RateLimitMs, cfg.RunTimeoutSeconds)

	trademe := marketplace.NewTradeMe(cfg, logger)
	defer trademe.Close()
	amazon := marketplace.NewAmazonAU(cfg, logger)
	defer amazon.Close()
	temu := marketplace.NewTemu(cfg, logger)
	defer temu.Close()
	ebayClient := ebay.New(cfg, logger)

	trendsClient := trends.New(cfg, logger)

	// A missing supplier database degrades the profit signal instead of
	// aborting the run.
	var supplierSource sources.SupplierSource
	supplierRepo, err := supplier.Open(cfg.DSN(), logger)
	if err != nil {
		logger.Warn("Supplier database unavailable — profit scores will be zero: %v", err)
	} else {
		defer supplierRepo.Close()
		supplierSource = supplierRepo
	}

	engine := services.NewEngine(
		cfg,
		logger,
		catalog.Default,
		[]sources.ListingSource{trademe, amazon, ebayClient, temu},
		trendsClient,
		supplierSource,
		services.NewMemoryStore(),
	)

	result, err := engine.CalculateRanking(context.Background(), market)
	if err != nil {
		logger.Error("Ranking run failed: %v", err)
		os.Exit(1)
	}

	services.PrintResult(result)

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		os.Exit(1)
	}
	defer csvWriter.Close()

	if err := csvWriter.WriteResult(result); err != nil {
		logger.Error("CSV export failed: %v", err)
	} else {
		logger.Info("Ranking exported to %s", cfg.CSVOutputPath)
	}
}
