package config

import (
	"errors"
	"testing"

	"aunz-product-finder/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.TopN != 10 {
		t.Errorf("TopN: got %d, want 10", cfg.TopN)
	}
	if got := cfg.Weights.Sum(); got != 1.0 {
		t.Errorf("weight sum: got %v, want exactly 1.0", got)
	}
	if cfg.Weights.Demand != 0.40 || cfg.Weights.Trend != 0.20 ||
		cfg.Weights.Profit != 0.25 || cfg.Weights.Competition != 0.15 {
		t.Errorf("unexpected default weights: %+v", cfg.Weights)
	}
}

func TestLoadRejectsBadWeightSum(t *testing.T) {
	t.Setenv("WEIGHT_DEMAND", "0.50")

	_, err := Load()
	if !errors.Is(err, ErrBadWeights) {
		t.Errorf("got %v, want ErrBadWeights", err)
	}
}

func TestValidateRejectsNonPositiveKnobs(t *testing.T) {
	base := func() *Config {
		cfg := &Config{
			TopN:                  10,
			ConcurrencyLimit:      3,
			Weights:               Weights{Demand: 0.40, Trend: 0.20, Profit: 0.25, Competition: 0.15},
			MarginCeilingPercent:  80,
			DemandSaturationCount: 10000,
			CompetitionFloorCount: 50000,
		}
		return cfg
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cfg := base()
	cfg.TopN = 0
	if err := cfg.Validate(); err == nil {
		t.Error("TopN=0 accepted")
	}

	cfg = base()
	cfg.ConcurrencyLimit = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative concurrency accepted")
	}

	cfg = base()
	cfg.DemandSaturationCount = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero demand saturation accepted")
	}
}

func TestExchangeRatePerMarket(t *testing.T) {
	cfg := &Config{RateCNYToAUD: 0.213, RateCNYToNZD: 0.233}

	if got := cfg.ExchangeRate(models.MarketAU); got != 0.213 {
		t.Errorf("AU rate: got %v, want 0.213", got)
	}
	if got := cfg.ExchangeRate(models.MarketNZ); got != 0.233 {
		t.Errorf("NZ rate: got %v, want 0.233", got)
	}
}
