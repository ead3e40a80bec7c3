package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"aunz-product-finder/models"
)

// ErrBadWeights is returned when the configured scoring weights do not
// sum to exactly 1.0.
var ErrBadWeights = errors.New("scoring weights must sum to 1.0")

// Weights are the fixed scoring weights. Their sum is a contract, not a
// tunable default — Load rejects any combination that does not sum to 1.0.
type Weights struct {
	Demand      float64 `envconfig:"WEIGHT_DEMAND" default:"0.40"`
	Trend       float64 `envconfig:"WEIGHT_TREND" default:"0.20"`
	Profit      float64 `envconfig:"WEIGHT_PROFIT" default:"0.25"`
	Competition float64 `envconfig:"WEIGHT_COMPETITION" default:"0.15"`
}

// Sum returns the total of the four weights.
func (w Weights) Sum() float64 {
	return w.Demand + w.Trend + w.Profit + w.Competition
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	PostgresPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	PostgresUser     string `envconfig:"POSTGRES_USER" default:"finder"`
	PostgresPassword string `envconfig:"POSTGRES_PASSWORD" default:"finder123"`
	PostgresDB       string `envconfig:"POSTGRES_DB" default:"supplier_db"`
	PostgresSSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`

	TopN              int `envconfig:"TOP_N" default:"10"`
	ConcurrencyLimit  int `envconfig:"CONCURRENCY_LIMIT" default:"3"`
	RateLimitMs       int `envconfig:"RATE_LIMIT_MS" default:"2000"`
	MaxRetries        int `envconfig:"MAX_RETRIES" default:"3"`
	RunTimeoutSeconds int `envconfig:"RUN_TIMEOUT_SECONDS" default:"120"`

	Weights Weights

	MarginCeilingPercent  float64 `envconfig:"MARGIN_CEILING_PERCENT" default:"80"`
	DemandSaturationCount int     `envconfig:"DEMAND_SATURATION_COUNT" default:"10000"`
	CompetitionFloorCount int     `envconfig:"COMPETITION_FLOOR_COUNT" default:"50000"`

	DefaultQuantity    int     `envconfig:"DEFAULT_QUANTITY" default:"100"`
	ShippingPerUnitCNY float64 `envconfig:"SHIPPING_PER_UNIT_CNY" default:"15"`
	RateCNYToAUD       float64 `envconfig:"RATE_CNY_AUD" default:"0.213"`
	RateCNYToNZD       float64 `envconfig:"RATE_CNY_NZD" default:"0.233"`

	TrendsBaseURL string `envconfig:"TRENDS_BASE_URL" default:""`
	MockTrends    bool   `envconfig:"MOCK_TRENDS" default:"false"`

	EbayBaseURL string `envconfig:"EBAY_BASE_URL" default:"https://api.ebay.com"`
	EbayAppID   string `envconfig:"EBAY_APP_ID" default:""`
	EbayCertID  string `envconfig:"EBAY_CERT_ID" default:""`

	CSVOutputPath string `envconfig:"CSV_OUTPUT_PATH" default:"./output/ranking.csv"`
	ChromeBin     string `envconfig:"CHROME_BIN" default:""`
	Market        string `envconfig:"MARKET" default:"NZ"`
}

// Load reads the .env file (when present), maps environment variables
// onto a Config, and validates it.
func Load() (*Config, error) {
	// .env is optional; production environments set real env vars.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the structural invariants of the configuration.
func (c *Config) Validate() error {
	if math.Abs(c.Weights.Sum()-1.0) > 1e-9 {
		return fmt.Errorf("config: %w (got %v)", ErrBadWeights, c.Weights.Sum())
	}
	if c.TopN <= 0 {
		return fmt.Errorf("config: TOP_N must be positive, got %d", c.TopN)
	}
	if c.ConcurrencyLimit <= 0 {
		return fmt.Errorf("config: CONCURRENCY_LIMIT must be positive, got %d", c.ConcurrencyLimit)
	}
	if c.DemandSaturationCount <= 0 || c.CompetitionFloorCount <= 0 {
		return fmt.Errorf("config: saturation counts must be positive")
	}
	if c.MarginCeilingPercent <= 0 {
		return fmt.Errorf("config: MARGIN_CEILING_PERCENT must be positive")
	}
	return nil
}

// ExchangeRate returns the CNY-to-local conversion rate for a market.
func (c *Config) ExchangeRate(m models.Market) float64 {
	if m == models.MarketAU {
		return c.RateCNYToAUD
	}
	return c.RateCNYToNZD
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}
