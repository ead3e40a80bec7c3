package trends

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"net/url"
	"time"

	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

const sourceID = "google_trends"

// regionConfig maps markets to the interest service's region codes.
var regionConfig = map[models.Market]string{
	models.MarketNZ: "NZ",
	models.MarketAU: "AU",
}

// Client fetches search-interest time series from the trends service.
// With MOCK_TRENDS set it serves a deterministic synthetic series
// instead of calling the network — an explicit switch, never a silent
// fallback on failure.
type Client struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig
	http   *http.Client
}

// New creates a trends Client.
func New(cfg *config.Config, logger *utils.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// ID returns the source identifier.
func (c *Client) ID() string { return sourceID }

// interestResponse is the wire shape of the interest endpoint.
type interestResponse struct {
	Data []struct {
		Date  string  `json:"date"`
		Value float64 `json:"value"`
	} `json:"data"`
}

// FetchInterest returns the recent interest series for a keyword.
// Transient failures surface as sources.ErrUnavailable.
func (c *Client) FetchInterest(ctx context.Context, keyword string, market models.Market) (*models.InterestSeries, error) {
	if c.cfg.MockTrends {
		return mockSeries(keyword, market), nil
	}
	if c.cfg.TrendsBaseURL == "" {
		return nil, sources.ErrUnavailable
	}

	endpoint := fmt.Sprintf("%s/interest?keyword=%s&region=%s",
		c.cfg.TrendsBaseURL, url.QueryEscape(keyword), regionConfig[market])

	var resp interestResponse
	err := c.retry.Do(ctx, fmt.Sprintf("trends %q", keyword), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		res, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			return fmt.Errorf("trends: status %d", res.StatusCode)
		}
		return json.NewDecoder(res.Body).Decode(&resp)
	})
	if err != nil {
		c.logger.Warn("[trends] %q failed: %v", keyword, err)
		return nil, sources.ErrUnavailable
	}
	if len(resp.Data) == 0 {
		return nil, sources.ErrUnavailable
	}

	series := &models.InterestSeries{Keyword: keyword, Market: market}
	for _, d := range resp.Data {
		series.Points = append(series.Points, models.InterestPoint{Date: d.Date, Value: clamp100(d.Value)})
	}
	return series, nil
}

// mockSeries generates 13 weekly points seeded by keyword and market so
// repeated runs see identical data.
func mockSeries(keyword string, market models.Market) *models.InterestSeries {
	h := fnv.New32a()
	h.Write([]byte(keyword))
	h.Write([]byte(market))
	seed := h.Sum32()

	series := &models.InterestSeries{Keyword: keyword, Market: market}
	base := 30 + float64(seed%40)
	drift := float64(int(seed%11)) - 5

	start := time.Now().AddDate(0, -3, 0)
	for i := 0; i < 13; i++ {
		wobble := float64((seed>>uint(i%16))%7) - 3
		value := clamp100(base + drift*float64(i)/2 + wobble)
		series.Points = append(series.Points, models.InterestPoint{
			Date:  start.AddDate(0, 0, 7*i).Format("2006-01-02"),
			Value: value,
		})
	}
	return series
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
