// Package ebay fetches marketplace listing counts and prices from the
// eBay Browse API. Unlike the headless-browser marketplaces, eBay
// exposes a public API, so this adapter speaks HTTP with an OAuth
// client-credentials token instead of driving a browser.
package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

const (
	sourceID    = "ebay"
	searchLimit = 50
	oauthScope  = "https://api.ebay.com/oauth/api_scope"
)

// eBay has no NZ marketplace; the AU marketplace serves both markets.
var marketplaceIDs = map[models.Market]string{
	models.MarketNZ: "EBAY_AU",
	models.MarketAU: "EBAY_AU",
}

// Client talks to the eBay Browse API. It caches the application
// access token until shortly before expiry and is safe for concurrent
// use across categories.
type Client struct {
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig
	http   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// New creates an eBay Browse API client.
func New(cfg *config.Config, logger *utils.Logger) *Client {
	return &Client{
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Second,
			Logger:      logger,
		},
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// ID returns the marketplace identifier.
func (c *Client) ID() string { return sourceID }

// ServesMarket reports whether eBay serves the market.
func (c *Client) ServesMarket(m models.Market) bool {
	_, ok := marketplaceIDs[m]
	return ok
}

// FetchListings searches the Browse API for the keyword and returns
// the total listing count plus a price range over the first result
// page. Missing credentials and API failures surface as
// sources.ErrUnavailable.
func (c *Client) FetchListings(ctx context.Context, keyword string, market models.Market) (*models.ListingSet, error) {
	if c.cfg.EbayAppID == "" || c.cfg.EbayCertID == "" {
		return nil, sources.ErrUnavailable
	}

	var payload searchResponse
	err := c.retry.Do(ctx, fmt.Sprintf("ebay search %q", keyword), func() error {
		token, err := c.accessToken(ctx)
		if err != nil {
			return err
		}
		return c.search(ctx, token, keyword, market, &payload)
	})
	if err != nil {
		c.logger.Warn("[ebay] search %q failed: %v", keyword, err)
		return nil, sources.ErrUnavailable
	}

	var prices []float64
	for _, item := range payload.ItemSummaries {
		if v, err := strconv.ParseFloat(item.Price.Value, 64); err == nil {
			prices = append(prices, v)
		}
	}

	return &models.ListingSet{
		SourceID:   sourceID,
		Market:     market,
		Count:      payload.Total,
		PriceRange: models.NewPriceRange(prices),
		FetchedAt:  time.Now(),
	}, nil
}

type searchResponse struct {
	Total         int `json:"total"`
	ItemSummaries []struct {
		Price struct {
			Value string `json:"value"`
		} `json:"price"`
	} `json:"itemSummaries"`
}

func (c *Client) search(ctx context.Context, token, keyword string, market models.Market, out *searchResponse) error {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("limit", strconv.Itoa(searchLimit))
	q.Set("sort", "price")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.EbayBaseURL+"/buy/browse/v1/item_summary/search?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-EBAY-C-MARKETPLACE-ID", marketplaceIDs[market])

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ebay search: status %d", resp.StatusCode)
	}

	*out = searchResponse{}
	return json.NewDecoder(resp.Body).Decode(out)
}

// accessToken returns a cached application token, requesting a fresh
// one via the client-credentials grant when the cache is cold or
// within a minute of expiry.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", oauthScope)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.EbayBaseURL+"/identity/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.EbayAppID, c.cfg.EbayCertID)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ebay token: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("ebay token: empty access_token")
	}

	c.token = payload.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	return c.token, nil
}
