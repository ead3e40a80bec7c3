package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

var (
	// countRegexp captures the numeric result count out of header text
	// like "4,060 results for bluetooth earbuds".
	countRegexp = regexp.MustCompile(`[\d,]+`)
	// priceRegexp captures a numeric price value.
	priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
)

// Site describes one marketplace: how to build a search URL and where
// the result count and listing prices live on the results page.
type Site struct {
	ID        string
	Markets   []models.Market
	SearchURL func(keyword string, market models.Market) string
	CountSel  string
	PriceSel  string
}

// Scraper is a headless-browser adapter for one marketplace site. It
// never returns an error for transient failure other than
// sources.ErrUnavailable, and is safe to call concurrently across
// categories (each fetch gets its own browser tab).
type Scraper struct {
	site   Site
	cfg    *config.Config
	logger *utils.Logger
	retry  *utils.RetryConfig

	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

// New creates a ready-to-use marketplace Scraper.
func New(site Site, cfg *config.Config, logger *utils.Logger) *Scraper {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if bin := findChromeBinary(cfg.ChromeBin); bin != "" {
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Scraper{
		site:   site,
		cfg:    cfg,
		logger: logger,
		retry: &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		allocCtx:    allocCtx,
		cancelAlloc: cancelAlloc,
	}
}

// ID returns the marketplace identifier.
func (s *Scraper) ID() string { return s.site.ID }

// ServesMarket reports whether this marketplace serves the market.
func (s *Scraper) ServesMarket(m models.Market) bool {
	for _, sm := range s.site.Markets {
		if sm == m {
			return true
		}
	}
	return false
}

// Close shuts down the browser allocator.
func (s *Scraper) Close() {
	s.cancelAlloc()
}

// FetchListings loads the search results page for the keyword and
// extracts the result count and price range. Timeouts, rate limits and
// parse failures all surface as sources.ErrUnavailable.
func (s *Scraper) FetchListings(ctx context.Context, keyword string, market models.Market) (*models.ListingSet, error) {
	var countText string
	var priceTexts []string

	err := s.retry.Do(ctx, fmt.Sprintf("%s search %q", s.site.ID, keyword), func() error {
		tabCtx, cancelTab := chromedp.NewContext(s.allocCtx,
			chromedp.WithLogf(func(string, ...interface{}) {}))
		defer cancelTab()

		tabCtx, cancelTimeout := context.WithTimeout(tabCtx, 30*time.Second)
		defer cancelTimeout()

		// Honour caller cancellation (run-level timeout).
		go func() {
			select {
			case <-ctx.Done():
				cancelTab()
			case <-tabCtx.Done():
			}
		}()

		countText = ""
		priceTexts = nil
		return chromedp.Run(tabCtx,
			chromedp.Navigate(s.site.SearchURL(keyword, market)),
			chromedp.WaitVisible(s.site.CountSel, chromedp.ByQuery),
			chromedp.Text(s.site.CountSel, &countText, chromedp.ByQuery),
			chromedp.Evaluate(textContentsJS(s.site.PriceSel), &priceTexts),
		)
	})
	if err != nil {
		s.logger.Warn("[%s] search %q failed: %v", s.site.ID, keyword, err)
		return nil, sources.ErrUnavailable
	}

	count, ok := parseCount(countText)
	if !ok {
		s.logger.Warn("[%s] could not parse result count from %q", s.site.ID, countText)
		return nil, sources.ErrUnavailable
	}

	return &models.ListingSet{
		SourceID:   s.site.ID,
		Market:     market,
		Count:      count,
		PriceRange: priceStats(priceTexts),
		FetchedAt:  time.Now(),
	}, nil
}

// NewTradeMe creates the TradeMe (NZ) marketplace adapter.
func NewTradeMe(cfg *config.Config, logger *utils.Logger) *Scraper {
	return New(Site{
		ID:      "trademe",
		Markets: []models.Market{models.MarketNZ},
		SearchURL: func(keyword string, _ models.Market) string {
			return "https://www.trademe.co.nz/Browse/SearchResults.aspx?searchString=" +
				url.QueryEscape(keyword) + "&type=Search&searchType=all"
		},
		CountSel: ".tm-search-header-result-count__heading",
		PriceSel: ".tm-marketplace-search-card__price",
	}, cfg, logger)
}

// NewAmazonAU creates the Amazon Australia marketplace adapter. Amazon
// AU ships to both target markets, so it contributes to NZ and AU runs.
func NewAmazonAU(cfg *config.Config, logger *utils.Logger) *Scraper {
	return New(Site{
		ID:      "amazon_au",
		Markets: []models.Market{models.MarketNZ, models.MarketAU},
		SearchURL: func(keyword string, _ models.Market) string {
			return "https://www.amazon.com.au/s?k=" + url.QueryEscape(keyword)
		},
		CountSel: "[data-component-type='s-result-info-bar']",
		PriceSel: "[data-component-type='s-search-result'] .a-price .a-offscreen",
	}, cfg, logger)
}

// NewTemu creates the Temu marketplace adapter. Temu runs separate
// storefronts per country, so the search URL depends on the market.
func NewTemu(cfg *config.Config, logger *utils.Logger) *Scraper {
	return New(Site{
		ID:      "temu",
		Markets: []models.Market{models.MarketNZ, models.MarketAU},
		SearchURL: func(keyword string, market models.Market) string {
			base := "https://www.temu.com/nz"
			if market == models.MarketAU {
				base = "https://www.temu.com/au"
			}
			return base + "/search_result.html?search_key=" + url.QueryEscape(keyword)
		},
		CountSel: "[class*='SearchResultHeader'] span",
		PriceSel: "[class*='goods'] [class*='price'], [class*='Goods'] [class*='Price']",
	}, cfg, logger)
}

// textContentsJS builds a script returning the text content of every
// element matching the selector.
func textContentsJS(sel string) string {
	return fmt.Sprintf(
		`Array.from(document.querySelectorAll(%q)).map(e => e.textContent)`, sel)
}

// parseCount extracts the result count from header text. Headers like
// "1-48 of over 20,648 results" carry several numbers; the count is the
// largest one.
func parseCount(text string) (int, bool) {
	matches := countRegexp.FindAllString(strings.ReplaceAll(text, ",", ""), -1)
	best := -1
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n > best {
			best = n
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

// priceStats computes min/max/avg over raw price strings like "$45.90".
// Returns nil when no parseable prices were captured.
func priceStats(raw []string) *models.PriceRange {
	var prices []float64
	for _, r := range raw {
		cleaned := strings.ReplaceAll(r, ",", "")
		match := priceRegexp.FindString(cleaned)
		if match == "" {
			continue
		}
		v, err := strconv.ParseFloat(match, 64)
		if err != nil || v <= 0 {
			continue
		}
		prices = append(prices, v)
	}
	return models.NewPriceRange(prices)
}

// findChromeBinary locates a usable Chrome/Chromium binary.
func findChromeBinary(configured string) string {
	if configured != "" {
		return configured
	}
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
