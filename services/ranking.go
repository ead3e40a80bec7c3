package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

// Structurally invalid input fails the whole run. Individual source
// failures never do.
var (
	ErrUnknownMarket = errors.New("unknown market")
	ErrEmptyCatalog  = errors.New("empty category catalog")
)

// Run phases, logged as run-level transitions. Fetching and scoring
// are interleaved per category inside the worker pool, so the run
// reports a single fetching phase before sorting.
const (
	stateFetching = "fetching"
	stateSorted   = "sorted"
	stateDone     = "done"
)

// Engine orchestrates fetch → normalize → weighted-combine → sort →
// truncate for one market. It exclusively owns every intermediate
// structure during a run; a new run produces a wholly new result.
type Engine struct {
	cfg      *config.Config
	logger   *utils.Logger
	catalog  []models.Category
	listings []sources.ListingSource
	interest sources.InterestSource
	supplier sources.SupplierSource
	store    Store
	norm     *Normalizer

	group singleflight.Group
}

// NewEngine wires the engine with its source adapters and result store.
// The interest and supplier sources may be nil; they are then treated
// as permanently unavailable rather than as errors.
func NewEngine(
	cfg *config.Config,
	logger *utils.Logger,
	catalog []models.Category,
	listings []sources.ListingSource,
	interest sources.InterestSource,
	supplier sources.SupplierSource,
	store Store,
) *Engine {
	return &Engine{
		cfg:      cfg,
		logger:   logger,
		catalog:  catalog,
		listings: listings,
		interest: interest,
		supplier: supplier,
		store:    store,
		norm:     NewNormalizer(cfg),
	}
}

// Catalog returns the category catalog the engine ranks over.
func (e *Engine) Catalog() []models.Category {
	return e.catalog
}

// Weights returns the scoring weights in effect.
func (e *Engine) Weights() config.Weights {
	return e.cfg.Weights
}

// CalculateRanking triggers a full fresh run for the market and stores
// the result. Concurrent calls for the same market are coalesced onto
// one in-flight run. It errors only on invalid market or empty catalog.
func (e *Engine) CalculateRanking(ctx context.Context, market models.Market) (*models.RankingResult, error) {
	if !market.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMarket, market)
	}
	if len(e.catalog) == 0 {
		return nil, ErrEmptyCatalog
	}

	v, err, shared := e.group.Do(string(market), func() (interface{}, error) {
		return e.run(ctx, market), nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug("[ranking] %s: coalesced onto in-flight run", market)
	}
	return v.(*models.RankingResult), nil
}

// GetLatestRanking reads the result store without triggering a fetch.
func (e *Engine) GetLatestRanking(market models.Market) (*models.RankingResult, bool) {
	return e.store.Get(market)
}

// EstimateProfit is the ad-hoc "what if I buy N units" calculation. It
// uses the exact formula the engine embeds in every ranking entry.
func (e *Engine) EstimateProfit(costCNY, marketPriceLocal float64, quantity int, exchangeRate, shippingPerUnitCNY float64) models.ProfitAnalysis {
	return EstimateProfit(costCNY, marketPriceLocal, quantity, exchangeRate, shippingPerUnitCNY)
}

func (e *Engine) run(ctx context.Context, market models.Market) *models.RankingResult {
	start := time.Now()
	e.logState(market, stateFetching)

	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.cfg.RunTimeoutSeconds)*time.Second)
	defer cancel()

	tracker := utils.NewStatusTracker()
	pool := utils.NewWorkerPool(e.cfg.ConcurrencyLimit, e.cfg.RateLimitMs)

	var mu sync.Mutex
	entries := make([]*models.RankingEntry, 0, len(e.catalog))

	for _, cat := range e.catalog {
		cat := cat
		pool.Submit(func() {
			entry := e.scoreCategory(ctx, cat, market, tracker)
			mu.Lock()
			entries = append(entries, entry)
			mu.Unlock()
		})
	}
	pool.Wait()

	e.logState(market, stateSorted)
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.TotalScore != b.TotalScore {
			return a.TotalScore > b.TotalScore
		}
		if a.Scores.Demand != b.Scores.Demand {
			return a.Scores.Demand > b.Scores.Demand
		}
		return a.Category.ID < b.Category.ID
	})

	if len(entries) > e.cfg.TopN {
		entries = entries[:e.cfg.TopN]
	}
	for i, entry := range entries {
		entry.Rank = i + 1
	}

	result := &models.RankingResult{
		Market:             market,
		Entries:            entries,
		GeneratedAt:        time.Now(),
		ElapsedSeconds:     time.Since(start).Seconds(),
		SourceAvailability: tracker.Snapshot(),
	}

	e.store.Put(market, result)
	e.logState(market, stateDone)
	e.logger.Info("[ranking] %s: ranked %d categories in %.1fs", market, len(entries), result.ElapsedSeconds)
	return result
}

// fetchOutcome is the structured per-source capture for one category:
// exactly one of the value fields is set when err is nil.
type fetchOutcome struct {
	sourceID string
	listings *models.ListingSet
	interest *models.InterestSeries
	quote    *models.SupplierQuote
	err      error
}

// scoreCategory fans out all source calls for one category, waits for
// every call to settle, then normalizes the responses into a scored
// entry. A source failure zeroes its dimension; it never aborts the run.
func (e *Engine) scoreCategory(ctx context.Context, cat models.Category, market models.Market, tracker *utils.StatusTracker) *models.RankingEntry {
	outcomes := make(chan fetchOutcome, len(e.listings)+2)
	var wg sync.WaitGroup

	for _, src := range e.listings {
		if !src.ServesMarket(market) {
			continue
		}
		src := src
		wg.Add(1)
		go func() {
			defer wg.Done()
			set, err := src.FetchListings(ctx, cat.Keyword(), market)
			outcomes <- fetchOutcome{sourceID: src.ID(), listings: set, err: err}
		}()
	}

	if e.interest != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := e.interest.FetchInterest(ctx, cat.Keyword(), market)
			outcomes <- fetchOutcome{sourceID: e.interest.ID(), interest: series, err: err}
		}()
	}

	if e.supplier != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quote, err := e.supplier.FetchQuote(ctx, cat.LabelZH, 0)
			outcomes <- fetchOutcome{sourceID: e.supplier.ID(), quote: quote, err: err}
		}()
	}

	wg.Wait()
	close(outcomes)

	var sets []*models.ListingSet
	stats := make(map[string]*models.ListingSet)
	var series *models.InterestSeries
	var quote *models.SupplierQuote

	for out := range outcomes {
		tracker.Record(out.sourceID, out.err == nil)
		if out.err != nil {
			e.logger.Warn("[ranking] %s/%s: %s unavailable: %v", market, cat.ID, out.sourceID, out.err)
			continue
		}
		switch {
		case out.listings != nil:
			out.listings.CategoryID = cat.ID
			sets = append(sets, out.listings)
			stats[out.sourceID] = out.listings
		case out.interest != nil:
			out.interest.Direction = DeriveDirection(out.interest.Points)
			series = out.interest
		case out.quote != nil:
			quote = out.quote
		}
	}

	rate := e.cfg.ExchangeRate(market)
	marketPrice := e.norm.MarketPrice(sets)

	var costCNY float64
	if quote != nil {
		costCNY = quote.UnitPriceCNY
	}

	scores := models.ScoreBreakdown{
		Demand:      e.norm.DemandScore(sets),
		Trend:       e.norm.TrendScore(series),
		Profit:      e.norm.ProfitScore(costCNY, rate, marketPrice),
		Competition: e.norm.CompetitionScore(sets),
	}

	w := e.cfg.Weights
	total := w.Demand*scores.Demand +
		w.Trend*scores.Trend +
		w.Profit*scores.Profit +
		w.Competition*scores.Competition

	return &models.RankingEntry{
		Category:      cat,
		TotalScore:    total,
		Scores:        scores,
		PlatformStats: stats,
		SupplierQuote: quote,
		Profit:        EstimateProfit(costCNY, marketPrice, e.cfg.DefaultQuantity, rate, e.cfg.ShippingPerUnitCNY),
	}
}

func (e *Engine) logState(market models.Market, state string) {
	e.logger.Debug("[ranking] %s: %s", market, state)
}
