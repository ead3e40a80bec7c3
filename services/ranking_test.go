package services

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"aunz-product-finder/config"
	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

// fakeListings serves canned listing sets keyed by keyword.
type fakeListings struct {
	id      string
	markets []models.Market
	counts  map[string]int
	avg     map[string]float64
	fail    bool
	delay   time.Duration
	calls   int64

	// started is closed on the first fetch, so tests can hold a second
	// caller until a run is provably in flight.
	started   chan struct{}
	startOnce sync.Once
}

func (f *fakeListings) ID() string { return f.id }

func (f *fakeListings) ServesMarket(m models.Market) bool {
	for _, fm := range f.markets {
		if fm == m {
			return true
		}
	}
	return false
}

func (f *fakeListings) FetchListings(ctx context.Context, keyword string, market models.Market) (*models.ListingSet, error) {
	atomic.AddInt64(&f.calls, 1)
	if f.started != nil {
		f.startOnce.Do(func() { close(f.started) })
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, sources.ErrUnavailable
		}
	}
	if f.fail {
		return nil, sources.ErrUnavailable
	}
	s := &models.ListingSet{SourceID: f.id, Market: market, Count: f.counts[keyword], FetchedAt: time.Now()}
	if avg := f.avg[keyword]; avg > 0 {
		s.PriceRange = &models.PriceRange{Min: avg / 2, Max: avg * 2, Avg: avg}
	}
	return s, nil
}

type fakeInterest struct {
	values map[string][]float64
	fail   bool
}

func (f *fakeInterest) ID() string { return "google_trends" }

func (f *fakeInterest) FetchInterest(ctx context.Context, keyword string, market models.Market) (*models.InterestSeries, error) {
	if f.fail {
		return nil, sources.ErrUnavailable
	}
	s := &models.InterestSeries{Keyword: keyword, Market: market}
	for _, v := range f.values[keyword] {
		s.Points = append(s.Points, models.InterestPoint{Value: v})
	}
	if len(s.Points) == 0 {
		return nil, sources.ErrUnavailable
	}
	return s, nil
}

type fakeSupplier struct {
	quotes map[string]*models.SupplierQuote
	fail   bool
}

func (f *fakeSupplier) ID() string { return "suppliers_1688" }

func (f *fakeSupplier) FetchQuote(ctx context.Context, keyword string, maxPriceCNY float64) (*models.SupplierQuote, error) {
	if f.fail {
		return nil, sources.ErrUnavailable
	}
	q, ok := f.quotes[keyword]
	if !ok {
		return nil, sources.ErrUnavailable
	}
	return q, nil
}

func testCatalog() []models.Category {
	return []models.Category{
		{ID: "backpack", LabelEN: "backpack", LabelZH: "背包", Keywords: []string{"backpack"}},
		{ID: "power-bank", LabelEN: "power bank", LabelZH: "充电宝", Keywords: []string{"power bank"}},
		{ID: "smart-watch", LabelEN: "smart watch", LabelZH: "智能手表", Keywords: []string{"smart watch"}},
		{ID: "yoga-mat", LabelEN: "yoga mat", LabelZH: "瑜伽垫", Keywords: []string{"yoga mat"}},
	}
}

func healthySources() (*fakeListings, *fakeInterest, *fakeSupplier) {
	listings := &fakeListings{
		id:      "trademe",
		markets: []models.Market{models.MarketNZ},
		counts:  map[string]int{"backpack": 8500, "power bank": 900, "smart watch": 17000, "yoga mat": 1100},
		avg:     map[string]float64{"backpack": 65, "power bank": 45, "smart watch": 89, "yoga mat": 35},
	}
	interest := &fakeInterest{values: map[string][]float64{
		"backpack":    {40, 45, 50, 55, 60, 65},
		"power bank":  {60, 58, 55, 50, 45, 40},
		"smart watch": {70, 70, 72, 71, 73, 74},
		"yoga mat":    {30, 30, 31, 30, 29, 30},
	}}
	supplier := &fakeSupplier{quotes: map[string]*models.SupplierQuote{
		"背包":   {Title: "双肩背包", UnitPriceCNY: 28, ProductURL: "https://detail.1688.com/offer/1", MOQ: 2, SoldCount: 5000},
		"充电宝":  {Title: "移动电源", UnitPriceCNY: 22, ProductURL: "https://detail.1688.com/offer/2", MOQ: 10, SoldCount: 900},
		"智能手表": {Title: "智能手表", UnitPriceCNY: 45, ProductURL: "https://detail.1688.com/offer/3", MOQ: 1, SoldCount: 12000},
		"瑜伽垫":  {Title: "瑜伽垫", UnitPriceCNY: 12, ProductURL: "https://detail.1688.com/offer/4", MOQ: 5, SoldCount: 300},
	}}
	return listings, interest, supplier
}

func newTestEngine(cfg *config.Config, catalog []models.Category, l sources.ListingSource, i sources.InterestSource, s sources.SupplierSource) *Engine {
	var ls []sources.ListingSource
	if l != nil {
		ls = append(ls, l)
	}
	return NewEngine(cfg, utils.NewLogger(), catalog, ls, i, s, NewMemoryStore())
}

func TestWeightContract(t *testing.T) {
	w := testConfig().Weights
	if w.Sum() != 1.0 {
		t.Errorf("weight sum: got %v, want exactly 1.0", w.Sum())
	}
	if w.Demand != 0.40 || w.Trend != 0.20 || w.Profit != 0.25 || w.Competition != 0.15 {
		t.Errorf("unexpected weights: %+v", w)
	}
}

func TestCalculateRankingEntryCount(t *testing.T) {
	l, i, s := healthySources()

	cfg := testConfig()
	engine := newTestEngine(cfg, testCatalog(), l, i, s)
	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}
	if len(r.Entries) != 4 {
		t.Fatalf("entries: got %d, want 4 (catalog smaller than top-N)", len(r.Entries))
	}
	for idx, e := range r.Entries {
		if e.Rank != idx+1 {
			t.Errorf("rank at %d: got %d, want contiguous from 1", idx, e.Rank)
		}
	}

	cfg2 := testConfig()
	cfg2.TopN = 2
	engine2 := newTestEngine(cfg2, testCatalog(), l, i, s)
	r2, err := engine2.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}
	if len(r2.Entries) != 2 {
		t.Errorf("truncated entries: got %d, want 2", len(r2.Entries))
	}
}

func TestCalculateRankingScoreInvariants(t *testing.T) {
	l, i, s := healthySources()
	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)

	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}

	w := engine.Weights()
	for _, e := range r.Entries {
		for name, v := range map[string]float64{
			"demand": e.Scores.Demand, "trend": e.Scores.Trend,
			"profit": e.Scores.Profit, "competition": e.Scores.Competition,
		} {
			if v < 0 || v > 100 || math.IsNaN(v) {
				t.Errorf("%s: %s score out of range: %v", e.Category.ID, name, v)
			}
		}

		want := w.Demand*e.Scores.Demand + w.Trend*e.Scores.Trend +
			w.Profit*e.Scores.Profit + w.Competition*e.Scores.Competition
		if !approx(e.TotalScore, want, 1e-9) {
			t.Errorf("%s: total %.10f != weighted sum %.10f", e.Category.ID, e.TotalScore, want)
		}

		for id, set := range e.PlatformStats {
			if set.CategoryID != e.Category.ID {
				t.Errorf("%s/%s: listing set category id: got %q, want %q", e.Category.ID, id, set.CategoryID, e.Category.ID)
			}
		}
	}
}

func TestCalculateRankingSortOrder(t *testing.T) {
	l, i, s := healthySources()
	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)

	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}

	for idx := 0; idx < len(r.Entries)-1; idx++ {
		a, b := r.Entries[idx], r.Entries[idx+1]
		if a.TotalScore < b.TotalScore {
			t.Errorf("entries %d/%d out of order: %.2f < %.2f", idx, idx+1, a.TotalScore, b.TotalScore)
		}
		if a.TotalScore == b.TotalScore && a.Scores.Demand < b.Scores.Demand {
			t.Errorf("tie at %d not broken by demand: %.2f < %.2f", idx, a.Scores.Demand, b.Scores.Demand)
		}
	}
}

func TestAllSourcesUnavailable(t *testing.T) {
	l := &fakeListings{id: "trademe", markets: []models.Market{models.MarketNZ}, fail: true}
	i := &fakeInterest{fail: true}
	s := &fakeSupplier{fail: true}

	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)
	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("run must not fail on unavailable sources: %v", err)
	}

	if len(r.Entries) != 4 {
		t.Fatalf("entries: got %d, want 4", len(r.Entries))
	}
	for idx, e := range r.Entries {
		if e.TotalScore != 0 || e.Scores != (models.ScoreBreakdown{}) {
			t.Errorf("%s: expected zeroed scores, got %+v", e.Category.ID, e.Scores)
		}
		// Deterministic tie-break: ascending category id.
		if idx > 0 && r.Entries[idx-1].Category.ID > e.Category.ID {
			t.Errorf("tie-break by id violated: %q before %q", r.Entries[idx-1].Category.ID, e.Category.ID)
		}
	}

	if len(r.SourceAvailability) == 0 {
		t.Fatal("availability map is empty")
	}
	for id, ok := range r.SourceAvailability {
		if ok {
			t.Errorf("source %q marked available, want false", id)
		}
	}
}

func TestPartialAvailabilityIsPerSource(t *testing.T) {
	l, _, _ := healthySources()
	i := &fakeInterest{fail: true}
	s := &fakeSupplier{fail: true}

	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)
	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}

	if !r.SourceAvailability["trademe"] {
		t.Error("trademe should be available")
	}
	if r.SourceAvailability["google_trends"] {
		t.Error("google_trends should be unavailable")
	}
	if r.SourceAvailability["suppliers_1688"] {
		t.Error("suppliers_1688 should be unavailable")
	}

	for _, e := range r.Entries {
		if e.Scores.Trend != 0 {
			t.Errorf("%s: trend should be zeroed, got %.1f", e.Category.ID, e.Scores.Trend)
		}
		if e.Scores.Profit != 0 {
			t.Errorf("%s: profit should be zeroed without supplier data, got %.1f", e.Category.ID, e.Scores.Profit)
		}
		if e.Scores.Demand == 0 {
			t.Errorf("%s: demand should survive trend/supplier outage", e.Category.ID)
		}
	}
}

func TestMultiPlatformAvailability(t *testing.T) {
	nz, i, s := healthySources()
	both := []models.Market{models.MarketNZ, models.MarketAU}
	amazon := &fakeListings{id: "amazon_au", markets: both,
		counts: nz.counts, avg: nz.avg}
	ebay := &fakeListings{id: "ebay", markets: both,
		counts: nz.counts, avg: nz.avg}
	temu := &fakeListings{id: "temu", markets: both, fail: true}

	engine := NewEngine(testConfig(), utils.NewLogger(), testCatalog(),
		[]sources.ListingSource{nz, amazon, ebay, temu}, i, s, NewMemoryStore())

	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}

	for id, want := range map[string]bool{
		"trademe": true, "amazon_au": true, "ebay": true, "temu": false,
	} {
		got, ok := r.SourceAvailability[id]
		if !ok {
			t.Errorf("availability missing entry for %q", id)
			continue
		}
		if got != want {
			t.Errorf("availability[%s]: got %v, want %v", id, got, want)
		}
	}

	for _, e := range r.Entries {
		if len(e.PlatformStats) != 3 {
			t.Errorf("%s: platform stats: got %d platforms, want 3 (failed source omitted)", e.Category.ID, len(e.PlatformStats))
		}
		if _, ok := e.PlatformStats["temu"]; ok {
			t.Errorf("%s: failed platform should not contribute stats", e.Category.ID)
		}
	}
}

func TestMarketFiltering(t *testing.T) {
	nzOnly := &fakeListings{
		id:      "trademe",
		markets: []models.Market{models.MarketNZ},
		counts:  map[string]int{"backpack": 100},
	}
	engine := newTestEngine(testConfig(), testCatalog(), nzOnly, nil, nil)

	r, err := engine.CalculateRanking(context.Background(), models.MarketAU)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}
	if atomic.LoadInt64(&nzOnly.calls) != 0 {
		t.Errorf("NZ-only source called %d times for an AU run", nzOnly.calls)
	}
	if _, ok := r.SourceAvailability["trademe"]; ok {
		t.Error("source not serving the market should not appear in availability")
	}
}

func TestInvalidInput(t *testing.T) {
	l, i, s := healthySources()

	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)
	if _, err := engine.CalculateRanking(context.Background(), models.Market("US")); !errors.Is(err, ErrUnknownMarket) {
		t.Errorf("unknown market: got %v, want ErrUnknownMarket", err)
	}

	empty := newTestEngine(testConfig(), nil, l, i, s)
	if _, err := empty.CalculateRanking(context.Background(), models.MarketNZ); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("empty catalog: got %v, want ErrEmptyCatalog", err)
	}
}

func TestGetLatestRankingIdempotent(t *testing.T) {
	l, i, s := healthySources()
	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)

	if _, ok := engine.GetLatestRanking(models.MarketNZ); ok {
		t.Fatal("cache should be empty before the first run")
	}

	want, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("CalculateRanking: %v", err)
	}

	a, ok := engine.GetLatestRanking(models.MarketNZ)
	if !ok {
		t.Fatal("cache miss after a successful run")
	}
	b, _ := engine.GetLatestRanking(models.MarketNZ)
	if a != want || b != want {
		t.Error("GetLatestRanking must return the stored result unchanged")
	}
	if _, ok := engine.GetLatestRanking(models.MarketAU); ok {
		t.Error("AU cache should be independent of the NZ run")
	}
}

func TestConcurrentRunsCoalesce(t *testing.T) {
	l, i, s := healthySources()
	l.delay = 50 * time.Millisecond
	l.started = make(chan struct{})

	engine := newTestEngine(testConfig(), testCatalog(), l, i, s)

	var wg sync.WaitGroup
	results := make([]*models.RankingResult, 2)
	launch := func(idx int) {
		defer wg.Done()
		r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
		if err != nil {
			t.Errorf("CalculateRanking: %v", err)
			return
		}
		results[idx] = r
	}

	wg.Add(1)
	go launch(0)
	// Hold the second caller until the first run is fetching, so the
	// two calls provably overlap.
	<-l.started
	wg.Add(1)
	go launch(1)
	wg.Wait()

	if results[0] != results[1] {
		t.Error("concurrent runs for one market should share a result")
	}
	// One run's worth of fetches: one per catalog category.
	if calls := atomic.LoadInt64(&l.calls); calls != 4 {
		t.Errorf("listing fetches: got %d, want 4 (coalesced)", calls)
	}
}

func TestRunTimeoutDegradesToUnavailable(t *testing.T) {
	l, i, s := healthySources()
	slow := &fakeListings{
		id:      "amazon_au",
		markets: []models.Market{models.MarketNZ, models.MarketAU},
		delay:   5 * time.Second,
		fail:    true, // unreachable: the ctx path returns first
	}

	cfg := testConfig()
	cfg.RunTimeoutSeconds = 1
	engine := NewEngine(cfg, utils.NewLogger(), testCatalog(),
		[]sources.ListingSource{l, slow}, i, s, NewMemoryStore())

	start := time.Now()
	r, err := engine.CalculateRanking(context.Background(), models.MarketNZ)
	if err != nil {
		t.Fatalf("timed-out run must still produce a result: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("run did not respect the timeout: took %v", elapsed)
	}
	if r.SourceAvailability["amazon_au"] {
		t.Error("source pending past the deadline should be marked unavailable")
	}
	if !r.SourceAvailability["trademe"] {
		t.Error("fast source should stay available")
	}
}
