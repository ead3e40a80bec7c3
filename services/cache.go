package services

import (
	"sync"

	"aunz-product-finder/models"
)

// Store retains the most recent ranking result per market. Last write
// wins; there is no history.
type Store interface {
	Get(market models.Market) (*models.RankingResult, bool)
	Put(market models.Market, result *models.RankingResult)
}

// MemoryStore is a process-lifetime Store. It is injected into the
// engine rather than held as a package singleton so tests can run with
// isolated caches.
type MemoryStore struct {
	mu     sync.RWMutex
	latest map[models.Market]*models.RankingResult
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{latest: make(map[models.Market]*models.RankingResult)}
}

// Get returns the latest result for a market, or false before the
// first successful run.
func (s *MemoryStore) Get(market models.Market) (*models.RankingResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[market]
	return r, ok
}

// Put overwrites the latest result for a market.
func (s *MemoryStore) Put(market models.Market, result *models.RankingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[market] = result
}
