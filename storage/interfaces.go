package storage

import "aunz-product-finder/models"

// ResultWriter is the interface any ranking-export backend must satisfy.
type ResultWriter interface {
	WriteResult(result *models.RankingResult) error
	Close() error
}
