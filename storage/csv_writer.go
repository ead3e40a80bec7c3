package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"aunz-product-finder/models"
)

// CSVWriter exports a ranking run to a CSV file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"rank", "market", "category", "keyword", "total_score",
		"demand", "trend", "profit", "competition",
		"cost_price_cny", "market_price_local", "profit_margin_percent", "break_even_qty",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteResult appends one row per ranking entry.
func (c *CSVWriter) WriteResult(result *models.RankingResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range result.Entries {
		breakEven := "unreachable"
		if e.Profit.BreakEvenReachable {
			breakEven = strconv.Itoa(e.Profit.BreakEvenQuantity)
		}
		row := []string{
			strconv.Itoa(e.Rank),
			string(result.Market),
			e.Category.LabelEN,
			e.Category.Keyword(),
			formatScore(e.TotalScore),
			formatScore(e.Scores.Demand),
			formatScore(e.Scores.Trend),
			formatScore(e.Scores.Profit),
			formatScore(e.Scores.Competition),
			fmt.Sprintf("%.2f", e.Profit.CostPriceCNY),
			fmt.Sprintf("%.2f", e.Profit.MarketPriceLocal),
			fmt.Sprintf("%.2f", e.Profit.ProfitMarginPercent),
			breakEven,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
