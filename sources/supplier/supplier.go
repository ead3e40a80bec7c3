package supplier

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"aunz-product-finder/models"
	"aunz-product-finder/sources"
	"aunz-product-finder/utils"
)

const sourceID = "suppliers_1688"

// Repo serves supplier quotes from a PostgreSQL table of cached 1688
// offers, collected out-of-band by the supplier scraping pipeline. It
// implements sources.SupplierSource.
type Repo struct {
	db     *sql.DB
	logger *utils.Logger
}

// Open connects to PostgreSQL, runs schema migrations, and returns a
// ready-to-use Repo.
func Open(dsn string, logger *utils.Logger) (*Repo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("supplier: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("supplier: ping failed after retries: %w", err)
	}

	r := &Repo{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		return nil, fmt.Errorf("supplier: migrate: %w", err)
	}
	return r, nil
}

func (r *Repo) migrate() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS supplier_quotes (
			id             SERIAL PRIMARY KEY,
			search_keyword TEXT          NOT NULL,
			title          TEXT          NOT NULL,
			price_cny      NUMERIC(10,2) NOT NULL DEFAULT 0,
			product_url    TEXT          UNIQUE NOT NULL,
			moq            INTEGER       NOT NULL DEFAULT 1,
			sold_count     INTEGER       NOT NULL DEFAULT 0,
			fetched_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_supplier_quotes_keyword ON supplier_quotes(search_keyword);
		CREATE INDEX IF NOT EXISTS idx_supplier_quotes_price   ON supplier_quotes(price_cny);
	`)
	return err
}

// ID returns the source identifier.
func (r *Repo) ID() string { return sourceID }

// FetchQuote returns the representative offer for a keyword: the
// cheapest candidates by price, with the final pick tie-broken by sold
// count. No match or a query failure surfaces as sources.ErrUnavailable.
func (r *Repo) FetchQuote(ctx context.Context, keyword string, maxPriceCNY float64) (*models.SupplierQuote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT title, price_cny, product_url, moq, sold_count
		FROM supplier_quotes
		WHERE search_keyword = $1
		  AND price_cny > 0
		  AND ($2 <= 0 OR price_cny <= $2)
		ORDER BY price_cny ASC
		LIMIT 20
	`, keyword, maxPriceCNY)
	if err != nil {
		r.logger.Warn("[supplier] query %q failed: %v", keyword, err)
		return nil, sources.ErrUnavailable
	}
	defer rows.Close()

	var quotes []*models.SupplierQuote
	for rows.Next() {
		q := &models.SupplierQuote{}
		if err := rows.Scan(&q.Title, &q.UnitPriceCNY, &q.ProductURL, &q.MOQ, &q.SoldCount); err != nil {
			r.logger.Warn("[supplier] scan failed for %q: %v", keyword, err)
			return nil, sources.ErrUnavailable
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, sources.ErrUnavailable
	}

	best := sources.BestQuote(quotes)
	if best == nil {
		return nil, sources.ErrUnavailable
	}
	return best, nil
}

// Seed batch-inserts scraped supplier offers for a keyword, replacing
// any previous rows for that keyword.
func (r *Repo) Seed(keyword string, quotes []*models.SupplierQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	if _, err := r.db.Exec(`DELETE FROM supplier_quotes WHERE search_keyword = $1`, keyword); err != nil {
		return fmt.Errorf("supplier: clear %q: %w", keyword, err)
	}

	const batchSize = 50
	for i := 0; i < len(quotes); i += batchSize {
		end := i + batchSize
		if end > len(quotes) {
			end = len(quotes)
		}
		if err := r.insertBatch(keyword, quotes[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) insertBatch(keyword string, batch []*models.SupplierQuote) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*6)

	for idx, q := range batch {
		base := idx * 6
		valueStrings = append(valueStrings,
			fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d)",
				base+1, base+2, base+3, base+4, base+5, base+6))
		valueArgs = append(valueArgs,
			keyword, q.Title, q.UnitPriceCNY, q.ProductURL, q.MOQ, q.SoldCount)
	}

	query := fmt.Sprintf(`
		INSERT INTO supplier_quotes (search_keyword, title, price_cny, product_url, moq, sold_count)
		VALUES %s
		ON CONFLICT (product_url) DO NOTHING
	`, strings.Join(valueStrings, ","))

	_, err := r.db.Exec(query, valueArgs...)
	return err
}

// Close closes the database connection.
func (r *Repo) Close() error {
	return r.db.Close()
}
