package services

import (
	"fmt"
	"sort"
	"strings"

	"aunz-product-finder/models"
)

// PrintResult renders a ranking run as a console report.
func PrintResult(r *models.RankingResult) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🏆 PRODUCT OPPORTUNITY RANKING — %s\033[0m\n", r.Market)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("  Generated : %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Elapsed   : %.1fs\n\n", r.ElapsedSeconds)

	fmt.Printf("\033[1;33m  Top %d Sourcing Opportunities\033[0m\n", len(r.Entries))
	fmt.Printf("  %s\n", thin)
	for _, e := range r.Entries {
		bar := strings.Repeat("█", int(e.TotalScore/5))
		fmt.Printf("  \033[1m%2d.\033[0m %-22s \033[1;32m%5.1f\033[0m %s\n",
			e.Rank, truncate(e.Category.LabelEN, 20), e.TotalScore, bar)
		fmt.Printf("      demand %5.1f │ trend %5.1f │ profit %5.1f │ competition %5.1f\n",
			e.Scores.Demand, e.Scores.Trend, e.Scores.Profit, e.Scores.Competition)
		if e.SupplierQuote != nil && e.Profit.MarginValid {
			fmt.Printf("      cost ¥%.2f → sell $%.2f │ margin \033[1;32m%.1f%%\033[0m",
				e.Profit.CostPriceCNY, e.Profit.MarketPriceLocal, e.Profit.ProfitMarginPercent)
			if e.Profit.BreakEvenReachable {
				fmt.Printf(" │ break-even %d units\n", e.Profit.BreakEvenQuantity)
			} else {
				fmt.Printf(" │ \033[1;31mbreak-even unreachable\033[0m\n")
			}
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Data Source Availability\033[0m\n")
	fmt.Printf("  %s\n", thin)
	ids := make([]string, 0, len(r.SourceAvailability))
	for id := range r.SourceAvailability {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		mark := "\033[1;32m✓\033[0m"
		if !r.SourceAvailability[id] {
			mark = "\033[1;31m✗\033[0m"
		}
		fmt.Printf("  %-24s %s\n", id, mark)
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
