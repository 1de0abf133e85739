package ygoban

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary describes the rows produced by a run.
type Summary struct {
	Cards int
	Rows  int

	// Price statistics over the rows with a known price
	Priced      int
	MeanPrice   float64
	MedianPrice float64
	MaxPrice    float64
}

func (s Summary) String() string {
	return fmt.Sprintf("%d cards, %d rows, %d priced (mean $%0.2f, median $%0.2f, max $%0.2f)",
		s.Cards, s.Rows, s.Priced, s.MeanPrice, s.MedianPrice, s.MaxPrice)
}

func Summarize(rows []Row) Summary {
	var summary Summary
	summary.Rows = len(rows)

	cards := map[int]bool{}
	var prices stats.Float64Data
	for _, row := range rows {
		cards[row.CardId] = true
		if row.Price > 0 {
			prices = append(prices, row.Price)
		}
	}
	summary.Cards = len(cards)
	summary.Priced = len(prices)
	if len(prices) == 0 {
		return summary
	}

	// Errors are only returned on empty input
	summary.MeanPrice, _ = stats.Mean(prices)
	summary.MedianPrice, _ = stats.Median(prices)
	summary.MaxPrice, _ = stats.Max(prices)

	return summary
}
