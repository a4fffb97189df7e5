package pricing

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/arvidstrom/storeagent/pkg/blocket"
	"github.com/arvidstrom/storeagent/pkg/tradera"
)

// TraderaSearcher and BlocketSearcher are the marketplace surfaces the price
// check composes. They match the concrete clients in pkg/tradera and
// pkg/blocket.
type TraderaSearcher interface {
	Search(ctx context.Context, query, category string, maxPrice float64) ([]tradera.Item, error)
}

type BlocketSearcher interface {
	Search(ctx context.Context, query, region string, maxPrice float64) ([]blocket.Listing, error)
}

type Comparable struct {
	Source string  `json:"source"`
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Price  float64 `json:"price"`
	URL    string  `json:"url"`
}

type Stats struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
}

type SuggestedRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type PlatformResult struct {
	Count int    `json:"count"`
	Stats Stats  `json:"stats"`
	Error string `json:"error,omitempty"`
}

type Analysis struct {
	Query          string         `json:"query"`
	ProductID      string         `json:"product_id,omitempty"`
	Tradera        PlatformResult `json:"tradera"`
	Blocket        PlatformResult `json:"blocket"`
	CombinedStats  Stats          `json:"combined_stats"`
	SuggestedRange SuggestedRange `json:"suggested_range"`
	Comparables    []Comparable   `json:"comparables"`
}

// Service runs price research across both marketplaces. A failure on one
// platform degrades the analysis instead of failing it.
type Service struct {
	tradera TraderaSearcher
	blocket BlocketSearcher
}

func NewService(traderaClient TraderaSearcher, blocketClient BlocketSearcher) *Service {
	return &Service{tradera: traderaClient, blocket: blocketClient}
}

func (s *Service) PriceCheck(ctx context.Context, query, productID, category string) (*Analysis, error) {
	analysis := &Analysis{
		Query:       query,
		ProductID:   productID,
		Comparables: []Comparable{},
	}

	var traderaPrices, blocketPrices []float64

	if s.tradera != nil {
		items, err := s.tradera.Search(ctx, query, category, 0)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("tradera search failed during price check")
			analysis.Tradera.Error = err.Error()
		}
		for _, item := range items {
			analysis.Comparables = append(analysis.Comparables, Comparable{
				Source: "tradera",
				ID:     item.ID,
				Title:  item.Title,
				Price:  item.Price,
				URL:    item.URL,
			})
			if item.Price > 0 {
				traderaPrices = append(traderaPrices, item.Price)
			}
		}
		analysis.Tradera.Count = len(items)
	}

	if s.blocket != nil {
		listings, err := s.blocket.Search(ctx, query, "", 0)
		if err != nil {
			log.Warn().Err(err).Str("query", query).Msg("blocket search failed during price check")
			analysis.Blocket.Error = err.Error()
		}
		for _, listing := range listings {
			analysis.Comparables = append(analysis.Comparables, Comparable{
				Source: "blocket",
				ID:     listing.ID,
				Title:  listing.Title,
				Price:  listing.Price,
				URL:    listing.URL,
			})
			if listing.Price > 0 {
				blocketPrices = append(blocketPrices, listing.Price)
			}
		}
		analysis.Blocket.Count = len(listings)
	}

	allPrices := append(append([]float64{}, traderaPrices...), blocketPrices...)

	analysis.Tradera.Stats = computeStats(traderaPrices)
	analysis.Blocket.Stats = computeStats(blocketPrices)
	analysis.CombinedStats = computeStats(allPrices)
	analysis.SuggestedRange = computeSuggestedRange(allPrices)

	return analysis, nil
}

func computeStats(prices []float64) Stats {
	if len(prices) == 0 {
		return Stats{}
	}

	sorted := append([]float64{}, prices...)
	sort.Float64s(sorted)

	var sum float64
	for _, p := range sorted {
		sum += p
	}

	return Stats{
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: median(sorted),
		Mean:   round2(sum / float64(len(sorted))),
		Count:  len(sorted),
	}
}

// computeSuggestedRange uses the interquartile range once there are enough
// comparables, falling back to min/max for thin samples.
func computeSuggestedRange(prices []float64) SuggestedRange {
	if len(prices) == 0 {
		return SuggestedRange{}
	}

	sorted := append([]float64{}, prices...)
	sort.Float64s(sorted)

	if len(sorted) < 4 {
		return SuggestedRange{Low: sorted[0], High: sorted[len(sorted)-1]}
	}

	q1 := median(sorted[:len(sorted)/2])
	q3 := median(sorted[(len(sorted)+1)/2:])
	return SuggestedRange{Low: round2(q1), High: round2(q3)}
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
