package aggregator

import (
	"time"

	"stockstream/pkg/storage"
)

// PriceItem is one entry of the current price snapshot.
type PriceItem struct {
	Symbol    string
	Name      string
	Price     float64
	ChangePct float64
}

// Mover is one entry of the top movers list.
type Mover struct {
	Symbol    string
	Price     float64
	ChangePct float64
}

// Series is a chronological close series. Timestamps and Prices always
// have the same length.
type Series struct {
	Timestamps []time.Time
	Prices     []float64
}

// IndexQuote is a live market index level.
type IndexQuote struct {
	Symbol     string
	Name       string
	Price      float64
	ChangePct  float64
	MarketOpen bool
}

// Summary is the dashboard overview.
type Summary struct {
	MarketIndices []IndexQuote
	RecentStocks  []storage.PriceSample
	RecentCrypto  []storage.PriceSample
}

// GraphSeries is one symbol's percentage change relative to its first
// retained sample.
type GraphSeries struct {
	Name string      `json:"name"`
	X    []time.Time `json:"x"`
	Y    []float64   `json:"y"`
}

// Graphs holds the dashboard graph series per asset type.
type Graphs struct {
	Stock       []GraphSeries `json:"stock"`
	Crypto      []GraphSeries `json:"crypto"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// For returns the series of asset type t.
func (g Graphs) For(t storage.AssetType) []GraphSeries {
	if t == storage.AssetCrypto {
		return g.Crypto
	}
	return g.Stock
}
