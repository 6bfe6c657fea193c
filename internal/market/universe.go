package market

import (
	"strings"

	"stockstream/config"
	"stockstream/pkg/storage"
)

var defaultNames = map[string]string{
	"AAPL":    "Apple",
	"MSFT":    "Microsoft",
	"GOOGL":   "Alphabet",
	"AMZN":    "Amazon",
	"NVDA":    "NVIDIA",
	"BTC-USD": "Bitcoin",
	"ETH-USD": "Ethereum",
	"BNB-USD": "BNB",
	"SOL-USD": "Solana",
	"XRP-USD": "XRP",
	"^GSPC":   "S&P 500",
	"^DJI":    "Dow Jones",
	"^IXIC":   "NASDAQ",
}

// Instrument is one tracked symbol.
type Instrument struct {
	Symbol    string
	Name      string
	AssetType storage.AssetType
}

// Universe is the fixed, ordered set of tracked symbols. It is read-only
// after construction.
type Universe struct {
	stocks  []string
	crypto  []string
	indices []string
	names   map[string]string
}

func NewUniverse(cfg config.UniverseConfig) *Universe {
	u := &Universe{
		stocks:  append([]string(nil), cfg.Stocks...),
		crypto:  append([]string(nil), cfg.Crypto...),
		indices: append([]string(nil), cfg.Indices...),
		names:   make(map[string]string, len(cfg.Names)),
	}
	// viper lowercases map keys
	for k, v := range cfg.Names {
		u.names[strings.ToLower(k)] = v
	}
	return u
}

// Symbols returns the symbols of the given asset type in configured order.
func (u *Universe) Symbols(t storage.AssetType) []string {
	switch t {
	case storage.AssetStock:
		return u.stocks
	case storage.AssetCrypto:
		return u.crypto
	}
	return nil
}

// Indices returns the market index symbols shown on the dashboard.
func (u *Universe) Indices() []string {
	return u.indices
}

// Instruments returns every stock then every crypto symbol.
func (u *Universe) Instruments() []Instrument {
	out := make([]Instrument, 0, len(u.stocks)+len(u.crypto))
	for _, t := range storage.AssetTypes {
		for _, s := range u.Symbols(t) {
			out = append(out, Instrument{Symbol: s, Name: u.Name(s), AssetType: t})
		}
	}
	return out
}

// Name returns the display name of symbol, falling back to the symbol itself.
func (u *Universe) Name(symbol string) string {
	if n, ok := u.names[strings.ToLower(symbol)]; ok && n != "" {
		return n
	}
	if n, ok := defaultNames[symbol]; ok {
		return n
	}
	return symbol
}
