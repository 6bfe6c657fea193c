package market

import (
	"testing"

	"stockstream/config"
	"stockstream/pkg/storage"
)

// go test -v --run ^TestUniverseOrder$
func TestUniverseOrder(t *testing.T) {
	u := NewUniverse(config.UniverseConfig{
		Stocks: []string{"MSFT", "AAPL"},
		Crypto: []string{"BTC-USD"},
	})

	got := u.Instruments()
	want := []string{"MSFT", "AAPL", "BTC-USD"}
	if len(got) != len(want) {
		t.Fatalf("expected %d instruments, got %d", len(want), len(got))
	}
	for i, in := range got {
		if in.Symbol != want[i] {
			t.Errorf("instrument %d = %s, want %s", i, in.Symbol, want[i])
		}
	}
	if got[2].AssetType != storage.AssetCrypto {
		t.Errorf("BTC-USD asset type = %s", got[2].AssetType)
	}
}

// go test -v --run ^TestUniverseName$
func TestUniverseName(t *testing.T) {
	u := NewUniverse(config.UniverseConfig{
		Stocks: []string{"AAPL", "TSLA"},
		Names:  map[string]string{"aapl": "Apple Inc."},
	})

	if got := u.Name("AAPL"); got != "Apple Inc." {
		t.Errorf(`Name("AAPL") = %q`, got)
	}
	if got := u.Name("^GSPC"); got != "S&P 500" {
		t.Errorf(`Name("^GSPC") = %q`, got)
	}
	if got := u.Name("TSLA"); got != "TSLA" {
		t.Errorf(`Name("TSLA") = %q, want symbol fallback`, got)
	}
}
