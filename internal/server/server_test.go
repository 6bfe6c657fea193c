package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockstream/config"
	"stockstream/internal/market"
	"stockstream/internal/market/aggregator"
	"stockstream/internal/market/collector"
	"stockstream/internal/market/graphcache"
	"stockstream/internal/market/markettest"
	"stockstream/pkg/storage"
	"stockstream/pkg/storage/memory"
	"stockstream/pkg/yahoo"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type openHours struct{}

func (openHours) IsOpen(string, time.Time) bool { return true }

var testUniverse = config.UniverseConfig{
	Stocks:  []string{"AAPL", "MSFT"},
	Crypto:  []string{"BTC-USD"},
	Indices: []string{"^GSPC"},
}

type fixture struct {
	src    *markettest.Source
	store  *memory.MemoryStore
	cache  *graphcache.MemoryCache
	hub    *Hub
	server *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		src:   markettest.NewSource(),
		store: memory.NewMemoryStore(),
		cache: graphcache.NewMemoryCache(time.Hour),
		hub:   NewHub(zap.NewNop()),
	}
	agg := aggregator.New(f.src, f.store, market.NewUniverse(testUniverse), openHours{},
		aggregator.Options{RecentLimit: 10, Retention: 24 * time.Hour}, zap.NewNop())

	f.server = New(
		config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode},
		config.MetricsConfig{Enabled: true, Path: "/metrics"},
		agg, f.store, f.cache, f.hub, zap.NewNop(),
	)
	return f
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// go test -v --run ^TestCurrentPrices$
func TestCurrentPrices(t *testing.T) {
	f := newFixture(t)
	f.src.SetQuote("AAPL", 150.456, 149.0)

	rec := f.get(t, "/api/current_prices?type=stock")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	items := decode[[]priceItemResponse](t, rec)
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %+v", items)
	}
	if items[0].Symbol != "AAPL" || items[0].Name != "Apple" {
		t.Errorf("unexpected item: %+v", items[0])
	}
	if items[0].Price != 150.46 || items[0].ChangePct != 0.98 {
		t.Errorf("values not rounded to 2 decimals: %+v", items[0])
	}
}

// go test -v --run ^TestCurrentPricesErrors$
func TestCurrentPricesErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/api/current_prices?type=bond")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown type status = %d, want 400", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error.Code != CodeInvalidAssetType {
		t.Errorf("code = %q", body.Error.Code)
	}

	rec = f.get(t, "/api/current_prices?type=crypto")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("all unavailable status = %d, want 503", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error.Code != CodeNoDataAvailable {
		t.Errorf("code = %q", body.Error.Code)
	}
}

// go test -v --run ^TestTopMovers$
func TestTopMovers(t *testing.T) {
	f := newFixture(t)
	f.src.SetQuote("AAPL", 101, 100).
		SetQuote("MSFT", 90, 100).
		SetQuote("BTC-USD", 150, 100)

	rec := f.get(t, "/api/top_movers?n=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	movers := decode[[]moverResponse](t, rec)
	// Crypto is not ranked even when it moved the most.
	if len(movers) != 2 || movers[0].Symbol != "MSFT" || movers[1].Symbol != "AAPL" {
		t.Errorf("unexpected movers: %+v", movers)
	}

	if rec := f.get(t, "/api/top_movers?n=zero"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid n status = %d, want 400", rec.Code)
	}

	// Non-positive n falls back to the default count.
	rec = f.get(t, "/api/top_movers?n=0")
	if rec.Code != http.StatusOK {
		t.Fatalf("n=0 status = %d, want 200", rec.Code)
	}
	if movers := decode[[]moverResponse](t, rec); len(movers) != 2 {
		t.Errorf("n=0 returned %d movers, want both stocks", len(movers))
	}
	if rec := f.get(t, "/api/top_movers?n=-3"); rec.Code != http.StatusOK {
		t.Errorf("n=-3 status = %d, want 200", rec.Code)
	}
}

// go test -v --run ^TestHistorical$
func TestHistorical(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	f.src.SetHistory("AAPL", []yahoo.Bar{
		{Time: base, Close: 170.123},
		{Time: base.Add(time.Hour), Close: 171.5},
	})

	rec := f.get(t, "/api/historical/AAPL?timeframe=1w")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode[seriesResponse](t, rec)
	if body.Timeframe != "1w" || len(body.Timestamps) != 2 || len(body.Prices) != 2 {
		t.Fatalf("unexpected body: %+v", body)
	}
	if body.Prices[0] != 170.12 || !body.Timestamps[0].Equal(base) {
		t.Errorf("unexpected first point: %v %v", body.Timestamps[0], body.Prices[0])
	}
	if f.src.LastInterval != yahoo.Interval15Min || f.src.LastPeriod != yahoo.Period1Week {
		t.Errorf("history requested with %s/%s", f.src.LastInterval, f.src.LastPeriod)
	}

	rec = f.get(t, "/api/historical/AAPL?timeframe=bogus")
	if body := decode[seriesResponse](t, rec); body.Timeframe != "1d" {
		t.Errorf("bogus timeframe resolved to %q, want 1d", body.Timeframe)
	}
}

// go test -v --run ^TestHistoricalSourceDown$
func TestHistoricalSourceDown(t *testing.T) {
	f := newFixture(t)
	f.src.SetError("AAPL", errors.New("timeout"))

	rec := f.get(t, "/api/historical/AAPL")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Error.Code != CodeSourceUnavailable {
		t.Errorf("code = %q", body.Error.Code)
	}
}

// go test -v --run ^TestDashboardSummary$
func TestDashboardSummary(t *testing.T) {
	f := newFixture(t)
	f.src.SetQuote("^GSPC", 5100, 5000)
	now := time.Now().UTC()
	_ = f.store.Insert(context.Background(), storage.PriceSample{
		Symbol: "AAPL", AssetType: storage.AssetStock, Price: 150.555, Volume: 10, Timestamp: now,
	})

	rec := f.get(t, "/api/dashboard/summary")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	body := decode[summaryResponse](t, rec)

	idx, ok := body.MarketIndices["S&P 500"]
	if !ok {
		t.Fatalf("S&P 500 missing from %+v", body.MarketIndices)
	}
	if idx.Price != 5100 || idx.ChangePct != 2 || !idx.MarketOpen {
		t.Errorf("unexpected index: %+v", idx)
	}
	if len(body.RecentStocks) != 1 || body.RecentStocks[0].Type != "stock" || body.RecentStocks[0].Price != 150.56 {
		t.Errorf("unexpected recent stocks: %+v", body.RecentStocks)
	}
	if body.RecentCrypto == nil || len(body.RecentCrypto) != 0 {
		t.Errorf("recent crypto should be an empty list, got %+v", body.RecentCrypto)
	}
	if !strings.Contains(rec.Body.String(), `"recent_crypto":[]`) {
		t.Errorf("expected empty JSON array, got %s", rec.Body.String())
	}
}

// go test -v --run ^TestDashboardGraphsUsesCache$
func TestDashboardGraphsUsesCache(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()
	for i, p := range []float64{100, 110} {
		_ = f.store.Insert(context.Background(), storage.PriceSample{
			Symbol: "AAPL", AssetType: storage.AssetStock, Price: p,
			Timestamp: now.Add(time.Duration(i-2) * time.Hour),
		})
	}

	rec := f.get(t, "/api/dashboard/graphs")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	graphs := decode[aggregator.Graphs](t, rec)
	if len(graphs.Stock) != 1 || graphs.Stock[0].Name != "AAPL" {
		t.Fatalf("unexpected stock graphs: %+v", graphs.Stock)
	}
	if y := graphs.Stock[0].Y; len(y) != 2 || y[0] != 0 || y[1] != 10 {
		t.Errorf("unexpected percent series: %v", y)
	}

	// A miss renders into the cache, so later requests skip the store.
	if _, err := f.cache.Load(context.Background()); err != nil {
		t.Fatalf("cache should be populated after a miss: %v", err)
	}
	_ = f.store.Close()
	if rec := f.get(t, "/api/dashboard/graphs"); rec.Code != http.StatusOK {
		t.Errorf("cached graphs status = %d, want 200", rec.Code)
	}
}

// go test -v --run ^TestDashboardGraphsStoreDown$
func TestDashboardGraphsStoreDown(t *testing.T) {
	f := newFixture(t)
	_ = f.store.Close()

	rec := f.get(t, "/api/dashboard/graphs")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

// go test -v --run ^TestHealth$
func TestHealth(t *testing.T) {
	f := newFixture(t)

	if rec := f.get(t, "/api/health"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}

	_ = f.store.Close()
	rec := f.get(t, "/api/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	if body := decode[healthResponse](t, rec); body.Store != "down" {
		t.Errorf("store = %q, want down", body.Store)
	}
}

// go test -v --run ^TestMetricsEndpoint$
func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)

	rec := f.get(t, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stockstream_") {
		t.Errorf("metrics output missing stockstream series")
	}
}

// go test -v --run ^TestCORSPreflight$
func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/current_prices", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}

// go test -v --run ^TestWebsocketRoundEvents$
func TestWebsocketRoundEvents(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hub.Run(ctx)

	srv := httptest.NewServer(f.server.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	report := collector.Report{RoundID: "round-1", Timestamp: time.Now().UTC(), Inserted: 9, Skipped: 1}

	// Registration races the first notify, so keep notifying until an event lands.
	stopNotify := make(chan struct{})
	defer close(stopNotify)
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			f.hub.NotifyRound(report)
			select {
			case <-stopNotify:
				return
			case <-ticker.C:
			}
		}
	}()

	var ev Event
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("no event received: %v", err)
	}
	if ev.Type != EventRoundCompleted || ev.RoundID != "round-1" || ev.Inserted != 9 || ev.Skipped != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

// go test -v --run ^TestNotifyRoundDoesNotBlock$
func TestNotifyRoundDoesNotBlock(t *testing.T) {
	hub := NewHub(zap.NewNop())

	done := make(chan struct{})
	go func() {
		// Hub loop not running: the queue fills and the rest are dropped.
		for i := 0; i < 100; i++ {
			hub.NotifyRound(collector.Report{RoundID: "r"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("NotifyRound blocked with no hub loop")
	}
}
