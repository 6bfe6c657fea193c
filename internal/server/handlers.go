package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stockstream/internal/market"
	"stockstream/internal/market/aggregator"
	"stockstream/internal/market/graphcache"
	"stockstream/pkg/format"
	"stockstream/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	CodeInvalidAssetType  = "INVALID_ASSET_TYPE"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeNoDataAvailable   = "NO_DATA_AVAILABLE"
	CodeSourceUnavailable = "SOURCE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type priceItemResponse struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

type moverResponse struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
}

type seriesResponse struct {
	Symbol     string      `json:"symbol"`
	Timeframe  string      `json:"timeframe"`
	Timestamps []time.Time `json:"timestamps"`
	Prices     []float64   `json:"prices"`
}

type indexResponse struct {
	Symbol     string  `json:"symbol"`
	Price      float64 `json:"price"`
	ChangePct  float64 `json:"change_pct"`
	MarketOpen bool    `json:"market_open"`
}

type sampleResponse struct {
	Symbol    string    `json:"symbol"`
	Type      string    `json:"type"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

type summaryResponse struct {
	MarketIndices map[string]indexResponse `json:"market_indices"`
	RecentStocks  []sampleResponse         `json:"recent_stocks"`
	RecentCrypto  []sampleResponse         `json:"recent_crypto"`
}

type healthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// GET /api/current_prices?type=stock|crypto
func (s *Server) currentPrices(c *gin.Context) {
	t, err := storage.ParseAssetType(c.DefaultQuery("type", string(storage.AssetStock)))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeInvalidAssetType, err.Error())
		return
	}

	items, err := s.views.CurrentPrices(c.Request.Context(), t)
	if err != nil {
		s.writeViewError(c, err)
		return
	}

	resp := make([]priceItemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, priceItemResponse{
			Symbol:    it.Symbol,
			Name:      it.Name,
			Price:     format.Round2(it.Price),
			ChangePct: format.Round2(it.ChangePct),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/top_movers?n=5
// n <= 0 uses the default count.
func (s *Server) topMovers(c *gin.Context) {
	n := aggregator.DefaultTopMovers
	if raw := c.Query("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, CodeInvalidParameter, "n must be an integer")
			return
		}
		n = v
	}

	movers, err := s.views.TopMovers(c.Request.Context(), n)
	if err != nil {
		s.writeViewError(c, err)
		return
	}

	resp := make([]moverResponse, 0, len(movers))
	for _, m := range movers {
		resp = append(resp, moverResponse{
			Symbol:    m.Symbol,
			Price:     format.Round2(m.Price),
			ChangePct: format.Round2(m.ChangePct),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/historical/:symbol?timeframe=1d|1w|1m|1y
func (s *Server) historical(c *gin.Context) {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		abortWithError(c, http.StatusBadRequest, CodeInvalidParameter, "symbol is required")
		return
	}
	tf, _ := aggregator.ParseTimeframe(c.Query("timeframe"))

	series, err := s.views.HistoricalSeries(c.Request.Context(), symbol, string(tf))
	if err != nil {
		s.writeViewError(c, err)
		return
	}

	prices := make([]float64, len(series.Prices))
	for i, p := range series.Prices {
		prices[i] = format.Round2(p)
	}
	c.JSON(http.StatusOK, seriesResponse{
		Symbol:     symbol,
		Timeframe:  string(tf),
		Timestamps: series.Timestamps,
		Prices:     prices,
	})
}

// GET /api/dashboard/summary
func (s *Server) dashboardSummary(c *gin.Context) {
	summary := s.views.DashboardSummary(c.Request.Context())

	resp := summaryResponse{
		MarketIndices: make(map[string]indexResponse, len(summary.MarketIndices)),
		RecentStocks:  toSampleResponses(summary.RecentStocks),
		RecentCrypto:  toSampleResponses(summary.RecentCrypto),
	}
	for _, idx := range summary.MarketIndices {
		resp.MarketIndices[idx.Name] = indexResponse{
			Symbol:     idx.Symbol,
			Price:      format.Round2(idx.Price),
			ChangePct:  format.Round2(idx.ChangePct),
			MarketOpen: idx.MarketOpen,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func toSampleResponses(samples []storage.PriceSample) []sampleResponse {
	out := make([]sampleResponse, 0, len(samples))
	for _, smp := range samples {
		out = append(out, sampleResponse{
			Symbol:    smp.Symbol,
			Type:      string(smp.AssetType),
			Price:     format.Round2(smp.Price),
			Volume:    smp.Volume,
			Timestamp: smp.Timestamp,
		})
	}
	return out
}

// GET /api/dashboard/graphs
// Served from the graph cache; a miss recomputes and re-renders.
func (s *Server) dashboardGraphs(c *gin.Context) {
	ctx := c.Request.Context()

	graphs, err := s.graphs.Load(ctx)
	if err != nil {
		if !errors.Is(err, graphcache.ErrMiss) {
			s.logger.Warn("graph cache load failed", zap.Error(err))
		}
		graphs, err = s.views.DashboardGraphs(ctx)
		if err != nil {
			s.writeViewError(c, err)
			return
		}
		if err := s.graphs.Render(ctx, graphs); err != nil {
			s.logger.Warn("graph cache render failed", zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, roundGraphs(graphs))
}

func roundGraphs(g aggregator.Graphs) aggregator.Graphs {
	return aggregator.Graphs{
		Stock:       roundSeries(g.Stock),
		Crypto:      roundSeries(g.Crypto),
		GeneratedAt: g.GeneratedAt,
	}
}

func roundSeries(in []aggregator.GraphSeries) []aggregator.GraphSeries {
	out := make([]aggregator.GraphSeries, 0, len(in))
	for _, gs := range in {
		y := make([]float64, len(gs.Y))
		for i, v := range gs.Y {
			y[i] = format.Round2(v)
		}
		out = append(out, aggregator.GraphSeries{Name: gs.Name, X: gs.X, Y: y})
	}
	return out
}

// GET /api/health
func (s *Server) health(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("store ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, healthResponse{Status: "degraded", Store: "down"})
		return
	}
	c.JSON(http.StatusOK, healthResponse{Status: "ok", Store: "up"})
}

func (s *Server) writeViewError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrNoDataAvailable):
		abortWithError(c, http.StatusServiceUnavailable, CodeNoDataAvailable, err.Error())
	case errors.Is(err, market.ErrSourceUnavailable):
		abortWithError(c, http.StatusBadGateway, CodeSourceUnavailable, err.Error())
	case errors.Is(err, storage.ErrStorageUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, CodeNoDataAvailable, err.Error())
	default:
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
