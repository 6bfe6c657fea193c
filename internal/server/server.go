// Package server exposes the read-side views over HTTP and pushes collection
// round events to websocket subscribers.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"stockstream/config"
	"stockstream/internal/market/aggregator"
	"stockstream/internal/market/graphcache"
	"stockstream/internal/metrics"
	"stockstream/pkg/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Views is the read side the handlers serve.
type Views interface {
	CurrentPrices(ctx context.Context, t storage.AssetType) ([]aggregator.PriceItem, error)
	TopMovers(ctx context.Context, n int) ([]aggregator.Mover, error)
	HistoricalSeries(ctx context.Context, symbol, timeframe string) (aggregator.Series, error)
	DashboardSummary(ctx context.Context) aggregator.Summary
	DashboardGraphs(ctx context.Context) (aggregator.Graphs, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	cfg     config.ServerConfig
	metrics config.MetricsConfig
	views   Views
	store   Pinger
	graphs  graphcache.Cache
	hub     *Hub
	logger  *zap.Logger
	engine  *gin.Engine
	http    *http.Server
}

func New(cfg config.ServerConfig, mcfg config.MetricsConfig, views Views, store Pinger,
	graphs graphcache.Cache, hub *Hub, logger *zap.Logger) *Server {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}

	s := &Server{
		cfg:     cfg,
		metrics: mcfg,
		views:   views,
		store:   store,
		graphs:  graphs,
		hub:     hub,
		logger:  logger.Named("http"),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))
	r.Use(corsMiddleware())
	s.routes(r)
	s.engine = r

	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/current_prices", s.currentPrices)
		api.GET("/top_movers", s.topMovers)
		api.GET("/historical/:symbol", s.historical)
		api.GET("/dashboard/summary", s.dashboardSummary)
		api.GET("/dashboard/graphs", s.dashboardGraphs)
		api.GET("/health", s.health)
	}

	r.GET("/ws", s.hub.serveWS)

	if s.metrics.Enabled {
		path := s.metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(metrics.Handler()))
	}
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("http server stopped")
	return nil
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("request", fields...)
			return
		}
		logger.Debug("request", fields...)
	}
}
