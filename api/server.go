package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autohedge/backtest"
	"autohedge/metrics"
	"autohedge/store"
)

type Options struct {
	Port int
	// RateLimit is requests per second per client IP; <= 0 disables it.
	RateLimit float64
}

// Server is the dashboard HTTP service.
type Server struct {
	engine  *gin.Engine
	server  *http.Server
	runner  *backtest.Runner
	store   store.Store
	metrics *metrics.Metrics
	hub     *Hub
}

func NewServer(r *backtest.Runner, st store.Store, m *metrics.Metrics, opt Options) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(requestIDMiddleware())
	engine.Use(loggerMiddleware(m))
	if opt.RateLimit > 0 {
		engine.Use(newIPLimiter(opt.RateLimit, int(opt.RateLimit*2)+1).middleware())
	}

	s := &Server{
		engine:  engine,
		runner:  r,
		store:   st,
		metrics: m,
		hub:     NewHub(m),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opt.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	handler := NewHandler(s.runner, s.store, s.metrics, s.hub)

	api := s.engine.Group("/api")
	{
		api.POST("/backtest", handler.RunBacktest)
		api.GET("/signals", handler.GetSignals)

		api.GET("/history", handler.GetHistory)
		api.GET("/history/:id", handler.GetHistoryItem)
		api.GET("/history/:id/report", handler.GetHistoryReport)
		api.GET("/history/:id/chart", handler.GetHistoryChart)

		api.GET("/stream", s.hub.Serve)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) Start() error {
	log.Printf("[API] listening on http://localhost%s\n", s.server.Addr)
	log.Println("[API] routes:")
	log.Println("  POST /api/backtest           - run a backtest and save it")
	log.Println("  GET  /api/signals?symbols=   - latest-bar signals")
	log.Println("  GET  /api/history            - saved backtests, newest first")
	log.Println("  GET  /api/history/:id        - one saved backtest")
	log.Println("  GET  /api/history/:id/report - text report")
	log.Println("  GET  /api/history/:id/chart  - equity curve (svg)")
	log.Println("  GET  /api/stream             - websocket feed of completed runs")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return s.server.Shutdown(ctx)
}
