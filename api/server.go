package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fxopen/backtest"
	"fxopen/store"
)

// Server is the HTTP backtest service.
type Server struct {
	engine *gin.Engine
	server *http.Server
	logger *zap.Logger
}

// Options wires the server's collaborators. Bars is the default data set
// used when a request brings none; Store may be nil to disable archiving.
type Options struct {
	Port   int
	Bars   []backtest.Bar
	Store  *store.Store
	Logger *zap.Logger
}

// NewServer builds the gin engine and routes.
func NewServer(opt Options) *Server {
	logger := opt.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware(logger))

	s := &Server{
		engine: engine,
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", opt.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}

	s.setupRoutes(NewHandler(opt.Bars, opt.Store, logger))
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// setupRoutes registers the API routes.
func (s *Server) setupRoutes(handler *Handler) {
	api := s.engine.Group("/api")
	{
		api.POST("/backtest", handler.RunBacktest)
		api.POST("/backtest/dual", handler.RunDualBacktest)

		api.GET("/runs", handler.ListRuns)
		api.GET("/runs/:id", handler.GetRun)

		// status
		api.GET("/status", handler.GetStatus)
	}

	// health check
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("api listening",
		zap.String("addr", s.server.Addr),
		zap.Strings("routes", []string{
			"POST /api/backtest",
			"POST /api/backtest/dual",
			"GET /api/runs",
			"GET /api/runs/:id",
			"GET /api/status",
		}),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// loggerMiddleware logs each request with zap.
func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
