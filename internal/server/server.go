// file: internal/server/server.go
// version: 2.1.0
// guid: 4c5d6e7f-8a9b-0c1d-2e3f-4a5b6c7d8e9f

package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jdfalk/music-catalog/internal/config"
	"github.com/jdfalk/music-catalog/internal/database"
	"github.com/jdfalk/music-catalog/internal/metadata"
	"github.com/jdfalk/music-catalog/internal/metrics"
	"github.com/jdfalk/music-catalog/internal/server/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	shutdownTimeout   = 30 * time.Second
	heartbeatInterval = 30 * time.Second
)

// Extractor turns a remote audio URL into tag metadata.
type Extractor interface {
	Extract(ctx context.Context, rawURL string) (metadata.ExtractedMetadata, error)
}

// Deps are the collaborators a Server needs. All are required.
type Deps struct {
	Store     database.Store
	Extractor Extractor
	Config    *config.Config
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	store      database.Store
	extractor  Extractor
	cfg        *config.Config
}

// NewServer creates a new server instance
func NewServer(deps Deps) *Server {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(accessLogger(serviceLogWriter{}))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(middleware.MaxRequestBodySize(deps.Config.Server.JSONBodyLimit))

	// Register metrics (idempotent)
	metrics.Register()

	server := &Server{
		router:    router,
		store:     deps.Store,
		extractor: deps.Extractor,
		cfg:       deps.Config,
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfg.Server
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:        s.router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[INFO] Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	go s.heartbeat(ctx)

	select {
	case err, ok := <-serveErr:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("[INFO] Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("[INFO] Server exited")
	return nil
}

// heartbeat keeps the songs gauge current while the server runs.
func (s *Server) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		s.refreshSongGauge(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) refreshSongGauge(ctx context.Context) {
	n, err := s.store.CountSongs(ctx)
	if err != nil {
		log.Printf("[DEBUG] Heartbeat: failed to count songs: %v", err)
		return
	}
	metrics.SetSongs(n)
}

// setupRoutes configures all the routes
func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint (standard path)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/api/health", s.healthCheck)

	extract := []gin.HandlerFunc{}
	if rl := s.cfg.RateLimit; rl.ExtractPerMinute > 0 {
		extract = append(extract, middleware.NewIPRateLimiter(rl.ExtractPerMinute, rl.Burst).Middleware())
	}
	extract = append(extract, s.extractMetadata)
	s.router.POST("/extract_metadata", extract...)

	api := s.router.Group("/api")
	{
		api.GET("/songs", s.listSongs)
		api.GET("/songs/search", s.searchSongs)
		api.POST("/songs", s.createSong)
		api.GET("/songs/:id", s.getSong)
		api.PUT("/songs/:id", s.updateSong)
		api.DELETE("/songs/:id", s.deleteSong)
	}

	s.setupStaticFiles()
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, accept, origin, Cache-Control, X-Requested-With, "+middleware.RequestIDHeader)
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Header("Access-Control-Expose-Headers", middleware.RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// accessLogger writes one line per request in the same format as the rest
// of the service logs. Scrapes of /metrics are not logged.
func accessLogger(out io.Writer) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    out,
		SkipPaths: []string{"/metrics"},
		Formatter: func(param gin.LogFormatterParams) string {
			level := "INFO"
			if param.StatusCode >= http.StatusInternalServerError {
				level = "ERROR"
			}
			id, _ := param.Keys[middleware.RequestIDKey].(string)
			if id == "" {
				id = "-"
			}
			return fmt.Sprintf("[%s] %s %s %d %v (from %s) [request-id: %s]\n",
				level, param.Method, param.Path, param.StatusCode, param.Latency, param.ClientIP, id)
		},
	})
}

// serviceLogWriter hands gin's access lines to the standard logger so they
// share its timestamp prefix and --log-file destination.
type serviceLogWriter struct{}

func (serviceLogWriter) Write(p []byte) (int, error) {
	log.Print(string(p))
	return len(p), nil
}

func (s *Server) healthCheck(c *gin.Context) {
	resp := gin.H{
		"status":        "ok",
		"timestamp":     time.Now().Unix(),
		"version":       Version,
		"database_type": s.cfg.DatabaseType,
	}
	// tolerate store errors; report them instead of failing health
	n, err := s.store.CountSongs(c.Request.Context())
	if err != nil {
		resp["partial_error"] = err.Error()
	} else {
		metrics.SetSongs(n)
	}
	resp["metrics"] = gin.H{"songs": n}
	c.JSON(http.StatusOK, resp)
}
