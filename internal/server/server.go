// Package server is the HTTP surface of profilegrab: a server-sent event
// stream per scrape run, a user lookup for the file browser, health and
// prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"profilegrab/pkg/config"
	"profilegrab/pkg/events"
	"profilegrab/pkg/logger"
	"profilegrab/pkg/models"
)

const (
	defaultHeartbeat = 15 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Scraper starts scrape runs
type Scraper interface {
	Scrape(ctx context.Context, p models.Platform, username string) iter.Seq[events.Event]
}

// UserIndex is the output tree as the file browser sees it
type UserIndex interface {
	UserExists(p models.Platform, username string) bool
	ListUsers(p models.Platform) ([]string, error)
	Dir(p models.Platform, username string) string
	LoadProfile(dir string) (models.Profile, error)
}

// Server serves the HTTP API
type Server struct {
	router    *gin.Engine
	http      *http.Server
	scraper   Scraper
	users     UserIndex
	log       logger.Logger
	heartbeat time.Duration

	mu      sync.Mutex
	running map[string]struct{}
}

// New builds the router. gatherer backs /metrics and may be nil to use the
// default prometheus registry.
func New(cfg config.ServerConfig, scraper Scraper, users UserIndex, gatherer prometheus.Gatherer, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	heartbeat := cfg.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	s := &Server{
		scraper:   scraper,
		users:     users,
		log:       log.WithField("component", "server"),
		heartbeat: heartbeat,
		running:   make(map[string]struct{}),
	}

	router := gin.New()
	router.Use(recoveryMiddleware(s.log), requestLogger(s.log))
	router.GET("/scrape-stream", s.scrapeStream)
	router.GET("/api/check_user_exists", s.checkUserExists)
	router.GET("/api/users", s.listUsers)
	router.GET("/healthz", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	s.router = router

	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the router, mostly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts down gracefully. Open event
// streams see their request contexts end, which cancels their runs.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWithFields("HTTP server listening", map[string]interface{}{"address": s.http.Addr})
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// acquire claims the right to run platform/username. Only one run per
// target may stream at a time.
func (s *Server) acquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[key]; busy {
		return false
	}
	s.running[key] = struct{}{}
	return true
}

func (s *Server) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, key)
}
