package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"outlay/internal/cache"
	"outlay/internal/core"
	"outlay/internal/services"
	"outlay/internal/storage"
)

// Server is the JSON API over the expense store. Summary and time-series
// reads go through small LRU caches that writes invalidate wholesale.
type Server struct {
	http.Server
	store       storage.Store
	importer    *services.ImportService
	rateLimiter *rateLimiter

	summaryCache *cache.LRUCache[[]core.ExpenseSummary]
	seriesCache  *cache.LRUCache[[]core.Series]

	maxUploadBytes int64

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Options tunes the server. Zero values fall back to sensible defaults.
type Options struct {
	CacheSize      int
	CacheTTL       time.Duration
	MaxUploadBytes int64
}

// NewServer configures routes and caches, returning a ready-to-run server.
func NewServer(addr string, store storage.Store, importer *services.ImportService, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 4 << 20
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:            store,
		importer:         importer,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRUCache[[]core.ExpenseSummary](opts.CacheSize, opts.CacheTTL),
		seriesCache:      cache.NewLRUCache[[]core.Series](opts.CacheSize, opts.CacheTTL),
		maxUploadBytes:   opts.MaxUploadBytes,
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /category", s.withMiddleware(s.handleListCategories))
	mux.HandleFunc("POST /category", s.withMiddleware(s.handleCreateCategory))
	mux.HandleFunc("GET /category/{id}", s.withMiddleware(s.handleGetCategory))
	mux.HandleFunc("PUT /category/{id}", s.withMiddleware(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /category/{id}", s.withMiddleware(s.handleDeleteCategory))

	mux.HandleFunc("GET /expense", s.withMiddleware(s.handleListExpenses))
	mux.HandleFunc("POST /expense", s.withMiddleware(s.handleCreateExpense))
	mux.HandleFunc("GET /expense/summary", s.withMiddleware(s.handleExpenseSummary))
	mux.HandleFunc("GET /expense/totals", s.withMiddleware(s.handleExpenseTotals))
	mux.HandleFunc("GET /expense/timeseries", s.withMiddleware(s.handleExpenseTimeSeries))
	mux.HandleFunc("POST /expense/import", s.withMiddleware(s.handleImportCSV))
	mux.HandleFunc("DELETE /expense/import/{importId}", s.withMiddleware(s.handleDeleteImport))
	mux.HandleFunc("GET /expense/{id}", s.withMiddleware(s.handleGetExpense))
	mux.HandleFunc("PUT /expense/{id}", s.withMiddleware(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /expense/{id}", s.withMiddleware(s.handleDeleteExpense))

	mux.HandleFunc("GET /import", s.withMiddleware(s.handleListImports))

	mux.HandleFunc("POST /user/signin", s.withMiddleware(s.handleSignIn))
	mux.HandleFunc("GET /user/{username}", s.withMiddleware(s.handleGetUser))

	return s
}

// withMiddleware adds security headers, rate limiting, and request logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		slog.InfoContext(r.Context(), "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(r.Context(), "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// invalidateAggregates drops the cached summaries and series after any write
// that can change them.
func (s *Server) invalidateAggregates() {
	s.summaryCache.Clear()
	s.seriesCache.Clear()
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			summaryCleaned := s.summaryCache.CleanExpired()
			seriesCleaned := s.seriesCache.CleanExpired()
			if summaryCleaned > 0 || seriesCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"summary_entries_removed", summaryCleaned,
					"series_entries_removed", seriesCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
