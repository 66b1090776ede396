// Package http exposes the ledger over a JSON API.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"pace/internal/cache"
	"pace/internal/config"
	"pace/internal/ledger"
	applog "pace/internal/log"
	"pace/internal/middleware/ratelimit"
	"pace/internal/middleware/security"
	"pace/internal/middleware/trace"
)

type Server struct {
	ledger     *ledger.Service
	logger     *applog.Logger
	httpServer *http.Server

	limiter  *ratelimit.Limiter
	trace    *trace.Middleware
	detector *security.Detector

	cacheManager *cache.Manager
	statsCache   *cache.LRUCache[statsDTO]
	totalCache   *cache.LRUCache[totalBalanceDTO]
}

func NewServer(cfg *config.Config, svc *ledger.Service, logger *applog.Logger) *Server {
	detector := security.NewDetector()

	s := &Server{
		ledger:   svc,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		detector: detector,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
		trace:        trace.NewMiddleware(detector.ExtractClientIP),
		cacheManager: cache.NewManager(),
		statsCache:   cache.NewLRUCache[statsDTO](64, cfg.CacheTTL),
		totalCache:   cache.NewLRUCache[totalBalanceDTO](4, cfg.CacheTTL),
	}

	s.cacheManager.Register(s.statsCache)
	s.cacheManager.Register(s.totalCache)
	s.cacheManager.StartCleanup(time.Minute)

	s.httpServer = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      s.buildHandler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the fully wired handler chain; exported for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/accounts", s.handleListAccounts)
	mux.HandleFunc("GET /api/accounts/{id}", s.handleGetAccount)
	mux.HandleFunc("PATCH /api/accounts/{id}", s.handleUpdateAccount)
	mux.HandleFunc("DELETE /api/accounts/{id}", s.handleDeleteAccount)
	mux.HandleFunc("GET /api/accounts/{id}/audit", s.handleAuditAccount)

	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("GET /api/transactions/{id}", s.handleGetTransaction)
	mux.HandleFunc("PATCH /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/reports/stats", s.handleStats)
	mux.HandleFunc("GET /api/reports/total", s.handleTotalBalance)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = applog.Middleware(s.logger)(handler)
	handler = s.trace.Middleware(handler)
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, nil)(handler)
	handler = s.suspicionMiddleware(handler)
	handler = headers.Middleware(handler)
	return handler
}

// suspicionMiddleware logs probing traffic; it does not block, the rate
// limiter handles volume.
func (s *Server) suspicionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request detected",
				"method", r.Method,
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// invalidateReports purges cached report responses after any write.
func (s *Server) invalidateReports() {
	s.statsCache.Purge()
	s.totalCache.Purge()
}

func (s *Server) Start() error {
	s.logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	s.cacheManager.Stop()
	return s.httpServer.Shutdown(ctx)
}
