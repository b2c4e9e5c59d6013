// Package http exposes the JSON API consumed by the web client. Owner
// identity arrives as the X-Owner-ID header; verification happens at an
// upstream proxy, so handlers only require its presence.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/carlinf/finance-tracker/internal/cache"
	"github.com/carlinf/finance-tracker/internal/core"
	"github.com/carlinf/finance-tracker/internal/live"
	"github.com/carlinf/finance-tracker/internal/log"
	"github.com/carlinf/finance-tracker/internal/middleware/ratelimit"
	"github.com/carlinf/finance-tracker/internal/middleware/security"
	"github.com/carlinf/finance-tracker/internal/middleware/trace"
	"github.com/carlinf/finance-tracker/internal/services"
	"github.com/carlinf/finance-tracker/internal/store"
)

// Options configures the API server.
type Options struct {
	Addr              string
	TopCategories     int
	TrailingMonths    int
	RequestsPerMinute int
	Logger            *log.Logger
}

type Server struct {
	http.Server

	transactions  *services.TransactionService
	categories    *services.CategoryService
	profiles      *services.ProfileService
	purge         *services.PurgeService
	txSubscriber  *live.Subscriber
	catSubscriber *live.Subscriber
	backend       store.Store

	topCategories  int
	trailingMonths int

	logger   *log.Logger
	detector *security.Detector
	limiter  *ratelimit.Limiter

	// Analytics payloads are cached per owner. Keys carry the owner id as
	// prefix so writes can invalidate one owner without flushing the rest.
	dashboardCache *cache.LRUCache[dashboardResponse]
	analyticsCache *cache.LRUCache[analyticsResponse]
	cacheManager   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes, middleware, and caches into a ready-to-run server.
func NewServer(opts Options, backend store.Store, publisher services.SyncPublisher) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	if opts.TopCategories < 1 {
		opts.TopCategories = 5
	}
	if opts.TrailingMonths < 1 {
		opts.TrailingMonths = 6
	}
	if opts.RequestsPerMinute < 1 {
		opts.RequestsPerMinute = 120
	}

	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		transactions:   services.NewTransactionService(backend.Transactions(), publisher, logger),
		categories:     services.NewCategoryService(backend.Categories(), logger),
		profiles:       services.NewProfileService(backend.Profiles(), logger),
		purge:          services.NewPurgeService(backend.Transactions(), backend.Categories(), backend.Profiles(), logger),
		txSubscriber:   live.NewSubscriber(backend.Transactions(), logger),
		catSubscriber:  live.NewSubscriber(backend.Categories(), logger),
		backend:        backend,
		topCategories:  opts.TopCategories,
		trailingMonths: opts.TrailingMonths,
		logger:         httpLogger,
		detector:       security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RequestsPerMinute,
			CleanupInterval:   5 * time.Minute,
		}),
		dashboardCache: cache.NewLRUCache[dashboardResponse](256, time.Minute),
		analyticsCache: cache.NewLRUCache[analyticsResponse](512, time.Minute),
		cacheManager:   cache.NewManager(),
	}

	s.cacheManager.Register(s.dashboardCache)
	s.cacheManager.Register(s.analyticsCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/dashboard", requireOwner(s.handleDashboard))
	mux.HandleFunc("GET /api/analytics", requireOwner(s.handleAnalytics))
	mux.HandleFunc("GET /api/stream", requireOwner(s.handleStream))

	mux.HandleFunc("GET /api/transactions", requireOwner(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", requireOwner(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", requireOwner(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", requireOwner(s.handleDeleteTransaction))
	mux.HandleFunc("GET /api/transactions/export", requireOwner(s.handleExportTransactions))

	mux.HandleFunc("GET /api/categories", requireOwner(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", requireOwner(s.handleCreateCategory))
	mux.HandleFunc("PUT /api/categories/{id}", requireOwner(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", requireOwner(s.handleDeleteCategory))
	mux.HandleFunc("GET /api/categories/names", requireOwner(s.handleCategoryNames))

	mux.HandleFunc("GET /api/settings", requireOwner(s.handleGetSettings))
	mux.HandleFunc("PUT /api/settings", requireOwner(s.handleUpdateSettings))
	mux.HandleFunc("DELETE /api/account", requireOwner(s.handleDeleteAccount))

	s.Server.Handler = s.chain(mux)

	return s
}

// chain applies the middleware stack: trace logging outermost, then
// security headers, then rate limiting.
func (s *Server) chain(next http.Handler) http.Handler {
	rateLimited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
	})(next)

	secured := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(rateLimited)

	return trace.NewMiddleware(s.detector.ExtractClientIP).Middleware(secured)
}

// invalidateOwner drops an owner's cached analytics after a write.
func (s *Server) invalidateOwner(ownerID string) {
	s.dashboardCache.DeletePrefix(ownerID + ":")
	s.analyticsCache.DeletePrefix(ownerID + ":")
}

// loadTransactions fetches and normalizes the owner's full transaction set.
func (s *Server) loadTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	cctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()
	return s.transactions.List(cctx, ownerID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if _, err := s.backend.Transactions().List(ctx, "readiness-probe"); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "backend not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown stops the background cleanup goroutines and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
