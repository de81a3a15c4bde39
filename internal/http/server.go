// Package http exposes the JSON API: users, tasks, groups,
// transactions, budgets, and backup.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"dailyfocus/internal/amqp"
	"dailyfocus/internal/budget"
	"dailyfocus/internal/cache"
	"dailyfocus/internal/core"
	"dailyfocus/internal/storage"
)

// SpendPublisher pushes spend events onto the queue. Nil publisher
// means expenses are applied inline.
type SpendPublisher interface {
	PublishSpendEvent(ctx context.Context, msg *amqp.SpendEventMessage) error
}

type Server struct {
	http.Server

	repo      *storage.Repository
	budgets   *budget.Service
	publisher SpendPublisher

	rateLimiter  *rateLimiter
	summaryCache *cache.LRUCache[[]core.CategorySummary]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a
// ready-to-run server.
func NewServer(addr string, repo *storage.Repository, budgets *budget.Service, publisher SpendPublisher, cacheSize int, cacheTTL time.Duration) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		repo:             repo,
		budgets:          budgets,
		publisher:        publisher,
		rateLimiter:      newRateLimiter(),
		summaryCache:     cache.NewLRUCache[[]core.CategorySummary](cacheSize, cacheTTL),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/login", s.withSecurityHeaders(s.handleLogin))

	mux.HandleFunc("GET /api/users", s.withSecurityHeaders(s.handleListUsers))
	mux.HandleFunc("GET /api/users/email/{email}", s.withSecurityHeaders(s.handleGetUserByEmail))
	mux.HandleFunc("GET /api/users/{id}", s.withSecurityHeaders(s.handleGetUser))
	mux.HandleFunc("POST /api/users", s.withSecurityHeaders(s.handleCreateUser))
	mux.HandleFunc("PUT /api/users/{id}", s.withSecurityHeaders(s.handleUpdateUser))
	mux.HandleFunc("DELETE /api/users/{id}", s.withSecurityHeaders(s.handleDeleteUser))

	mux.HandleFunc("GET /api/tasks", s.withSecurityHeaders(s.handleListTasks))
	mux.HandleFunc("GET /api/tasks/{id}", s.withSecurityHeaders(s.handleGetTask))
	mux.HandleFunc("POST /api/tasks", s.withSecurityHeaders(s.handleCreateTask))
	mux.HandleFunc("PUT /api/tasks/{id}", s.withSecurityHeaders(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", s.withSecurityHeaders(s.handleDeleteTask))

	mux.HandleFunc("GET /api/groups", s.withSecurityHeaders(s.handleListGroups))
	mux.HandleFunc("GET /api/groups/{id}", s.withSecurityHeaders(s.handleGetGroup))
	mux.HandleFunc("POST /api/groups", s.withSecurityHeaders(s.handleCreateGroup))
	mux.HandleFunc("PUT /api/groups/{id}", s.withSecurityHeaders(s.handleUpdateGroup))
	mux.HandleFunc("DELETE /api/groups/{id}", s.withSecurityHeaders(s.handleDeleteGroup))
	mux.HandleFunc("POST /api/groups/{id}/members", s.withSecurityHeaders(s.handleAddGroupMember))
	mux.HandleFunc("DELETE /api/groups/{id}/members/{userId}", s.withSecurityHeaders(s.handleRemoveGroupMember))

	mux.HandleFunc("GET /api/transactions", s.withSecurityHeaders(s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.withSecurityHeaders(s.handleGetTransaction))
	mux.HandleFunc("POST /api/transactions", s.withSecurityHeaders(s.handleCreateTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.withSecurityHeaders(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.withSecurityHeaders(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/budgets", s.withSecurityHeaders(s.handleListBudgets))
	mux.HandleFunc("GET /api/budgets/transaction/{transactionId}", s.withSecurityHeaders(s.handleGetBudgetByTransaction))
	mux.HandleFunc("GET /api/budgets/summary/{userId}", s.withSecurityHeaders(s.handleBudgetSummary))
	mux.HandleFunc("POST /api/budgets", s.withSecurityHeaders(s.handleCreateBudget))
	mux.HandleFunc("PUT /api/budgets/{id}", s.withSecurityHeaders(s.handleUpdateBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.withSecurityHeaders(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/backup", s.withSecurityHeaders(s.handleBackupExport))
	mux.HandleFunc("POST /api/backup/restore", s.withSecurityHeaders(s.handleBackupRestore))

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.summaryCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Summary cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
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

// withSecurityHeaders adds security headers, rate limiting, and
// request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Mutating methods go through the rate limiter.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			errorJSON(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.repo.ListUsers(r.Context()); err != nil {
		errorJSON(w, http.StatusServiceUnavailable, "store not ready")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
