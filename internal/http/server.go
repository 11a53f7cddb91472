package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"cuentas/internal/services"
)

// Services bundles the engine services the server exposes.
type Services struct {
	Accounts  *services.AccountService
	Ledger    *services.LedgerService
	Transfers *services.TransferService
	Cards     *services.CardService
	Credits   *services.CreditService
	Cycles    *services.CycleService
	Capacity  *services.CapacityService
	Projects  *services.ProjectService
	Recurring *services.RecurringService
}

type Server struct {
	http.Server
	svc          Services
	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc Services) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		svc:         svc,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /projects", s.with(s.handleCreateProject))
	mux.HandleFunc("POST /projects/{id}/members", s.with(s.handleAddMember))
	mux.HandleFunc("PUT /projects/{id}/debt-limit", s.with(s.handleSetDebtLimit))
	mux.HandleFunc("GET /projects/{id}/capacity", s.with(s.handleCapacityReport))
	mux.HandleFunc("POST /projects/{id}/templates", s.with(s.handleCreateTemplate))
	mux.HandleFunc("GET /projects/{id}/templates", s.with(s.handleListTemplates))

	mux.HandleFunc("POST /accounts", s.with(s.handleCreateAccount))
	mux.HandleFunc("GET /accounts", s.with(s.handleListAccounts))
	mux.HandleFunc("GET /accounts/{id}", s.with(s.handleGetAccount))

	mux.HandleFunc("POST /transactions", s.with(s.handleCreateTransaction))
	mux.HandleFunc("GET /transactions/{id}", s.with(s.handleGetTransaction))
	mux.HandleFunc("PATCH /transactions/{id}", s.with(s.handleUpdateTransaction))
	mux.HandleFunc("POST /transactions/{id}/paid", s.with(s.handleTogglePaid))
	mux.HandleFunc("DELETE /transactions/{id}", s.with(s.handleDeleteTransaction))

	mux.HandleFunc("POST /transfers", s.with(s.handleCreateTransfer))
	mux.HandleFunc("PATCH /transfers/{id}", s.with(s.handleUpdateTransfer))
	mux.HandleFunc("DELETE /transfers/{id}", s.with(s.handleDeleteTransfer))
	mux.HandleFunc("POST /card-payments", s.with(s.handlePayCardInstallments))

	mux.HandleFunc("POST /card-purchases", s.with(s.handleCreateCardPurchase))
	mux.HandleFunc("GET /card-purchases", s.with(s.handleListCardPurchases))
	mux.HandleFunc("GET /card-purchases/{id}", s.with(s.handleGetCardPurchase))
	mux.HandleFunc("DELETE /card-purchases/{id}", s.with(s.handleDeleteCardPurchase))

	mux.HandleFunc("POST /credits", s.with(s.handleCreateCredit))
	mux.HandleFunc("GET /credits/{id}", s.with(s.handleGetCredit))
	mux.HandleFunc("POST /credits/{id}/installments", s.with(s.handleGenerateInstallments))
	mux.HandleFunc("DELETE /credits/{id}", s.with(s.handleDeleteCredit))

	mux.HandleFunc("POST /cycles", s.with(s.handleCreateCycle))
	mux.HandleFunc("GET /cycles/{id}/report", s.with(s.handleCycleReport))
	mux.HandleFunc("POST /cycles/{id}/close", s.with(s.handleCloseCycle))
	mux.HandleFunc("POST /cycles/{id}/reopen", s.with(s.handleReopenCycle))
	mux.HandleFunc("POST /cycles/{id}/recalculate", s.with(s.handleRecalculateCycle))
	mux.HandleFunc("DELETE /cycles/{id}", s.with(s.handleDeleteCycle))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// with adds security headers, rate limiting and request logging.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutating requests only.
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
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

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
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

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
