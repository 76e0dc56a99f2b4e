// Package server exposes the Cardrail HTTP API: bulk job management and
// monitoring, company and card administration, CSV onboarding, and a
// WebSocket feed of job progress events.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cardrail/cardrail/bulk"
	"github.com/cardrail/cardrail/card"
	"github.com/cardrail/cardrail/company"
	"github.com/cardrail/cardrail/config"
	"github.com/cardrail/cardrail/errors"
	"github.com/cardrail/cardrail/logger"
	"github.com/cardrail/cardrail/version"
)

// Server is the Cardrail API server
type Server struct {
	cfg        *config.Config
	db         *sql.DB
	companies  *company.Store
	cards      *card.Store
	jobs       *bulk.Store
	emitter    *bulk.Emitter
	dispatcher *bulk.Dispatcher
	log        *zap.SugaredLogger

	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

// New creates the API server. The dispatcher may be nil when the server
// runs without background processing (one-shot CLI mode).
func New(cfg *config.Config, db *sql.DB, emitter *bulk.Emitter, dispatcher *bulk.Dispatcher, log *zap.SugaredLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:        cfg,
		db:         db,
		companies:  company.NewStore(db),
		cards:      card.NewStore(db),
		jobs:       bulk.NewStore(db),
		emitter:    emitter,
		dispatcher: dispatcher,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
		clients:    make(map[*wsClient]struct{}),
	}
}

// Routes builds the HTTP handler with all endpoints registered
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/health", s.handleHealth)

	mux.HandleFunc("/api/companies", s.handleCompanies)
	mux.HandleFunc("/api/companies/", s.handleCompany)

	mux.HandleFunc("/api/cards/", s.handleCard)

	mux.HandleFunc("/api/bulk/jobs", s.handleBulkJobs)
	mux.HandleFunc("/api/bulk/jobs/", s.handleBulkJob)
	mux.HandleFunc("/api/bulk/wallet/status", s.handleKindStatus(bulk.KindWalletSync))
	mux.HandleFunc("/api/bulk/email/status", s.handleKindStatus(bulk.KindEmail))

	mux.HandleFunc("/ws/jobs", s.handleJobsWebSocket)

	return s.withCORS(s.withRequestLog(mux))
}

// Start begins serving and launches the event broadcaster.
// Blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	port := config.DefaultServerPort
	if s.cfg.Server.Port != nil {
		port = *s.cfg.Server.Port
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.emitter != nil {
		s.startEventBroadcaster()
	}

	s.log.Infow("API server listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "server failed")
}

// Shutdown stops the server and waits for background goroutines
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.wg.Wait()
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	status := map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	}
	if err := s.db.Ping(); err != nil {
		status["status"] = "degraded"
		status["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	if s.dispatcher != nil {
		status["dispatcher"] = s.dispatcher.Stats()
	}
	writeJSON(w, http.StatusOK, status)
}

// withRequestLog logs each request with method, path, and duration
func (s *Server) withRequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debugw("request handled",
			logger.FieldMethod, r.Method,
			logger.FieldPath, r.URL.Path,
			logger.FieldDurationMS, time.Since(start).Milliseconds(),
		)
	})
}

// withCORS applies the configured origin allow-list
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
