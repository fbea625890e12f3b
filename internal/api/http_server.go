// Package api exposes the operational HTTP surface of the sync engine:
// status, queue info and dead letter maintenance.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tidesync/internal/config"
	"tidesync/internal/metrics"
	"tidesync/internal/models"
)

// Engine is the sync surface the API serves.
type Engine interface {
	Status() models.SyncStatus
	QueueInfo() models.QueueInfo
	DeadLetters() []models.DeadLetterEntry
	RetryDeadLetter(ctx context.Context) error
	ClearDeadLetter(ctx context.Context) error
	ClearQueue(ctx context.Context) error
}

// HTTPServer wraps the engine behind an authenticated HTTP API.
type HTTPServer struct {
	cfg    config.APIConfig
	engine Engine
	server *http.Server
	auth   *HTTPAuth
	logger zerolog.Logger
}

func NewHTTPServer(cfg config.APIConfig, engine Engine, logger zerolog.Logger) *HTTPServer {
	mux := http.NewServeMux()
	srv := &HTTPServer{
		cfg:    cfg,
		engine: engine,
		logger: logger.With().Str("component", "api").Logger(),
	}
	srv.auth = NewHTTPAuth(cfg)

	mux.HandleFunc("/api/v1/sync/status", srv.handleStatus)
	mux.HandleFunc("/api/v1/sync/queue", srv.handleQueue)
	mux.HandleFunc("/api/v1/sync/deadletter", srv.handleDeadLetter)
	mux.HandleFunc("/api/v1/sync/deadletter/retry", srv.handleDeadLetterRetry)

	handler := srv.loggingMiddleware(srv.auth.Wrap(mux))

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the configured root handler, used by tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_status")
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *HTTPServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_queue")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.QueueInfo())
	case http.MethodDelete:
		if err := s.engine.ClearQueue(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "queue cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleDeadLetter(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_deadletter")
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.engine.DeadLetters())
	case http.MethodDelete:
		if err := s.engine.ClearDeadLetter(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"result": "dead letter cleared"})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleDeadLetterRetry(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("sync_deadletter_retry")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.engine.RetryDeadLetter(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "dead letter retried"})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// HTTPAuth validates the API key header against the configured clients and
// applies per-key rate limiting.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients map[string]config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, limiter: newRateLimiter(&cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := ""
		if a.cfg.Auth.Enabled {
			header := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
			if header == "" {
				header = "x-api-key"
			}
			key = strings.TrimSpace(r.Header.Get(header))
			if !a.validKey(key) {
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
		}

		if a.cfg.RateLimit.RPS > 0 && !a.limiter.getLimiter(key).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) validKey(key string) bool {
	if key == "" {
		return false
	}
	for known := range a.clients {
		if subtle.ConstantTimeCompare([]byte(known), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
