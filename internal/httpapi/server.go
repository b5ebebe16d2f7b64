// Package httpapi is the admin HTTP surface over a registry of engines.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/engine"
	"github.com/danielpatrickdp/adaptive-state/gatekeeper/internal/publish"
)

type ctxKey string

const requestIDKey ctxKey = "request_id"

// Server serves the admin API.
type Server struct {
	reg      *engine.Registry
	gatherer prometheus.Gatherer
	router   *mux.Router
	log      zerolog.Logger
	pub      *publish.Publisher
}

// NewServer builds the router. gatherer backs /metrics; nil disables it.
func NewServer(reg *engine.Registry, gatherer prometheus.Gatherer, log zerolog.Logger) *Server {
	s := &Server{
		reg:      reg,
		gatherer: gatherer,
		router:   mux.NewRouter(),
		log:      log.With().Str("component", "http").Logger(),
	}
	s.setupRoutes()
	return s
}

// WithPublisher reports the event publisher's breaker state and drop count
// on /health.
func (s *Server) WithPublisher(p *publish.Publisher) *Server {
	s.pub = p
	return s
}

// #region routes
func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/v1/config", s.getConfig).Methods(http.MethodGet)
	api.HandleFunc("/v1/config", s.patchConfig).Methods(http.MethodPatch)
	api.HandleFunc("/v1/symbols", s.listSymbols).Methods(http.MethodGet)
	api.HandleFunc("/v1/symbols/{symbol}/decide", s.decide).Methods(http.MethodPost)
	api.HandleFunc("/v1/symbols/{symbol}/history", s.history).Methods(http.MethodGet)
	api.HandleFunc("/v1/symbols/{symbol}/history", s.clearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/v1/symbols/{symbol}/flap", s.flapState).Methods(http.MethodGet)
	api.HandleFunc("/v1/symbols/{symbol}/config", s.symbolConfig).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path))
	})
}

// #endregion routes

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// #region middleware
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()[:8]
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		ctx = s.log.With().Str("request_id", id).Logger().WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		id, _ := r.Context().Value(requestIDKey).(string)
		s.log.Debug().
			Str("request_id", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// #endregion middleware
