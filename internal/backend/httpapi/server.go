// Package httpapi exposes a messaging.Backend over JSON/HTTP and provides the
// matching client.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/cosmetic/internal/logging"
	"github.com/bnema/cosmetic/internal/messaging"
)

// Route paths shared by Server and Client.
const (
	PathGenericSelectors        = "/v1/generic-selectors"
	PathContentScriptParameters = "/v1/content-script-parameters"
	PathCollapsibleBlocked      = "/v1/collapsible-blocked-requests"
	PathFiltersInjected         = "/v1/cosmetic-filters-injected"
	PathHealth                  = "/healthz"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
)

// Server serves a Backend.
type Server struct {
	backend messaging.Backend
	logger  zerolog.Logger
	router  *chi.Mux
}

// NewServer builds the router for backend.
func NewServer(ctx context.Context, backend messaging.Backend) *Server {
	s := &Server{
		backend: backend,
		logger:  logging.FromContext(ctx).With().Str("component", "httpapi").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get(PathHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Post(PathGenericSelectors, handle(s, s.backend.RetrieveGenericSelectors))
	r.Post(PathContentScriptParameters, handle(s, s.backend.RetrieveContentScriptParameters))
	r.Post(PathCollapsibleBlocked, handle(s, s.backend.GetCollapsibleBlockedRequests))
	r.Post(PathFiltersInjected, s.handleFiltersInjected)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("backend listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// handle adapts one request/response backend call.
func handle[Req, Resp any](s *Server, call func(context.Context, Req) (Resp, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Req
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		resp, err := call(r.Context(), req)
		if err != nil {
			s.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("backend call failed")
			http.Error(w, "backend error", http.StatusBadGateway)
			return
		}
		writeJSON(w, resp)
	}
}

func (s *Server) handleFiltersInjected(w http.ResponseWriter, r *http.Request) {
	var report messaging.InjectedReport
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&report); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.backend.CosmeticFiltersInjected(r.Context(), report); err != nil {
		s.logger.Warn().Err(err).Msg("injected report rejected")
		http.Error(w, "backend error", http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
