package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/authcache/health"
	"github.com/jonwraymond/authcache/keystore"
	"github.com/jonwraymond/authcache/observe"
)

// Server routes HTTP requests to the cached keystore.
type Server struct {
	store      *keystore.CachedStore
	checks     *health.Aggregator
	logger     observe.Logger
	adminToken string
}

// Option configures a Server.
type Option func(*Server)

// WithAdminToken guards the invalidation endpoints with a bearer token.
// An empty token leaves them open.
func WithAdminToken(token string) Option {
	return func(s *Server) { s.adminToken = token }
}

// New creates a Server. The aggregator may be nil; health endpoints then
// report liveness only.
func New(store *keystore.CachedStore, checks *health.Aggregator, logger observe.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("server: store is nil")
	}
	if logger == nil {
		logger = observe.NopLogger()
	}
	if checks == nil {
		checks = health.NewAggregator()
	}
	s := &Server{
		store:  store,
		checks: checks,
		logger: logger.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.logger))
	r.Use(Recover(s.logger))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/keys/{id}", s.handleGetKey)
		r.Get("/keys/{id}/usage", s.handleGetUsage)
		r.Get("/owners/{ownerID}/keys", s.handleListKeys)
		r.Get("/apis/{id}", s.handleGetAPI)

		r.Group(func(r chi.Router) {
			r.Use(RequireToken(s.adminToken))
			r.Delete("/keys/{id}/cache", s.handleInvalidateKey)
			r.Delete("/owners/{ownerID}/cache", s.handleInvalidateOwner)
			r.Delete("/apis/{id}/cache", s.handleInvalidateAPI)
		})
	})

	r.Get("/healthz", health.LivenessHandler())
	r.Get("/readyz", health.ReadinessHandler(s.checks))
	r.Get("/health", health.DetailedHandler(s.checks))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	bundle, err := s.store.GetKeyBundle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, bundle)
}

func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.store.GetUsage(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, usage)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := s.store.ListKeysByOwner(r.Context(), chi.URLParam(r, "ownerID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if keys == nil {
		keys = []keystore.KeySummary{}
	}
	s.writeJSON(w, r, http.StatusOK, keys)
}

func (s *Server) handleGetAPI(w http.ResponseWriter, r *http.Request) {
	api, err := s.store.GetAPI(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, api)
}

func (s *Server) handleInvalidateKey(w http.ResponseWriter, r *http.Request) {
	if err := s.store.InvalidateKey(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateOwner(w http.ResponseWriter, r *http.Request) {
	if err := s.store.InvalidateOwner(r.Context(), chi.URLParam(r, "ownerID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleInvalidateAPI(w http.ResponseWriter, r *http.Request) {
	if err := s.store.InvalidateAPI(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "response encode failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	if errors.Is(err, keystore.ErrNotFound) {
		status = http.StatusNotFound
		message = "not found"
	} else {
		s.logger.Error(r.Context(), "request failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}
