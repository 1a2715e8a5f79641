// Package api assembles the gateway's HTTP surface.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/redisgate/redisgate/internal/api/handler"
	mw "github.com/redisgate/redisgate/internal/api/middleware"
	"github.com/redisgate/redisgate/internal/command"
	"github.com/redisgate/redisgate/internal/gateway"
	"github.com/redisgate/redisgate/internal/tenant"
)

type Server struct {
	router     chi.Router
	logger     zerolog.Logger
	dispatcher *gateway.Dispatcher
	policy     *command.Policy
	table      *tenant.Table
}

func NewServer(logger zerolog.Logger, dispatcher *gateway.Dispatcher, policy *command.Policy, table *tenant.Table) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger,
		dispatcher: dispatcher,
		policy:     policy,
		table:      table,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	// Data plane. The wildcard covers every shorthand route (ping, get,
	// set, del, incr, hset, hget, lpush, lpop, ...) plus the catch-all:
	// unknown shorthand fails translation with InvalidCommand.
	redis := handler.NewRedis(s.dispatcher, s.policy)
	s.router.Route("/redis/{instanceID}", func(r chi.Router) {
		r.Post("/", redis.Command)
		r.Get("/*", redis.Shorthand)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleReadyz reports ready once the tenant table has applied its first
// control-plane snapshot.
func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	checks := map[string]string{}
	healthy := true

	if s.table.Loaded() {
		checks["tenant_table"] = "ok"
	} else {
		checks["tenant_table"] = "no snapshot loaded"
		healthy = false
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
