// Package server exposes the core operations as a JSON API for the dashboard.
// Every request carries the account credential in the X-Api-Key header; the
// server itself never stores it.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nxsync/nxsync/internal/utils"
	"github.com/nxsync/nxsync/pkg/nextdns"
	"github.com/nxsync/nxsync/pkg/syncer"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const apiKeyHeader = "X-Api-Key"

// ClientFactory builds an API client bound to one credential.
type ClientFactory func(apiKey string) (nextdns.API, error)

type Config struct {
	Username string
	Password string

	Delay      time.Duration
	RetryDelay time.Duration
	MaxRetries int
	// NoLock disables the per-key run lock around mutating requests.
	NoLock bool
}

type Server struct {
	newClient ClientFactory
	cfg       Config
	log       *logrus.Logger
}

func New(factory ClientFactory, cfg Config) *Server {
	if cfg.Delay == 0 {
		cfg.Delay = syncer.DefaultDelay
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = syncer.DefaultRetryDelay
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = syncer.DefaultMaxRetries
	}
	return &Server{newClient: factory, cfg: cfg, log: utils.Log}
}

// Router wires the routes. Long-running operations are not wrapped in a
// request timeout since a large sync can legitimately take minutes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.requestLogger, middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)
	r.Group(func(pr chi.Router) {
		pr.Use(s.basicAuth)
		pr.Handle("/metrics", promhttp.Handler())

		pr.Group(func(ar chi.Router) {
			ar.Use(s.requireAPIKey)
			ar.Get("/api/profiles", s.handleProfiles)
			ar.Post("/api/domains", s.handleDomains)
			ar.Post("/api/sync/analyze", s.handleSyncAnalyze)
			ar.Post("/api/sync/execute", s.handleSyncExecute)
			ar.Post("/api/diff", s.handleDiff)
			ar.Post("/api/copy", s.handleCopy)
		})
	})
	return r
}

func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Infof("Starting dashboard API on %s", addr)
	return srv.ListenAndServe()
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username == "" && s.cfg.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.Username || pass != s.cfg.Password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(apiKeyHeader) == "" {
			writeError(w, http.StatusUnauthorized, "missing "+apiKeyHeader+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(started).Round(time.Millisecond),
		}).Debug("request")
	})
}

// withLock runs fn while holding the run lock of apiKey.
func (s *Server) withLock(apiKey string, fn func() error) error {
	if s.cfg.NoLock {
		return fn()
	}
	lock, err := utils.NewRunLock(apiKey)
	if err != nil {
		return err
	}
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()
	return fn()
}
