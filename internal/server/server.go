// Package server exposes an engine over HTTP: JSON queries and mutations,
// a websocket frame stream, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/san-kum/orbitsim/internal/logging"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/sim"
	"golang.org/x/time/rate"
)

type Options struct {
	Addr          string
	StatePath     string
	StaticDir     string
	RateLimit     float64 // mutations per second per client, 0 disables
	Burst         int
	PublishBuffer int
	AutocertHost  string
	CertDir       string

	Logger   *log.Logger
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer // nil disables /metrics
}

type Server struct {
	engine  *sim.Engine
	opts    Options
	hub     *Hub
	limiter *IPRateLimiter
	logger  *log.Logger
	metrics *metrics.Collector
	handler http.Handler
}

func New(engine *sim.Engine, opts Options) *Server {
	s := &Server{
		engine:  engine,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
	}
	s.hub = NewHub(opts.PublishBuffer, s.logger, s.metrics)
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = NewIPRateLimiter(rate.Limit(opts.RateLimit), burst)
	}
	s.handler = s.routes()
	return s
}

// Hub is the frame sink to register with the clock.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /bodies", s.handleBodies)
	mux.HandleFunc("GET /bodies/{name}", s.handleBody)
	mux.HandleFunc("GET /collect/data/{name}", s.handleBody)
	mux.HandleFunc("GET /trajectory/{name}", s.handleTrajectory)
	mux.HandleFunc("GET /scene", s.handleScene)
	mux.HandleFunc("GET /study/{aspect}/{name}", s.handleStudy)
	mux.HandleFunc("GET /orbit/{name}", s.handleOrbit)

	mux.Handle("POST /scene/pause", s.mutation(s.handlePause))
	mux.Handle("POST /scene/time_scale/{factor}", s.mutation(s.handleTimeScale))
	mux.Handle("POST /scene/zoom/{factor}", s.mutation(s.handleZoom))
	mux.Handle("POST /scene/pan", s.mutation(s.handlePan))
	mux.Handle("POST /scene/track/{name}", s.mutation(s.handleTrack))
	mux.Handle("POST /scene/untrack", s.mutation(s.handleUntrack))
	mux.Handle("POST /spacecraft/launch", s.mutation(s.handleLaunch))
	mux.Handle("POST /save", s.mutation(s.handleSave))

	mux.HandleFunc("GET /ws/simulation", s.handleWS)
	if s.opts.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /{$}", s.handleIndex)

	return s.logRequests(mux)
}

func (s *Server) mutation(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Middleware(h)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "took", time.Since(start))
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.opts.StaticDir == "" {
		http.NotFound(w, r)
		return
	}
	index := filepath.Join(s.opts.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, index)
}

// ListenAndServe serves until ctx is cancelled, then shuts down
// gracefully. With AutocertHost set it serves TLS on Addr and answers ACME
// challenges on :80.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var challenge *http.Server
	if s.opts.AutocertHost != "" {
		m, err := newCertManager(s.opts.AutocertHost, s.opts.CertDir)
		if err != nil {
			return err
		}
		srv.TLSConfig = tlsConfig(m)
		challenge = challengeServer(m)
		go func() {
			if err := challenge.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("acme challenge server", "err", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr, "tls", srv.TLSConfig != nil)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.hub.Close()
	if challenge != nil {
		_ = challenge.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}
