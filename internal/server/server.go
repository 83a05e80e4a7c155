package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/dshills/marginalia/internal/cache"
	"github.com/dshills/marginalia/internal/config"
	"github.com/dshills/marginalia/internal/logging"
	"github.com/dshills/marginalia/internal/review"
)

const (
	slowRequest     = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	Config   config.Config
	Version  string
	Personas []review.Persona
	Cache    *cache.Cache
	// Factory overrides provider construction; nil builds providers from the
	// effective per-request config.
	Factory review.Factory
}

// Server is the HTTP API: a chi router behind a stdlib http.Server.
type Server struct {
	opt Options
	mux *chi.Mux
	srv *http.Server
}

// New builds the router and mounts every route.
func New(opt Options) *Server {
	if len(opt.Personas) == 0 {
		opt.Personas = review.DefaultPersonas()
	}
	s := &Server{opt: opt, mux: chi.NewRouter()}

	s.mux.Use(
		chimw.RequestID,
		chimw.RealIP,
		requestContext,
		accessLog(slowRequest),
		chimw.Recoverer,
		corsHandler(opt.Config.Server.CORSOrigins),
		chimw.Heartbeat("/healthz"),
	)
	s.routes()

	s.srv = &http.Server{
		Addr:              opt.Config.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.mux.Route("/api", func(r chi.Router) {
		r.Get("/personas", handle(s.listPersonas))
		r.Get("/models", handle(s.listModels))
		r.Post("/review", handle(s.review))
		r.Post("/review/stream", s.reviewStream)
		r.Post("/merge", handle(s.merge))
		r.Post("/retry", handle(s.retry))
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// Run listens on the configured address until ctx ends, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logging.Named("http")
	log.Info().Str("addr", ln.Addr().String()).Msg("http listening")

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("http shutting down")
		return s.srv.Shutdown(shutdownCtx)
	}
}
