// Package web exposes sample imports over HTTP.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/wgdzlh/sampledb"
	"github.com/wgdzlh/sampledb/config"
	"github.com/wgdzlh/sampledb/log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// StoreFunc returns the store of one request, nil when no database is
// configured.
type StoreFunc func() sampledb.Store

type Server struct {
	stores  StoreFunc
	cfg     *config.Config
	toolbox *sampledb.GdalToolbox
	router  *chi.Mux
	server  *http.Server
	logTag  string
}

func NewServer(cfg *config.Config, stores StoreFunc, toolbox *sampledb.GdalToolbox) *Server {
	if toolbox == nil {
		toolbox = sampledb.NewGdalToolbox()
	}
	s := &Server{
		stores:  stores,
		cfg:     cfg,
		toolbox: toolbox,
		router:  chi.NewRouter(),
		logTag:  "web:",
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Import.Timeout))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Post("/samples", s.handleImport)
		r.Get("/classes/{system}", s.handleClasses)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	log.Info(s.logTag+"starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) store() sampledb.Store {
	if s.stores == nil {
		return nil
	}
	return s.stores()
}

// requestLogger logs every request through zap with chi's request id.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info("web: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
