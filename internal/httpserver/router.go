// Package httpserver assembles the chi router for the HTTP adapter.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"playground-gateway/internal/guard"
	"playground-gateway/internal/handlers"
	"playground-gateway/internal/metrics"
	"playground-gateway/internal/middleware"
)

type Options struct {
	CORSEnabled    bool
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// AuthorizeMetrics guards /metrics. Nil leaves it open.
	AuthorizeMetrics func(authorization string) error
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, recorder *metrics.Recorder, h *handlers.PlaygroundHandler, opts Options) {
	r.Use(recorder.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	if opts.CORSEnabled {
		r.Use(middleware.CORS())
	}
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.MaxBodySize(opts.MaxBodyBytes))

	r.Post("/compile", h.Compile())
	r.Post("/execute", h.Execute())
	r.Post("/format", h.Format())
	r.Post("/clippy", h.Clippy())
	r.Post("/miri", h.Miri())
	r.Post("/macro-expansion", h.MacroExpansion())
	r.Post("/evaluate.json", h.Evaluate())

	r.Route("/meta", func(r chi.Router) {
		r.Get("/crates", h.MetaCrates)
		r.Post("/crates", h.MetaCrates)
		r.Get("/version/{name}", h.MetaVersion)
		r.Post("/version/{name}", h.MetaVersion)
		r.Post("/gist", h.GistCreate())
		r.Get("/gist/{id}", h.GistLoad)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.AuthorizeMetrics != nil {
		r.With(guard.Middleware(opts.AuthorizeMetrics)).Handle("/metrics", recorder.Handler())
	} else {
		r.Handle("/metrics", recorder.Handler())
	}
}
