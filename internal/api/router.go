package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Router builds the chi router for the render service.
func Router(a *App) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(a.Log))

	r.Get("/health", a.Health)
	r.Post("/render", a.Render)
	r.Post("/render/async", a.RenderAsync)
	r.Get("/jobs/{job_id}", a.JobStatus)
	r.Post("/cache/cleanup", a.CacheCleanup)

	return r
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			l.Info().Msgf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
		})
	}
}
