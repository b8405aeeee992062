// Package api exposes the render service over HTTP: synchronous and async
// render endpoints, job polling, and cache cleanup.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vearutop/photograde"
)

// App bundles the service dependencies the handlers need.
type App struct {
	Orch  *photograde.Orchestrator
	Jobs  *photograde.Tracker
	Cache *photograde.Cache
	Log   zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, msg string) {
	a.json(w, code, map[string]string{"error": kind, "message": msg})
}
