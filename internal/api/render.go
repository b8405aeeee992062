package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vearutop/photograde"
)

// renderRequest is the wire shape of a render call: the grade panels
// inline next to the image reference and output options.
type renderRequest struct {
	Image    string `json:"image"`
	UseCache *bool  `json:"use_cache"`
	Width    int    `json:"width"`
	Quality  int    `json:"quality"`
	Format   string `json:"format"`

	photograde.Params
}

func (r renderRequest) toRequest() photograde.Request {
	useCache := true
	if r.UseCache != nil {
		useCache = *r.UseCache
	}
	p := r.Params
	p.Clamp()
	return photograde.Request{
		ImagePath: r.Image,
		Params:    p,
		UseCache:  useCache,
		Width:     r.Width,
		Quality:   r.Quality,
		Format:    r.Format,
	}
}

// Render handles POST /render synchronously.
func (a *App) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Image == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image required")
		return
	}
	res := a.Orch.Render(r.Context(), req.toRequest())
	code := http.StatusOK
	if !res.Success {
		code = http.StatusUnprocessableEntity
	}
	a.json(w, code, res)
}

// RenderAsync handles POST /render/async: it queues the render and
// returns the job id before any work happens.
func (a *App) RenderAsync(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Image == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "image required")
		return
	}
	id, err := a.Jobs.Submit(req.toRequest())
	if err != nil {
		a.error(w, http.StatusServiceUnavailable, "unavailable", "render queue is not accepting jobs")
		return
	}
	a.json(w, http.StatusAccepted, map[string]string{
		"job_id": id.String(),
		"status": string(photograde.JobPending),
	})
}

// JobStatus handles GET /jobs/{job_id}.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "job_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid job id")
		return
	}
	job, err := a.Jobs.Status(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":      job.Status,
		"progress":    job.Progress,
		"output_path": orNil(job.OutputPath),
		"error":       orNil(job.Error),
	})
}

// CacheCleanup handles POST /cache/cleanup?max_age_hours=N.
func (a *App) CacheCleanup(w http.ResponseWriter, r *http.Request) {
	hours := 24.0
	if raw := r.URL.Query().Get("max_age_hours"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid max_age_hours")
			return
		}
		hours = v
	}
	removed, err := a.Cache.Evict(time.Duration(hours * float64(time.Hour)))
	if err != nil {
		a.Log.Warn().Err(err).Msg("cache cleanup incomplete")
	}
	a.json(w, http.StatusOK, map[string]int{"removed": removed})
}

// Health handles GET /health.
func (a *App) Health(w http.ResponseWriter, _ *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
