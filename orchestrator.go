package photograde

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// RenderSource identifies which path produced a result.
type RenderSource string

const (
	SourceCache    RenderSource = "cache"
	SourceExternal RenderSource = "external"
	SourceFallback RenderSource = "fallback"
)

// Request is a single render invocation. Exactly one of ImagePath or
// ImageBytes must be set.
type Request struct {
	ImagePath  string
	ImageBytes []byte
	Params     Params
	UseCache   bool
	Width      int // output width limit, 0 keeps the source size
	Quality    int
	Format     string // "jpeg" or "png"
}

// Result is what every caller gets back, success or not.
type Result struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	OutputPath string       `json:"output_path,omitempty"`
	Source     RenderSource `json:"source,omitempty"`
	Key        string       `json:"key,omitempty"`
}

// Orchestrator is the single entry point for rendering. It owns the cache
// wiring and the external-first, internal-fallback decision; callers never
// see an adapter failure unless both paths fail.
type Orchestrator struct {
	cache  *Cache
	engine *Engine
	ext    ExternalRenderer
	log    zerolog.Logger
}

// NewOrchestrator wires a render pipeline. ext may be nil to disable the
// external path entirely.
func NewOrchestrator(cache *Cache, engine *Engine, ext ExternalRenderer, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{cache: cache, engine: engine, ext: ext, log: log}
}

// Render resolves the input, consults the cache, and renders via the
// external adapter with internal fallback. The successful output is always
// stored under its cache key.
func (o *Orchestrator) Render(ctx context.Context, req Request) Result {
	imageID, imagePath, cleanup, err := o.resolveInput(req)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		// The only failure that skips both renderers.
		return Result{Success: false, Message: fmt.Sprintf("input image: %v", err)}
	}

	quality := req.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	format := normalizeFormat(req.Format)
	key := ComputeKey(imageID, req.Params, req.Width, quality, format)
	log := o.log.With().Str("key", key[:12]).Logger()

	if req.UseCache {
		if path, err := o.cache.Lookup(key); err == nil {
			log.Debug().Str("path", path).Msg("cache hit")
			return Result{Success: true, Message: "from cache", OutputPath: path, Source: SourceCache, Key: key}
		} else if !errors.Is(err, ErrCacheMiss) {
			// A cache-layer failure is just a miss.
			log.Warn().Err(err).Msg("cache lookup failed")
		}
	}

	if path, err := o.renderExternal(ctx, req, imagePath, key, format, quality); err == nil {
		return Result{Success: true, Message: "rendered (external)", OutputPath: path, Source: SourceExternal, Key: key}
	} else if !errors.Is(err, ErrUnavailable) {
		log.Warn().Err(err).Msg("external render failed, falling back")
	} else {
		log.Debug().Msg("external renderer unavailable")
	}

	path, err := o.renderFallback(req, imagePath, key, format, quality)
	if err != nil {
		log.Error().Err(err).Msg("fallback render failed")
		return Result{Success: false, Message: fmt.Sprintf("render failed: %v", err), Key: key}
	}
	return Result{Success: true, Message: "rendered (fallback)", OutputPath: path, Source: SourceFallback, Key: key}
}

// resolveInput normalizes the request to an identity string and an
// on-disk path, spilling byte inputs to a temp file.
func (o *Orchestrator) resolveInput(req Request) (id, path string, cleanup func(), err error) {
	if len(req.ImageBytes) > 0 {
		f, err := os.CreateTemp("", "photograde-in-*")
		if err != nil {
			return "", "", nil, err
		}
		name := f.Name()
		cleanup = func() { os.Remove(name) }
		if _, err := f.Write(req.ImageBytes); err != nil {
			f.Close()
			return "", "", cleanup, err
		}
		if err := f.Close(); err != nil {
			return "", "", cleanup, err
		}
		return BytesID(req.ImageBytes), name, cleanup, nil
	}
	if req.ImagePath == "" {
		return "", "", nil, errors.New("no image supplied")
	}
	abs, err := filepath.Abs(req.ImagePath)
	if err != nil {
		return "", "", nil, err
	}
	id, err = FileID(abs)
	if err != nil {
		return "", "", nil, err
	}
	return id, abs, nil, nil
}

func (o *Orchestrator) renderExternal(ctx context.Context, req Request, imagePath, key, format string, quality int) (string, error) {
	if o.ext == nil {
		return "", ErrUnavailable
	}
	if !o.ext.Probe(ctx) {
		return "", ErrUnavailable
	}
	tmp, err := os.CreateTemp("", "photograde-out-*."+formatExt(format))
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpName)

	out, err := o.ext.Render(ctx, ExternalRequest{
		ImagePath:  imagePath,
		Params:     req.Params,
		OutputPath: tmpName,
		Format:     format,
		Quality:    quality,
	})
	if err != nil {
		return "", err
	}
	path, err := o.cache.StoreFile(key, format, out)
	if err != nil {
		// Cache trouble must not fail a finished render.
		o.log.Warn().Err(err).Msg("cache store failed, keeping temp output")
		return o.spillOutput(out, key, format)
	}
	return path, nil
}

// renderFallback runs the internal engine. A panic in a transform stage is
// reported as a structured failure instead of crashing the process.
func (o *Orchestrator) renderFallback(req Request, imagePath, key, format string, quality int) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("engine: %v", r)
		}
	}()
	buf, _, err := LoadImage(imagePath)
	if err != nil {
		return "", err
	}
	o.engine.Apply(buf, req.Params)
	data, err := EncodeBytes(buf, format, quality, req.Width)
	if err != nil {
		return "", err
	}
	path, err = o.cache.Store(key, format, bytes.NewReader(data))
	if err != nil {
		o.log.Warn().Err(err).Msg("cache store failed, keeping temp output")
		tmp := filepath.Join(os.TempDir(), key+"."+formatExt(format))
		if werr := os.WriteFile(tmp, data, 0o644); werr != nil {
			return "", werr
		}
		return tmp, nil
	}
	return path, nil
}

// spillOutput copies a finished render outside the cache when the cache
// cannot take it.
func (o *Orchestrator) spillOutput(src, key, format string) (string, error) {
	dst := filepath.Join(os.TempDir(), key+"."+formatExt(format))
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return dst, nil
}
