package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/vearutop/photograde"
	"github.com/vearutop/photograde/internal/api"
	"github.com/vearutop/photograde/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "render":
		if err := runRender(os.Args[2:]); err != nil {
			fail(err)
		}
	case "sidecar":
		if err := runSidecar(os.Args[2:]); err != nil {
			fail(err)
		}
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fail(err)
		}
	case "cache-clean":
		if err := runCacheClean(os.Args[2:]); err != nil {
			fail(err)
		}
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gradetool <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  render      -in photo.jpg -params grade.json [-out out.jpg] [-q 90] [-w 2048] [-no-cache] [-no-external]")
	fmt.Fprintln(os.Stderr, "  sidecar     -params grade.json [-out grade.pp3]")
	fmt.Fprintln(os.Stderr, "  serve       [-addr :8080]")
	fmt.Fprintln(os.Stderr, "  cache-clean [-max-age 24h]")
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func loadParams(path string, log zerolog.Logger) (photograde.Params, error) {
	if path == "" {
		return photograde.Params{}, errors.New("missing -params")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return photograde.Params{}, err
	}
	return photograde.ParamsFromJSON(data, log)
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	inPath := fs.String("in", "", "input image")
	paramsPath := fs.String("params", "", "adjustment parameters JSON")
	outPath := fs.String("out", "", "copy the rendered file here")
	q := fs.Int("q", 0, "output quality")
	w := fs.Int("w", 0, "max output width")
	format := fs.String("format", "jpeg", "output format (jpeg, png)")
	noCache := fs.Bool("no-cache", false, "skip cache lookup")
	noExternal := fs.Bool("no-external", false, "skip the external renderer")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" {
		return errors.New("missing -in")
	}
	log := newLogger()
	params, err := loadParams(*paramsPath, log)
	if err != nil {
		return err
	}

	cfg := config.Load()
	cache, err := photograde.NewCache(cfg.CacheDir, log)
	if err != nil {
		return err
	}
	var ext photograde.ExternalRenderer
	if !*noExternal {
		ext = newDockerRenderer(cfg, log)
	}
	orch := photograde.NewOrchestrator(cache, photograde.NewEngine(), ext, log)

	res := orch.Render(context.Background(), photograde.Request{
		ImagePath: *inPath,
		Params:    params,
		UseCache:  !*noCache,
		Width:     *w,
		Quality:   *q,
		Format:    *format,
	})
	if !res.Success {
		return errors.New(res.Message)
	}
	path := res.OutputPath
	if *outPath != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*outPath, data, 0o644); err != nil {
			return err
		}
		path = *outPath
	}
	fmt.Printf("%s: %s\n", res.Message, path)
	return nil
}

func runSidecar(args []string) error {
	fs := flag.NewFlagSet("sidecar", flag.ContinueOnError)
	paramsPath := fs.String("params", "", "adjustment parameters JSON")
	outPath := fs.String("out", "", "write profile here instead of stdout")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	params, err := loadParams(*paramsPath, newLogger())
	if err != nil {
		return err
	}
	if *outPath != "" {
		return os.WriteFile(*outPath, photograde.Sidecar(params), 0o644)
	}
	return photograde.WriteSidecar(os.Stdout, params)
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (overrides env)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}
	log := newLogger()

	cache, err := photograde.NewCache(cfg.CacheDir, log)
	if err != nil {
		return err
	}
	ext := newDockerRenderer(cfg, log)
	orch := photograde.NewOrchestrator(cache, photograde.NewEngine(), ext, log)
	jobs := photograde.NewTracker(orch, cfg.Workers, log)
	defer jobs.Close()

	app := &api.App{Orch: orch, Jobs: jobs, Cache: cache, Log: log}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("render service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to shutdown server")
	}
	log.Info().Msg("server stopped")
	return nil
}

func runCacheClean(args []string) error {
	fs := flag.NewFlagSet("cache-clean", flag.ContinueOnError)
	maxAge := fs.Duration("max-age", 24*time.Hour, "remove entries older than this")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg := config.Load()
	cache, err := photograde.NewCache(cfg.CacheDir, newLogger())
	if err != nil {
		return err
	}
	removed, err := cache.Evict(*maxAge)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d cache entries\n", removed)
	return nil
}

func newDockerRenderer(cfg config.Config, log zerolog.Logger) *photograde.DockerRenderer {
	d := photograde.NewDockerRenderer(cfg.Container, log)
	d.Runtime = cfg.Runtime
	d.ProbeTimeout = cfg.ProbeTimeout
	d.CopyTimeout = cfg.CopyTimeout
	d.RenderTimeout = cfg.RenderTimeout
	return d
}
