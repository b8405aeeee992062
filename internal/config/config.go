// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the render service needs at startup.
type Config struct {
	Addr     string
	CacheDir string
	CacheTTL time.Duration

	Container     string
	Runtime       string
	ProbeTimeout  time.Duration
	CopyTimeout   time.Duration
	RenderTimeout time.Duration

	Workers int
	Quality int
	Format  string
}

// Load reads optional .env files and then the environment, applying
// defaults for anything unset.
func Load() Config {
	// Optional; absence is not an error.
	_ = godotenv.Load(".env", ".env.local")

	return Config{
		Addr:          getenv("PHOTOGRADE_ADDR", ":8080"),
		CacheDir:      getenv("PHOTOGRADE_CACHE_DIR", "render_cache"),
		CacheTTL:      getdur("PHOTOGRADE_CACHE_TTL", 24*time.Hour),
		Container:     getenv("PHOTOGRADE_CONTAINER", "rawtherapee"),
		Runtime:       getenv("PHOTOGRADE_RUNTIME", "docker"),
		ProbeTimeout:  getdur("PHOTOGRADE_PROBE_TIMEOUT", 5*time.Second),
		CopyTimeout:   getdur("PHOTOGRADE_COPY_TIMEOUT", 10*time.Second),
		RenderTimeout: getdur("PHOTOGRADE_RENDER_TIMEOUT", 60*time.Second),
		Workers:       getint("PHOTOGRADE_WORKERS", 2),
		Quality:       getint("PHOTOGRADE_QUALITY", 90),
		Format:        getenv("PHOTOGRADE_FORMAT", "jpeg"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
