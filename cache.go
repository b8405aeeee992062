package photograde

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrCacheMiss is returned by Lookup when no entry exists for a key.
var ErrCacheMiss = errors.New("cache miss")

// Cache is a content-addressed directory of rendered outputs, one file per
// key named <key>.<ext>. Writes go through a temp file and a rename so a
// concurrent reader can never observe a partial entry.
type Cache struct {
	dir string
	log zerolog.Logger
}

// NewCache creates the cache directory if needed.
func NewCache(dir string, log zerolog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Cache{dir: dir, log: log}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

// Lookup returns the path of the cached output for key, or ErrCacheMiss.
func (c *Cache) Lookup(key string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, key+".*"))
	if err != nil {
		return "", fmt.Errorf("cache lookup: %w", err)
	}
	for _, m := range matches {
		if strings.Contains(filepath.Ext(m), "tmp") {
			continue
		}
		return m, nil
	}
	return "", ErrCacheMiss
}

// Store writes the rendered output for key and returns the entry path.
func (c *Cache) Store(key, format string, r io.Reader) (string, error) {
	final := filepath.Join(c.dir, key+"."+formatExt(format))
	tmp, err := os.CreateTemp(c.dir, key+".tmp*")
	if err != nil {
		return "", fmt.Errorf("cache store: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("cache store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cache store: %w", err)
	}
	// Last writer wins; duplicate concurrent renders of the same key are
	// idempotent overwrites, not corruption.
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("cache store: %w", err)
	}
	return final, nil
}

// StoreFile copies an already-rendered file into the cache.
func (c *Cache) StoreFile(key, format, srcPath string) (string, error) {
	f, err := os.Open(filepath.Clean(srcPath))
	if err != nil {
		return "", fmt.Errorf("cache store: %w", err)
	}
	defer f.Close()
	return c.Store(key, format, f)
}

// Evict removes cache entries strictly older than maxAge and returns the
// number removed. Temp files and foreign files are left alone, so a sweep
// is safe to run while renders are in flight.
func (c *Cache) Evict(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("cache evict: %w", err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !isCacheEntry(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		c.log.Warn().Int("failed", len(errs)).Msg("cache evict left entries behind")
		return removed, fmt.Errorf("cache evict: %w", errors.Join(errs...))
	}
	return removed, nil
}

// isCacheEntry matches <64 hex chars>.<ext> with a non-temp extension.
func isCacheEntry(name string) bool {
	dot := strings.IndexByte(name, '.')
	if dot != 64 {
		return false
	}
	if _, err := hex.DecodeString(name[:dot]); err != nil {
		return false
	}
	return !strings.Contains(name[dot:], "tmp")
}

// ComputeKey builds the deterministic cache key over the normalized image
// identity, the canonical parameter digest, the output geometry, and the
// normalized output format. Format is part of the key so a png request can
// never be answered with a cached jpeg.
func ComputeKey(imageID string, p Params, width, quality int, format string) string {
	p.Clamp()
	h := sha256.New()
	_, _ = io.WriteString(h, imageID)
	_, _ = io.WriteString(h, "|")
	p.digest(h)
	fmt.Fprintf(h, "|w=%d|q=%d|f=%s", width, quality, normalizeFormat(format))
	return hex.EncodeToString(h.Sum(nil))
}

// FileID normalizes an image file into a cheap identity string: absolute
// path plus size and mtime, so edits to the file change the key without
// hashing megapixels.
func FileID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve image: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat image: %w", err)
	}
	return fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()), nil
}

// BytesID is the identity of an in-memory image.
func BytesID(data []byte) string {
	sum := sha256.Sum256(data)
	return "bytes:" + hex.EncodeToString(sum[:])
}
