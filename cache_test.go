package photograde

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testCache(t *testing.T) *Cache {
	t.Helper()
	c, err := NewCache(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestCacheStoreLookupRoundTrip(t *testing.T) {
	c := testCache(t)
	key := strings.Repeat("ab", 32)

	if _, err := c.Lookup(key); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("lookup before store: %v, want ErrCacheMiss", err)
	}

	path, err := c.Store(key, "jpeg", bytes.NewReader([]byte("rendered")))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if filepath.Ext(path) != ".jpg" {
		t.Errorf("entry extension = %q, want .jpg", filepath.Ext(path))
	}

	got, err := c.Lookup(key)
	if err != nil {
		t.Fatalf("lookup after store: %v", err)
	}
	if got != path {
		t.Errorf("lookup path = %q, want %q", got, path)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "rendered" {
		t.Errorf("entry contents = %q", data)
	}
}

func TestCacheStoreOverwriteWins(t *testing.T) {
	c := testCache(t)
	key := strings.Repeat("cd", 32)
	if _, err := c.Store(key, "jpeg", bytes.NewReader([]byte("first"))); err != nil {
		t.Fatal(err)
	}
	path, err := c.Store(key, "jpeg", bytes.NewReader([]byte("second")))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("entry contents = %q, want last write", data)
	}
}

func TestCacheEvictAgeBoundary(t *testing.T) {
	c := testCache(t)
	now := time.Now()
	entries := map[string]time.Time{
		strings.Repeat("aa", 32): now,
		strings.Repeat("bb", 32): now.Add(-2 * time.Hour),
		strings.Repeat("cc", 32): now.Add(-48 * time.Hour),
	}
	for key, mtime := range entries {
		path, err := c.Store(key, "jpeg", bytes.NewReader([]byte("x")))
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	// A stale temp file must survive the sweep.
	tmpPath := filepath.Join(c.Dir(), strings.Repeat("dd", 32)+".tmp123")
	if err := os.WriteFile(tmpPath, []byte("partial"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := now.Add(-72 * time.Hour)
	if err := os.Chtimes(tmpPath, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := c.Evict(24 * time.Hour)
	if err != nil {
		t.Fatalf("evict: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := c.Lookup(strings.Repeat("cc", 32)); !errors.Is(err, ErrCacheMiss) {
		t.Error("48h-old entry survived eviction")
	}
	if _, err := c.Lookup(strings.Repeat("bb", 32)); err != nil {
		t.Error("2h-old entry was evicted")
	}
	if _, err := os.Stat(tmpPath); err != nil {
		t.Error("temp file was evicted")
	}
}

func TestIsCacheEntry(t *testing.T) {
	key := strings.Repeat("ef", 32)
	cases := []struct {
		name string
		want bool
	}{
		{name: key + ".jpg", want: true},
		{name: key + ".png", want: true},
		{name: key + ".tmp42", want: false},
		{name: "readme.txt", want: false},
		{name: strings.Repeat("zz", 32) + ".jpg", want: false}, // not hex
	}
	for _, tc := range cases {
		if got := isCacheEntry(tc.name); got != tc.want {
			t.Errorf("isCacheEntry(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFileIDChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "img.jpg")
	if err := os.WriteFile(path, []byte("one"), 0o644); err != nil {
		t.Fatal(err)
	}
	id1, err := FileID(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("longer content"), 0o644); err != nil {
		t.Fatal(err)
	}
	id2, err := FileID(path)
	if err != nil {
		t.Fatal(err)
	}
	if id1 == id2 {
		t.Error("identity unchanged after rewrite")
	}
}
