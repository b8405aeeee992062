package photograde

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

// fakeRenderer is an in-memory ExternalRenderer so the fallback logic is
// testable without a container runtime.
type fakeRenderer struct {
	up      bool
	fail    bool
	calls   int
	payload []byte
}

func (f *fakeRenderer) Probe(context.Context) bool { return f.up }

func (f *fakeRenderer) Render(_ context.Context, req ExternalRequest) (string, error) {
	f.calls++
	if f.fail {
		return "", errors.New("renderer exploded")
	}
	payload := f.payload
	if payload == nil {
		payload = []byte("external output")
	}
	if err := os.WriteFile(req.OutputPath, payload, 0o644); err != nil {
		return "", err
	}
	return req.OutputPath, nil
}

func writeTestPNG(t *testing.T, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "input.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testOrchestrator(t *testing.T, ext ExternalRenderer) *Orchestrator {
	t.Helper()
	return NewOrchestrator(testCache(t), NewEngine(), ext, zerolog.Nop())
}

func TestRenderMissingImageFailsFast(t *testing.T) {
	o := testOrchestrator(t, &fakeRenderer{up: true})
	res := o.Render(context.Background(), Request{ImagePath: "/nowhere/img.jpg", UseCache: true})
	if res.Success {
		t.Fatal("expected failure for missing input")
	}
	if !bytes.HasPrefix([]byte(res.Message), []byte("input image:")) {
		t.Errorf("message = %q, want input image error", res.Message)
	}
}

func TestRenderUsesExternalWhenUp(t *testing.T) {
	ext := &fakeRenderer{up: true}
	o := testOrchestrator(t, ext)
	res := o.Render(context.Background(), Request{
		ImagePath: writeTestPNG(t, color.NRGBA{R: 120, G: 120, B: 120, A: 255}),
		UseCache:  true,
	})
	if !res.Success {
		t.Fatalf("render failed: %s", res.Message)
	}
	if res.Message != "rendered (external)" || res.Source != SourceExternal {
		t.Errorf("message=%q source=%q, want external", res.Message, res.Source)
	}
	if ext.calls != 1 {
		t.Errorf("external calls = %d, want 1", ext.calls)
	}
	data, err := os.ReadFile(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "external output" {
		t.Errorf("cached entry = %q, want external payload", data)
	}
}

func TestRenderFallsBackWhenExternalDown(t *testing.T) {
	for name, ext := range map[string]ExternalRenderer{
		"probe negative": &fakeRenderer{up: false},
		"render failure": &fakeRenderer{up: true, fail: true},
		"no adapter":     nil,
	} {
		t.Run(name, func(t *testing.T) {
			o := testOrchestrator(t, ext)
			res := o.Render(context.Background(), Request{
				ImagePath: writeTestPNG(t, color.NRGBA{R: 64, G: 128, B: 200, A: 255}),
				UseCache:  true,
			})
			if !res.Success {
				t.Fatalf("render failed: %s", res.Message)
			}
			if res.Message != "rendered (fallback)" || res.Source != SourceFallback {
				t.Errorf("message=%q source=%q, want fallback", res.Message, res.Source)
			}
			if _, err := os.Stat(res.OutputPath); err != nil {
				t.Errorf("output missing: %v", err)
			}
		})
	}
}

func TestRenderCacheHitIsDeterministic(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := Request{
		ImagePath: writeTestPNG(t, color.NRGBA{R: 90, G: 140, B: 60, A: 255}),
		UseCache:  true,
	}
	req.Params.Basic.Exposure = 0.5

	first := o.Render(context.Background(), req)
	if !first.Success {
		t.Fatalf("first render failed: %s", first.Message)
	}
	miss, err := os.ReadFile(first.OutputPath)
	if err != nil {
		t.Fatal(err)
	}

	second := o.Render(context.Background(), req)
	if !second.Success || second.Message != "from cache" || second.Source != SourceCache {
		t.Fatalf("second render = %+v, want cache hit", second)
	}
	if second.OutputPath != first.OutputPath {
		t.Errorf("paths differ: %q vs %q", first.OutputPath, second.OutputPath)
	}
	hit, err := os.ReadFile(second.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(miss, hit) {
		t.Error("cache miss and hit outputs are not byte-identical")
	}
}

func TestRenderFormatChangeMissesCache(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := Request{
		ImagePath: writeTestPNG(t, color.NRGBA{R: 90, G: 140, B: 60, A: 255}),
		UseCache:  true,
		Format:    "jpeg",
	}
	first := o.Render(context.Background(), req)
	if !first.Success {
		t.Fatalf("jpeg render failed: %s", first.Message)
	}
	if filepath.Ext(first.OutputPath) != ".jpg" {
		t.Errorf("jpeg output path = %q", first.OutputPath)
	}

	req.Format = "png"
	second := o.Render(context.Background(), req)
	if !second.Success {
		t.Fatalf("png render failed: %s", second.Message)
	}
	if second.Source == SourceCache {
		t.Fatalf("png request served from the jpeg cache entry: %+v", second)
	}
	if filepath.Ext(second.OutputPath) != ".png" {
		t.Errorf("png output path = %q", second.OutputPath)
	}
	if second.Key == first.Key {
		t.Error("cache keys match across formats")
	}
}

func TestRenderSkipsCacheWhenDisabled(t *testing.T) {
	ext := &fakeRenderer{up: true}
	o := testOrchestrator(t, ext)
	req := Request{
		ImagePath: writeTestPNG(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}),
		UseCache:  false,
	}
	o.Render(context.Background(), req)
	o.Render(context.Background(), req)
	if ext.calls != 2 {
		t.Errorf("external calls = %d, want 2 with cache disabled", ext.calls)
	}
}

func TestRenderFromBytes(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	o := testOrchestrator(t, nil)
	res := o.Render(context.Background(), Request{ImageBytes: buf.Bytes(), UseCache: true})
	if !res.Success {
		t.Fatalf("render failed: %s", res.Message)
	}
	if res.Message != "rendered (fallback)" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestRenderExposureBrightensMidGray(t *testing.T) {
	o := testOrchestrator(t, nil)
	req := Request{
		ImagePath: writeTestPNG(t, color.NRGBA{R: 128, G: 128, B: 128, A: 255}),
		UseCache:  true,
		Format:    "png",
	}
	req.Params.Basic.Exposure = 1
	res := o.Render(context.Background(), req)
	if !res.Success {
		t.Fatalf("render failed: %s", res.Message)
	}
	out, _, err := LoadImage(res.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	// 128 doubled per the one-stop law clamps to the white point.
	for i, v := range out.Pix {
		if v < 0.99 {
			t.Fatalf("pixel %d = %v, want ~1 after +1 EV on mid-gray", i, v)
		}
	}
}
