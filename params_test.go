package photograde

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseSigned(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{in: `2`, want: 2},
		{in: `-3.5`, want: -3.5},
		{in: `"+5"`, want: 5},
		{in: `"-12.5"`, want: -12.5},
		{in: `" +1.0 "`, want: 1},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"abc"`, wantErr: true},
		{in: `"--2"`, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseSigned(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSigned(%q): expected error, got %v", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSigned(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseSigned(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParamsFromJSONSignedStrings(t *testing.T) {
	p, err := ParamsFromJSON([]byte(`{
		"basic": {"exposure": "+1.5", "contrast": 30, "vibrance": "oops"},
		"whiteBalance": {"temp": "-20", "tint": 10},
		"hsl": {"green": {"saturation": "+50"}}
	}`), zerolog.Nop())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Basic.Exposure != 1.5 {
		t.Errorf("exposure = %v, want 1.5", p.Basic.Exposure)
	}
	if p.Basic.Contrast != 30 {
		t.Errorf("contrast = %v, want 30", p.Basic.Contrast)
	}
	// Malformed leaves resolve to neutral, never abort the document.
	if p.Basic.Vibrance != 0 {
		t.Errorf("vibrance = %v, want 0", p.Basic.Vibrance)
	}
	if p.WhiteBalance.Temperature != -20 {
		t.Errorf("temp = %v, want -20", p.WhiteBalance.Temperature)
	}
	if p.HSL.Green.Saturation != 50 {
		t.Errorf("green saturation = %v, want 50", p.HSL.Green.Saturation)
	}
}

func TestParamsFromJSONWarnsOnMalformedLeaf(t *testing.T) {
	var out bytes.Buffer
	log := zerolog.New(&out)
	p, err := ParamsFromJSON([]byte(`{
		"version": "1.0",
		"basic": {"exposure": 1, "vibrance": "oops"},
		"hsl": {"blue": {"hue": [3]}}
	}`), log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Basic.Vibrance != 0 || p.HSL.Blue.Hue != 0 {
		t.Errorf("malformed leaves not neutral: %v %v", p.Basic.Vibrance, p.HSL.Blue.Hue)
	}
	logged := out.String()
	for _, want := range []string{"basic.vibrance", "oops", "hsl.blue.hue"} {
		if !strings.Contains(logged, want) {
			t.Errorf("warning log missing %q: %s", want, logged)
		}
	}
	if strings.Contains(logged, "exposure") {
		t.Errorf("well-formed leaf was reported: %s", logged)
	}
	if strings.Contains(logged, "version") {
		t.Errorf("version string was reported: %s", logged)
	}
}

func TestParamsClampRanges(t *testing.T) {
	p := Params{}
	p.Basic.Exposure = 12
	p.Basic.Contrast = -250
	p.ColorGrading.Shadows.Hue = 370
	p.ColorGrading.Shadows.Saturation = -5
	p.Clamp()
	if p.Basic.Exposure != 5 {
		t.Errorf("exposure = %v, want 5", p.Basic.Exposure)
	}
	if p.Basic.Contrast != -100 {
		t.Errorf("contrast = %v, want -100", p.Basic.Contrast)
	}
	if p.ColorGrading.Shadows.Hue != 10 {
		t.Errorf("shadow hue = %v, want 10", p.ColorGrading.Shadows.Hue)
	}
	if p.ColorGrading.Shadows.Saturation != 0 {
		t.Errorf("shadow saturation = %v, want 0", p.ColorGrading.Shadows.Saturation)
	}
}

func TestComputeKeyDeterministic(t *testing.T) {
	p1, err := ParamsFromJSON([]byte(`{"basic": {"exposure": "+1.0", "clarity": 20}}`), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	p2, err := ParamsFromJSON([]byte(`{"basic": {"clarity": 20, "exposure": 1.0}}`), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	k1 := ComputeKey("img|100|1", p1, 2048, 90, "jpeg")
	k2 := ComputeKey("img|100|1", p2, 2048, 90, "jpeg")
	if k1 != k2 {
		t.Errorf("keys differ for equivalent params: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64", len(k1))
	}
}

func TestComputeKeySensitivity(t *testing.T) {
	base := Params{}
	keys := map[string]string{
		"base": ComputeKey("img", base, 0, 90, "jpeg"),
	}
	p := base
	p.Basic.Exposure = 1
	keys["exposure"] = ComputeKey("img", p, 0, 90, "jpeg")
	keys["width"] = ComputeKey("img", base, 1024, 90, "jpeg")
	keys["quality"] = ComputeKey("img", base, 0, 80, "jpeg")
	keys["image"] = ComputeKey("img2", base, 0, 90, "jpeg")
	keys["format"] = ComputeKey("img", base, 0, 90, "png")

	seen := map[string]string{}
	for name, k := range keys {
		if prev, ok := seen[k]; ok {
			t.Errorf("key collision between %s and %s", name, prev)
		}
		seen[k] = name
	}

	if ComputeKey("img", base, 0, 90, "jpg") != keys["base"] {
		t.Error("jpg and jpeg aliases produced different keys")
	}
}

func TestIsNeutral(t *testing.T) {
	var p Params
	if !p.IsNeutral() {
		t.Error("zero params should be neutral")
	}
	p.HSL.Blue.Hue = 1
	if p.IsNeutral() {
		t.Error("blue hue shift should not be neutral")
	}
}

func TestDigestCoversEveryPanel(t *testing.T) {
	var sb strings.Builder
	Params{}.digest(&sb)
	out := sb.String()
	for _, want := range []string{"ex=", "hsl7h=", "cg2l=", "cgb=", "cal2s=", "cst="} {
		if !strings.Contains(out, want) {
			t.Errorf("digest missing %q: %s", want, out)
		}
	}
}
