package photograde

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// signed is a float64 that unmarshals from either a JSON number or a
// "+N"/"-N" string. Malformed values resolve to 0 (the neutral default)
// instead of failing the whole document.
type signed float64

func (s *signed) UnmarshalJSON(data []byte) error {
	v, err := ParseSigned(string(data))
	if err != nil {
		*s = 0
		return nil
	}
	*s = signed(v)
	return nil
}

// ParseSigned parses a raw JSON scalar into a float64. It accepts bare
// numbers as well as quoted "+N"/"-N" strings, which grading presets use
// interchangeably with numbers.
func ParseSigned(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		raw = strings.TrimSpace(raw[1 : len(raw)-1])
		raw = strings.TrimPrefix(raw, "+")
	}
	if raw == "" || raw == "null" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse signed value %q: %w", raw, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("parse signed value %q: not finite", raw)
	}
	return v, nil
}

// Basic holds the tone and presence sliders. Exposure is in EV stops,
// everything else is in [-100, 100].
type Basic struct {
	Exposure   signed `json:"exposure"`
	Contrast   signed `json:"contrast"`
	Highlights signed `json:"highlights"`
	Shadows    signed `json:"shadows"`
	Whites     signed `json:"whites"`
	Blacks     signed `json:"blacks"`
	Texture    signed `json:"texture"`
	Clarity    signed `json:"clarity"`
	Dehaze     signed `json:"dehaze"`
	Vibrance   signed `json:"vibrance"`
	Saturation signed `json:"saturation"`
}

// WhiteBalance holds temperature and tint offsets in [-100, 100].
// Positive temperature warms, positive tint shifts toward magenta.
type WhiteBalance struct {
	Temperature signed `json:"temp"`
	Tint        signed `json:"tint"`
}

// HSLBand is a hue/saturation/luminance shift for one hue band, each
// component in [-100, 100].
type HSLBand struct {
	Hue        signed `json:"hue"`
	Saturation signed `json:"saturation"`
	Luminance  signed `json:"luminance"`
}

// HSLMix holds the eight canonical hue bands of the selective-color panel.
type HSLMix struct {
	Red     HSLBand `json:"red"`
	Orange  HSLBand `json:"orange"`
	Yellow  HSLBand `json:"yellow"`
	Green   HSLBand `json:"green"`
	Aqua    HSLBand `json:"aqua"`
	Blue    HSLBand `json:"blue"`
	Purple  HSLBand `json:"purple"`
	Magenta HSLBand `json:"magenta"`
}

// GradingZone is one wheel of the color-grading panel. Hue is in degrees
// [0, 360), Saturation in [0, 100], Luminance in [-100, 100].
type GradingZone struct {
	Hue        signed `json:"hue"`
	Saturation signed `json:"saturation"`
	Luminance  signed `json:"luminance"`
}

// ColorGrading is the three-zone split-toning panel. Balance in
// [-100, 100] shifts weight between the shadow and highlight zones.
type ColorGrading struct {
	Shadows    GradingZone `json:"shadows"`
	Midtones   GradingZone `json:"midtones"`
	Highlights GradingZone `json:"highlights"`
	Balance    signed      `json:"balance"`
}

// Primary is a hue/saturation offset for one camera primary, in [-100, 100].
type Primary struct {
	Hue        signed `json:"hue"`
	Saturation signed `json:"saturation"`
}

// Calibration remaps the three color-filter-array primaries plus a shadow
// tint. It changes the base RGB to perceptual-hue mapping and is applied
// after every other stage.
type Calibration struct {
	Red        Primary `json:"red_primary"`
	Green      Primary `json:"green_primary"`
	Blue       Primary `json:"blue_primary"`
	ShadowTint signed  `json:"shadows_tint"`
}

// Params is a complete, versioned description of a color grade.
// The zero value is the neutral (no-op) grade.
type Params struct {
	Version      string       `json:"version,omitempty"`
	Basic        Basic        `json:"basic"`
	WhiteBalance WhiteBalance `json:"whiteBalance"`
	HSL          HSLMix       `json:"hsl"`
	ColorGrading ColorGrading `json:"colorGrading"`
	Calibration  Calibration  `json:"calibration"`
}

// ParamsFromJSON decodes a parameter document and clamps every field to
// its valid range. Unknown fields are ignored; malformed numeric leaves
// resolve to neutral and are logged as warnings so a dropped slider value
// is never silent.
func ParamsFromJSON(data []byte, log zerolog.Logger) (Params, error) {
	var p Params
	if err := json.Unmarshal(data, &p); err != nil {
		return Params{}, fmt.Errorf("decode params: %w", err)
	}
	warnMalformed(data, log)
	p.Clamp()
	return p, nil
}

// warnMalformed re-walks the raw document and reports every leaf the
// decoder neutralized.
func warnMalformed(data []byte, log zerolog.Logger) {
	var root map[string]json.RawMessage
	if json.Unmarshal(data, &root) != nil {
		return
	}
	delete(root, "version")
	warnLeaves("", root, log)
}

func warnLeaves(path string, node map[string]json.RawMessage, log zerolog.Logger) {
	for k, raw := range node {
		leaf := k
		if path != "" {
			leaf = path + "." + k
		}
		var child map[string]json.RawMessage
		if json.Unmarshal(raw, &child) == nil {
			warnLeaves(leaf, child, log)
			continue
		}
		if _, err := ParseSigned(string(raw)); err != nil {
			log.Warn().Str("field", leaf).Str("value", string(raw)).Msg("malformed param value, using neutral")
		}
	}
}

func clampSigned(v *signed, lo, hi float64) {
	f := float64(*v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		*v = 0
		return
	}
	if f < lo {
		*v = signed(lo)
	} else if f > hi {
		*v = signed(hi)
	}
}

func clampBand(b *HSLBand) {
	clampSigned(&b.Hue, -100, 100)
	clampSigned(&b.Saturation, -100, 100)
	clampSigned(&b.Luminance, -100, 100)
}

func clampZone(z *GradingZone) {
	f := math.Mod(float64(z.Hue), 360)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		f = 0
	}
	if f < 0 {
		f += 360
	}
	z.Hue = signed(f)
	clampSigned(&z.Saturation, 0, 100)
	clampSigned(&z.Luminance, -100, 100)
}

// Clamp forces every field into its documented range. Non-finite values
// become neutral. Safe to call repeatedly.
func (p *Params) Clamp() {
	if p.Version == "" {
		p.Version = "1.0"
	}
	clampSigned(&p.Basic.Exposure, -5, 5)
	for _, v := range []*signed{
		&p.Basic.Contrast, &p.Basic.Highlights, &p.Basic.Shadows,
		&p.Basic.Whites, &p.Basic.Blacks, &p.Basic.Texture,
		&p.Basic.Clarity, &p.Basic.Dehaze, &p.Basic.Vibrance,
		&p.Basic.Saturation,
		&p.WhiteBalance.Temperature, &p.WhiteBalance.Tint,
	} {
		clampSigned(v, -100, 100)
	}
	for _, b := range []*HSLBand{
		&p.HSL.Red, &p.HSL.Orange, &p.HSL.Yellow, &p.HSL.Green,
		&p.HSL.Aqua, &p.HSL.Blue, &p.HSL.Purple, &p.HSL.Magenta,
	} {
		clampBand(b)
	}
	clampZone(&p.ColorGrading.Shadows)
	clampZone(&p.ColorGrading.Midtones)
	clampZone(&p.ColorGrading.Highlights)
	clampSigned(&p.ColorGrading.Balance, -100, 100)
	for _, pr := range []*Primary{&p.Calibration.Red, &p.Calibration.Green, &p.Calibration.Blue} {
		clampSigned(&pr.Hue, -100, 100)
		clampSigned(&pr.Saturation, -100, 100)
	}
	clampSigned(&p.Calibration.ShadowTint, -100, 100)
}

// digest writes a canonical fixed-order representation of the grade.
// Field order is hard-coded so the resulting cache key never depends on
// map or JSON ordering.
func (p Params) digest(w io.Writer) {
	wf := func(label string, v signed) {
		_, _ = io.WriteString(w, label+strconv.FormatFloat(float64(v), 'f', 4, 64)+";")
	}
	_, _ = io.WriteString(w, "v="+p.Version+";")
	b := p.Basic
	wf("ex=", b.Exposure)
	wf("co=", b.Contrast)
	wf("hi=", b.Highlights)
	wf("sh=", b.Shadows)
	wf("wh=", b.Whites)
	wf("bl=", b.Blacks)
	wf("tx=", b.Texture)
	wf("cl=", b.Clarity)
	wf("dh=", b.Dehaze)
	wf("vi=", b.Vibrance)
	wf("sa=", b.Saturation)
	wf("wt=", p.WhiteBalance.Temperature)
	wf("wn=", p.WhiteBalance.Tint)
	for i, band := range []HSLBand{
		p.HSL.Red, p.HSL.Orange, p.HSL.Yellow, p.HSL.Green,
		p.HSL.Aqua, p.HSL.Blue, p.HSL.Purple, p.HSL.Magenta,
	} {
		prefix := "hsl" + strconv.Itoa(i)
		wf(prefix+"h=", band.Hue)
		wf(prefix+"s=", band.Saturation)
		wf(prefix+"l=", band.Luminance)
	}
	for i, z := range []GradingZone{p.ColorGrading.Shadows, p.ColorGrading.Midtones, p.ColorGrading.Highlights} {
		prefix := "cg" + strconv.Itoa(i)
		wf(prefix+"h=", z.Hue)
		wf(prefix+"s=", z.Saturation)
		wf(prefix+"l=", z.Luminance)
	}
	wf("cgb=", p.ColorGrading.Balance)
	for i, pr := range []Primary{p.Calibration.Red, p.Calibration.Green, p.Calibration.Blue} {
		prefix := "cal" + strconv.Itoa(i)
		wf(prefix+"h=", pr.Hue)
		wf(prefix+"s=", pr.Saturation)
	}
	wf("cst=", p.Calibration.ShadowTint)
}

// IsNeutral reports whether the grade is a no-op.
func (p Params) IsNeutral() bool {
	var sb strings.Builder
	p.digest(&sb)
	var nb strings.Builder
	n := Params{Version: p.Version}
	n.digest(&nb)
	return sb.String() == nb.String()
}
