package photograde

// applySaturationVibrance adjusts chroma in HSV space. Saturation scales
// every pixel uniformly; vibrance scales in proportion to the inverse of
// the current saturation so already-vivid colors are protected.
func (e *Engine) applySaturationVibrance(buf *Buffer, sat, vib float64) {
	if sat == 0 && vib == 0 {
		return
	}
	sk := float32(sat) / 100
	vk := float32(vib) / 100
	e.eachPixel(buf, func(v rgb) rgb {
		h, s, val := rgbToHSV(v)
		s *= 1 + sk
		s *= 1 + vk*(1-clamp01(s))
		return hsvToRGB(h, clamp01(s), val)
	})
}

// hslBand describes one selective-color band: its hue center, the soft
// falloff width of its membership mask, and a hue-shift sensitivity.
// Green, aqua and blue carry higher sensitivities, which biases their hue
// shifts toward cyan; that is how a "teal" look comes out of a green or
// blue slider without a dedicated teal control.
type hslBand struct {
	center  float32 // degrees
	width   float32 // degrees, full falloff distance from center
	hueCoef float32
}

var hslBands = [8]hslBand{
	{center: 0, width: 35, hueCoef: 1.0},   // red
	{center: 30, width: 30, hueCoef: 1.0},  // orange
	{center: 60, width: 35, hueCoef: 1.0},  // yellow
	{center: 120, width: 45, hueCoef: 1.3}, // green
	{center: 180, width: 40, hueCoef: 1.2}, // aqua
	{center: 240, width: 45, hueCoef: 1.3}, // blue
	{center: 280, width: 35, hueCoef: 1.0}, // purple
	{center: 320, width: 35, hueCoef: 1.0}, // magenta
}

// Per-unit strengths of the HSL sliders.
const (
	hslHueRange = 0.30 // degrees of hue shift per slider unit, before coef
	hslSatGain  = 0.01
	hslLumGain  = 0.005
)

// applyHSL applies the eight-band selective-color panel. Each band builds
// a soft membership mask from hue distance (gated by pixel saturation so
// neutrals stay untouched) and applies its deltas scaled by that mask.
func (e *Engine) applyHSL(buf *Buffer, mix HSLMix) {
	bands := [8]HSLBand{
		mix.Red, mix.Orange, mix.Yellow, mix.Green,
		mix.Aqua, mix.Blue, mix.Purple, mix.Magenta,
	}
	active := false
	for _, b := range bands {
		if b.Hue != 0 || b.Saturation != 0 || b.Luminance != 0 {
			active = true
			break
		}
	}
	if !active {
		return
	}
	e.eachPixel(buf, func(v rgb) rgb {
		h, s, val := rgbToHSV(v)
		if s < 1e-4 {
			return v // no hue to act on
		}
		gate := smoothstep(0, 0.15, s)
		for i, b := range bands {
			if b.Hue == 0 && b.Saturation == 0 && b.Luminance == 0 {
				continue
			}
			def := hslBands[i]
			d := hueDist(h, def.center)
			if d >= def.width {
				continue
			}
			m := 1 - d/def.width
			m = m * m * (3 - 2*m) * gate
			h += float32(b.Hue) * hslHueRange * def.hueCoef * m
			s = clamp01(s * (1 + float32(b.Saturation)*hslSatGain*m))
			val = clamp01(val * (1 + float32(b.Luminance)*hslLumGain*m))
		}
		return hsvToRGB(h, s, val)
	})
}
