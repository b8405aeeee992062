package photograde

// Split-toning strengths. The tint is applied through a soft-light blend,
// which shifts color while mostly preserving the base luminance.
const (
	gradingTintGain = 0.5
	gradingLumGain  = 0.25
	gradingBalance  = 0.2
)

// applyColorGrading tints shadows, midtones and highlights through three
// luminance-banded soft masks. Balance shifts pixels between the shadow
// and highlight zones.
func (e *Engine) applyColorGrading(buf *Buffer, cg ColorGrading) {
	zones := [3]GradingZone{cg.Shadows, cg.Midtones, cg.Highlights}
	active := false
	for _, z := range zones {
		if z.Saturation != 0 || z.Luminance != 0 {
			active = true
			break
		}
	}
	if !active {
		return
	}
	bal := float32(cg.Balance) / 100
	e.eachPixel(buf, func(v rgb) rgb {
		lum := clamp01(luminance(v) + gradingBalance*bal)
		sw := smoothstep(0.6, 1, 1-lum)
		hw := smoothstep(0.6, 1, lum)
		mw := clamp01(1 - sw - hw)
		for i, m := range [3]float32{sw, mw, hw} {
			z := zones[i]
			if m == 0 || (z.Saturation == 0 && z.Luminance == 0) {
				continue
			}
			strength := float32(z.Saturation) / 100 * gradingTintGain * m
			if strength > 0 {
				// Overlay centered on mid gray carries only the tint.
				overlay := hsvToRGB(float32(z.Hue), strength, 0.5+strength*0.5)
				v = lerpRGB(v, softLightRGB(v, overlay), m).clamp()
			}
			if z.Luminance != 0 {
				f := 1 + float32(z.Luminance)/100*gradingLumGain*m
				v = rgb{r: v.r * f, g: v.g * f, b: v.b * f}.clamp()
			}
		}
		return v
	})
}

// Calibration masks are keyed to each primary's approximate hue region.
const (
	calHueRange  = 0.20 // degrees of hue shift per slider unit
	calSatGain   = 0.01
	calMaskWidth = 75 // degrees
	calTintGain  = 0.1
)

var calCenters = [3]float32{0, 120, 240} // red, green, blue primaries

// applyCalibration remaps how raw RGB lands in perceptual hue by shifting
// each primary's hue/saturation inside a mask around that primary, plus a
// green-magenta tint restricted to shadows. Runs after every other stage
// because it changes the base color mapping they were built on.
func (e *Engine) applyCalibration(buf *Buffer, cal Calibration) {
	prims := [3]Primary{cal.Red, cal.Green, cal.Blue}
	tint := float32(cal.ShadowTint) / 100
	active := tint != 0
	for _, p := range prims {
		if p.Hue != 0 || p.Saturation != 0 {
			active = true
		}
	}
	if !active {
		return
	}
	e.eachPixel(buf, func(v rgb) rgb {
		h, s, val := rgbToHSV(v)
		if s > 1e-4 {
			for i, p := range prims {
				if p.Hue == 0 && p.Saturation == 0 {
					continue
				}
				d := hueDist(h, calCenters[i])
				if d >= calMaskWidth {
					continue
				}
				m := 1 - d/calMaskWidth
				m = m * m * (3 - 2*m)
				h += float32(p.Hue) * calHueRange * m
				s = clamp01(s * (1 + float32(p.Saturation)*calSatGain*m))
			}
			v = hsvToRGB(h, s, val)
		}
		if tint != 0 {
			// Positive shifts shadows toward green, negative toward magenta.
			m := smoothstep(0.5, 1, 1-luminance(v))
			v.g = clamp01(v.g * (1 + calTintGain*tint*m))
			v.r = clamp01(v.r * (1 - calTintGain*tint*m*0.5))
			v.b = clamp01(v.b * (1 - calTintGain*tint*m*0.5))
		}
		return v
	})
}
