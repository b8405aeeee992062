package photograde

// Dark-channel-prior constants. Transmission is bounded away from zero so
// the haze-model inversion never divides by a near-zero value, and the
// atmospheric light estimate is clamped to a plausible brightness.
const (
	dehazeOmega    = 0.75
	dehazeMinTrans = 0.1
	dehazeAtmosLo  = 0.5
	dehazeAtmosHi  = 0.95
	dehazeTopShare = 0.001
	dehazeSatBoost = 0.2
	hazeFlatten    = 0.25
	hazeBlackLift  = 0.06
)

// applyDehaze removes haze for positive amounts using a simplified
// dark-channel prior, and simulates added haze for negative amounts by
// flattening contrast and lifting blacks.
func (e *Engine) applyDehaze(buf *Buffer, amount float64) {
	if amount == 0 || len(buf.Pix) == 0 {
		return
	}
	if amount < 0 {
		e.addHaze(buf, float32(-amount)/100)
		return
	}
	strength := float32(amount) / 100

	// Per-pixel dark channel.
	n := buf.Width * buf.Height
	dark := make([]float32, n)
	for i := 0; i < n; i++ {
		dark[i] = min3(buf.Pix[i*3], buf.Pix[i*3+1], buf.Pix[i*3+2])
	}

	// Atmospheric light: mean color of the brightest dark-channel pixels.
	// A histogram pass finds the brightness cutoff in O(n) instead of
	// sorting every pixel index.
	top := int(float64(n) * dehazeTopShare)
	if top < 1 {
		top = 1
	}
	var hist [256]int
	for _, d := range dark {
		hist[darkBucket(d)]++
	}
	cutoff, count := 255, 0
	for ; cutoff > 0; cutoff-- {
		count += hist[cutoff]
		if count >= top {
			break
		}
	}
	var atmos rgb
	picked := 0
	for i, d := range dark {
		if darkBucket(d) < cutoff {
			continue
		}
		atmos.r += buf.Pix[i*3]
		atmos.g += buf.Pix[i*3+1]
		atmos.b += buf.Pix[i*3+2]
		picked++
	}
	inv := 1 / float32(picked)
	atmos = rgb{r: atmos.r * inv, g: atmos.g * inv, b: atmos.b * inv}
	atmos.r = clampRange(atmos.r, dehazeAtmosLo, dehazeAtmosHi)
	atmos.g = clampRange(atmos.g, dehazeAtmosLo, dehazeAtmosHi)
	atmos.b = clampRange(atmos.b, dehazeAtmosLo, dehazeAtmosHi)
	atmosMean := (atmos.r + atmos.g + atmos.b) / 3

	// Invert the haze model scene = (observed - A*(1-t)) / t with a
	// strength-scaled transmission map.
	omega := dehazeOmega * strength
	e.eachRow(buf, func(y0, y1 int) {
		for p := y0 * buf.Width; p < y1*buf.Width; p++ {
			t := 1 - omega*dark[p]/atmosMean
			if t < dehazeMinTrans {
				t = dehazeMinTrans
			}
			i := p * 3
			buf.Pix[i] = clamp01((buf.Pix[i] - atmos.r*(1-t)) / t)
			buf.Pix[i+1] = clamp01((buf.Pix[i+1] - atmos.g*(1-t)) / t)
			buf.Pix[i+2] = clamp01((buf.Pix[i+2] - atmos.b*(1-t)) / t)
		}
	})

	// Dehazing desaturates, so give saturation some of it back.
	e.eachPixel(buf, func(v rgb) rgb {
		h, s, val := rgbToHSV(v)
		return hsvToRGB(h, clamp01(s*(1+dehazeSatBoost*strength)), val)
	})
}

func (e *Engine) addHaze(buf *Buffer, strength float32) {
	e.eachPixel(buf, func(v rgb) rgb {
		return rgb{
			r: lerp(v.r, 0.5, hazeFlatten*strength) + hazeBlackLift*strength,
			g: lerp(v.g, 0.5, hazeFlatten*strength) + hazeBlackLift*strength,
			b: lerp(v.b, 0.5, hazeFlatten*strength) + hazeBlackLift*strength,
		}
	})
}

// darkBucket maps a dark-channel value onto a 256-bin histogram index.
func darkBucket(v float32) int {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return int(v * 255)
}

func clampRange(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
