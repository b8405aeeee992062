package photograde

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Engine is the internal numerical renderer. It is pure computation over
// float buffers, safe for concurrent use, and never fails: out-of-range
// parameters are clamped and every stage clamps its own output.
type Engine struct {
	workers int
}

// NewEngine returns an engine sized to the available CPUs.
func NewEngine() *Engine {
	return &Engine{workers: runtime.GOMAXPROCS(0)}
}

// Apply runs the full grading pipeline on buf in place and returns it.
// Stage order is fixed: each stage consumes the previous stage's output,
// and calibration runs last because it remaps the base color response
// everything else was built on. Neutral stages are skipped.
func (e *Engine) Apply(buf *Buffer, p Params) *Buffer {
	p.Clamp()

	e.applyWhiteBalance(buf, p.WhiteBalance)
	e.applyExposure(buf, float64(p.Basic.Exposure))
	e.applyContrast(buf, float64(p.Basic.Contrast))
	e.applyHighlightsShadows(buf, float64(p.Basic.Highlights), float64(p.Basic.Shadows))
	e.applyWhitesBlacks(buf, float64(p.Basic.Whites), float64(p.Basic.Blacks))
	e.applyClarityTexture(buf, float64(p.Basic.Clarity), float64(p.Basic.Texture))
	e.applyDehaze(buf, float64(p.Basic.Dehaze))
	e.applySaturationVibrance(buf, float64(p.Basic.Saturation), float64(p.Basic.Vibrance))
	e.applyHSL(buf, p.HSL)
	e.applyColorGrading(buf, p.ColorGrading)
	e.applyCalibration(buf, p.Calibration)

	return buf
}

// eachRow runs fn over row ranges on the engine's worker pool.
func (e *Engine) eachRow(buf *Buffer, fn func(y0, y1 int)) {
	n := e.workers
	if n < 1 {
		n = 1
	}
	if n > buf.Height {
		n = buf.Height
	}
	if n <= 1 {
		fn(0, buf.Height)
		return
	}
	var g errgroup.Group
	chunk := (buf.Height + n - 1) / n
	for y := 0; y < buf.Height; y += chunk {
		y0, y1 := y, y+chunk
		if y1 > buf.Height {
			y1 = buf.Height
		}
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors
}

// eachPixel applies a per-pixel transform in parallel, clamping the result.
func (e *Engine) eachPixel(buf *Buffer, fn func(v rgb) rgb) {
	e.eachRow(buf, func(y0, y1 int) {
		for i := y0 * buf.Width * 3; i < y1*buf.Width*3; i += 3 {
			v := fn(rgb{r: buf.Pix[i], g: buf.Pix[i+1], b: buf.Pix[i+2]}).clamp()
			buf.Pix[i] = v.r
			buf.Pix[i+1] = v.g
			buf.Pix[i+2] = v.b
		}
	})
}

// Channel gain per 100 units of temperature/tint. Cooling raises blue and
// pulls green partway down with red, which reads as cyan rather than pure
// blue; warming is the mirror image toward orange.
const (
	wbTempMajor = 0.25
	wbTempMinor = 0.10
	wbTintGreen = 0.15
	wbTintMinor = 0.07
)

func (e *Engine) applyWhiteBalance(buf *Buffer, wb WhiteBalance) {
	t := float32(wb.Temperature) / 100
	n := float32(wb.Tint) / 100
	if t == 0 && n == 0 {
		return
	}
	rGain := 1 + wbTempMajor*t + wbTintMinor*n
	gGain := 1 + wbTempMinor*t - wbTintGreen*n
	bGain := 1 - wbTempMajor*t + wbTintMinor*n
	e.eachPixel(buf, func(v rgb) rgb {
		return rgb{r: v.r * rGain, g: v.g * gGain, b: v.b * bGain}
	})
}

func (e *Engine) applyExposure(buf *Buffer, ev float64) {
	if ev == 0 {
		return
	}
	// Photographic semantics: one stop doubles.
	m := exp2f(float32(ev))
	e.eachPixel(buf, func(v rgb) rgb {
		return rgb{r: v.r * m, g: v.g * m, b: v.b * m}
	})
}

// Asymmetric S-curve gammas. Shadows steepen slightly faster than
// highlights so positive contrast deepens blacks before it clips whites.
const (
	contrastShadowGamma    = 0.8
	contrastHighlightGamma = 0.6
)

func (e *Engine) applyContrast(buf *Buffer, c float64) {
	if c == 0 {
		return
	}
	k := float32(c) / 100
	gLow := 1 + contrastShadowGamma*k
	gHigh := 1 + contrastHighlightGamma*k
	if gLow < 0.2 {
		gLow = 0.2
	}
	if gHigh < 0.2 {
		gHigh = 0.2
	}
	curve := func(v float32) float32 {
		if v < 0.5 {
			return 0.5 * powf(2*v, gLow)
		}
		return 1 - 0.5*powf(2*(1-v), gHigh)
	}
	e.eachPixel(buf, func(v rgb) rgb {
		return rgb{r: curve(clamp01(v.r)), g: curve(clamp01(v.g)), b: curve(clamp01(v.b))}
	})
}

const (
	highlightGain = 0.5
	shadowGain    = 0.6
)

func (e *Engine) applyHighlightsShadows(buf *Buffer, hi, sh float64) {
	if hi == 0 && sh == 0 {
		return
	}
	h := float32(hi) / 100
	s := float32(sh) / 100
	e.eachPixel(buf, func(v rgb) rgb {
		lum := luminance(v)
		// Smooth masks keep the adjustment local to its tonal range.
		hw := smoothstep(0.5, 1, lum)
		sw := smoothstep(0.5, 1, 1-lum)
		f := (1 + highlightGain*h*hw) * (1 + shadowGain*s*sw)
		return rgb{r: v.r * f, g: v.g * f, b: v.b * f}
	})
}

const (
	whitesGain  = 0.3
	blacksShift = 0.1
)

func (e *Engine) applyWhitesBlacks(buf *Buffer, wh, bl float64) {
	if wh == 0 && bl == 0 {
		return
	}
	w := float32(wh) / 100
	b := float32(bl) / 100
	off := blacksShift * b
	e.eachPixel(buf, func(v rgb) rgb {
		lum := luminance(v)
		// Whites only scale inside a highlight-weighted mask to avoid
		// blowing out the whole frame.
		f := 1 + whitesGain*w*smoothstep(0.7, 1, lum)
		return rgb{r: v.r*f + off, g: v.g*f + off, b: v.b*f + off}
	})
}
