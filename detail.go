package photograde

// boxBlur returns a blurred copy of buf using a separable box filter with
// the given radius. Edges clamp to the border pixel.
func boxBlur(buf *Buffer, radius int) *Buffer {
	if radius < 1 {
		return buf.Clone()
	}
	w, h := buf.Width, buf.Height
	tmp := NewBuffer(w, h)
	out := NewBuffer(w, h)
	inv := 1 / float32(2*radius+1)

	// Horizontal pass with a sliding window per channel.
	for y := 0; y < h; y++ {
		row := y * w * 3
		for c := 0; c < 3; c++ {
			var sum float32
			for k := -radius; k <= radius; k++ {
				sum += buf.Pix[row+clampi(k, 0, w-1)*3+c]
			}
			for x := 0; x < w; x++ {
				tmp.Pix[row+x*3+c] = sum * inv
				sum += buf.Pix[row+clampi(x+radius+1, 0, w-1)*3+c]
				sum -= buf.Pix[row+clampi(x-radius, 0, w-1)*3+c]
			}
		}
	}

	// Vertical pass.
	for x := 0; x < w; x++ {
		for c := 0; c < 3; c++ {
			var sum float32
			for k := -radius; k <= radius; k++ {
				sum += tmp.Pix[(clampi(k, 0, h-1)*w+x)*3+c]
			}
			for y := 0; y < h; y++ {
				out.Pix[(y*w+x)*3+c] = sum * inv
				sum += tmp.Pix[(clampi(y+radius+1, 0, h-1)*w+x)*3+c]
				sum -= tmp.Pix[(clampi(y-radius, 0, h-1)*w+x)*3+c]
			}
		}
	}
	return out
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Local-contrast radii in pixels. Clarity works on coarse structure,
// texture on fine detail.
const (
	clarityRadius = 8
	textureRadius = 2
	clarityGain   = 0.8
	textureGain   = 0.4
)

// applyClarityTexture performs unsharp masking: the blurred image is
// subtracted from the original to obtain a high-frequency residual, and a
// scaled copy of the residual is added back. Negative amounts soften.
func (e *Engine) applyClarityTexture(buf *Buffer, clarity, texture float64) {
	e.unsharp(buf, clarity, clarityRadius, clarityGain)
	e.unsharp(buf, texture, textureRadius, textureGain)
}

func (e *Engine) unsharp(buf *Buffer, amount float64, radius int, gain float32) {
	if amount == 0 {
		return
	}
	k := float32(amount) / 100 * gain
	blur := boxBlur(buf, radius)
	e.eachRow(buf, func(y0, y1 int) {
		for i := y0 * buf.Width * 3; i < y1*buf.Width*3; i++ {
			buf.Pix[i] = clamp01(buf.Pix[i] + k*(buf.Pix[i]-blur.Pix[i]))
		}
	})
}
