package photograde

import (
	"image"
	"image/color"
)

// Buffer stores a working image as float32 RGB in [0,1].
// Pixel values are display-referred sRGB, matching what the encoders emit.
type Buffer struct {
	Width  int
	Height int
	Pix    []float32 // RGB triplets, len = Width*Height*3
}

// NewBuffer allocates a zeroed (black) buffer.
func NewBuffer(w, h int) *Buffer {
	return &Buffer{Width: w, Height: h, Pix: make([]float32, w*h*3)}
}

// FromImage converts any image.Image into a float buffer.
func FromImage(img image.Image) *Buffer {
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy())
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit values in [0, 65535]
			buf.Pix[i] = float32(r) / 65535.0
			buf.Pix[i+1] = float32(g) / 65535.0
			buf.Pix[i+2] = float32(bl) / 65535.0
			i += 3
		}
	}
	return buf
}

// ToImage quantizes the buffer to 8-bit NRGBA with rounding and a hard
// clamp, so out-of-range or non-finite values can never escape.
func (b *Buffer) ToImage() *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			i := (y*b.Width + x) * 3
			out.SetNRGBA(x, y, color.NRGBA{
				R: quantize(b.Pix[i]),
				G: quantize(b.Pix[i+1]),
				B: quantize(b.Pix[i+2]),
				A: 0xFF,
			})
		}
	}
	return out
}

func quantize(v float32) uint8 {
	if !(v > 0) { // also catches NaN
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255.0 + 0.5)
}

// Clone returns an independent copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	out := &Buffer{Width: b.Width, Height: b.Height, Pix: make([]float32, len(b.Pix))}
	copy(out.Pix, b.Pix)
	return out
}

func (b *Buffer) at(x, y int) rgb {
	i := (y*b.Width + x) * 3
	return rgb{r: b.Pix[i], g: b.Pix[i+1], b: b.Pix[i+2]}
}

func (b *Buffer) set(x, y int, v rgb) {
	i := (y*b.Width + x) * 3
	b.Pix[i] = v.r
	b.Pix[i+1] = v.g
	b.Pix[i+2] = v.b
}
