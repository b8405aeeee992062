package photograde

import (
	"math"
	"testing"
)

func TestHSLGreenBandLocality(t *testing.T) {
	e := NewEngine()
	buf := NewBuffer(2, 1)
	buf.Pix = []float32{
		0.8, 0.2, 0.2, // red, hue 0
		0.2, 0.8, 0.2, // green, hue 120
	}
	var p Params
	p.HSL.Green.Saturation = 50
	e.Apply(buf, p)

	// The red pixel is far outside the green band's soft mask.
	for i, want := range []float32{0.8, 0.2, 0.2} {
		if math.Abs(float64(buf.Pix[i]-want)) > 1e-5 {
			t.Errorf("red pixel channel %d = %v, want %v", i, buf.Pix[i], want)
		}
	}
	_, s, _ := rgbToHSV(buf.at(1, 0))
	if s <= 0.76 {
		t.Errorf("green pixel saturation = %v, want > 0.76", s)
	}
}

func TestHSLHueShiftBiasTowardTeal(t *testing.T) {
	// Equal positive hue shifts move green further than orange because
	// green carries a higher sensitivity coefficient.
	e := NewEngine()
	green := NewBuffer(1, 1)
	green.Pix = []float32{0.2, 0.8, 0.2}
	orange := NewBuffer(1, 1)
	orange.Pix = []float32{0.8, 0.5, 0.2} // hue 30

	var pg Params
	pg.HSL.Green.Hue = 100
	var po Params
	po.HSL.Orange.Hue = 100
	e.Apply(green, pg)
	e.Apply(orange, po)

	hg, _, _ := rgbToHSV(green.at(0, 0))
	ho, _, _ := rgbToHSV(orange.at(0, 0))
	dg := hueDist(hg, 120)
	do := hueDist(ho, 30)
	if dg <= do {
		t.Errorf("green shifted %v degrees, orange %v; want green further", dg, do)
	}
	if hg <= 120 {
		t.Errorf("green hue = %v, want shifted toward cyan (> 120)", hg)
	}
}

func TestHSLNeutralsUntouched(t *testing.T) {
	e := NewEngine()
	buf := uniformBuffer(2, 1, 0.5)
	var p Params
	p.HSL.Blue.Saturation = 100
	p.HSL.Blue.Luminance = 100
	e.Apply(buf, p)
	for i, v := range buf.Pix {
		if math.Abs(float64(v)-0.5) > 1e-6 {
			t.Errorf("gray pixel channel %d moved to %v", i, v)
		}
	}
}

func TestSaturationScalesUniformly(t *testing.T) {
	e := NewEngine()
	buf := NewBuffer(1, 1)
	buf.Pix = []float32{0.6, 0.4, 0.4}
	var p Params
	p.Basic.Saturation = -100
	e.Apply(buf, p)
	// Full desaturation collapses to the value channel.
	if math.Abs(float64(buf.Pix[0]-buf.Pix[1])) > 1e-5 || math.Abs(float64(buf.Pix[1]-buf.Pix[2])) > 1e-5 {
		t.Errorf("channels not equal after full desaturation: %v", buf.Pix)
	}
}
