package photograde

import (
	"fmt"
	"io"
	"strings"
)

// Parameter compression for the external renderer. Its own tone curve is
// more aggressive than the internal engine at the same nominal value, so
// several ranges are compressed to keep the two outputs visually close.
// The factors are empirically tuned against RawTherapee 5.9 defaults and
// are candidates for recalibration against a reference image set.
const (
	sidecarContrastScale  = 0.5  // contrast +-100 -> +-50
	sidecarBlacksScale    = 0.6  // conservative black point, avoids clipping
	sidecarBlacksUnits    = 100  // slider units per full blacks range
	sidecarKelvinPerUnit  = 25   // temperature offset -> Kelvin
	sidecarKelvinBase     = 6500 // daylight reference
	sidecarGreenPerUnit   = 0.0015
	sidecarSaturatedScale = 0.75 // vibrance: saturated tones get less
	sidecarClarityScale   = 0.25 // clarity -> local contrast amount
)

// Sidecar renders the grade as a PP3-style INI profile for the external
// renderer. Sections whose parameters are all neutral are omitted.
func Sidecar(p Params) []byte {
	var sb strings.Builder
	_ = WriteSidecar(&sb, p)
	return []byte(sb.String())
}

// WriteSidecar writes the PP3 profile for p to w.
func WriteSidecar(w io.Writer, p Params) error {
	p.Clamp()
	var sb strings.Builder

	sb.WriteString("[Version]\nAppVersion=5.9\nVersion=346\n")
	sb.WriteString("\n[General]\nRank=0\nColorLabel=0\nInTrash=false\n")

	b := p.Basic
	if b.Exposure != 0 || b.Contrast != 0 || b.Blacks != 0 || b.Saturation != 0 {
		sb.WriteString("\n[Exposure]\nAuto=false\n")
		fmt.Fprintf(&sb, "Compensation=%.3f\n", float64(b.Exposure))
		fmt.Fprintf(&sb, "Contrast=%d\n", int(float64(b.Contrast)*sidecarContrastScale))
		fmt.Fprintf(&sb, "Saturation=%d\n", int(b.Saturation))
		// Positive blacks (faded look) lower the external black point.
		fmt.Fprintf(&sb, "Black=%d\n", int(float64(-b.Blacks)*sidecarBlacksScale*sidecarBlacksUnits/100))
	}

	// The external tool only recovers; it cannot inject highlights or crush
	// shadows, so each field maps one-directionally.
	hi := 0
	if b.Highlights < 0 {
		hi = int(-b.Highlights)
	}
	sh := 0
	if b.Shadows > 0 {
		sh = int(b.Shadows)
	}
	if hi != 0 || sh != 0 {
		sb.WriteString("\n[Shadows/Highlights]\nEnabled=true\n")
		fmt.Fprintf(&sb, "Highlights=%d\n", hi)
		fmt.Fprintf(&sb, "Shadows=%d\n", sh)
	}

	wb := p.WhiteBalance
	if wb.Temperature != 0 || wb.Tint != 0 {
		sb.WriteString("\n[White Balance]\nSetting=Custom\n")
		fmt.Fprintf(&sb, "Temperature=%d\n", sidecarKelvinBase+int(float64(wb.Temperature)*sidecarKelvinPerUnit))
		// Green is a divisor centered on 1.0; positive tint (magenta) lowers it.
		fmt.Fprintf(&sb, "Green=%.4f\n", 1.0-float64(wb.Tint)*sidecarGreenPerUnit)
	}

	if b.Vibrance != 0 {
		sb.WriteString("\n[Vibrance]\nEnabled=true\n")
		fmt.Fprintf(&sb, "Pastels=%d\n", int(b.Vibrance))
		fmt.Fprintf(&sb, "Saturated=%d\n", int(float64(b.Vibrance)*sidecarSaturatedScale))
	}

	if b.Dehaze > 0 {
		sb.WriteString("\n[Haze Removal]\nEnabled=true\n")
		fmt.Fprintf(&sb, "Strength=%d\n", int(b.Dehaze))
	}

	if b.Clarity != 0 {
		sb.WriteString("\n[Local Contrast]\nEnabled=true\n")
		fmt.Fprintf(&sb, "Amount=%.4f\n", float64(b.Clarity)*sidecarClarityScale/100)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
