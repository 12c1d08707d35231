package imaging

import (
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

// Tone operator ranges as exposed to the user.
const (
	// WBStopsPerUnit converts a white-balance slider unit (±100) into stops of
	// per-channel gain. ±100 corresponds to ±0.3 stops.
	WBStopsPerUnit = 0.3 / 100

	// ToneStopsPerUnit converts a highlight/shadow slider unit (±100) into
	// stops at full mask weight. ±100 corresponds to ±2 stops.
	ToneStopsPerUnit = 2.0 / 100

	// highlightRange and shadowRange are the distances in stops from mid-gray
	// over which the highlight and shadow masks ramp from 0 to 1.
	highlightRange = 4.0
	shadowRange    = 6.0
)

// pixels returns the exact-length pixel view of buf, compacting an oversized
// backing slice once so the hot loops never see trailing samples.
func pixels(buf *Buffer) []float32 {
	n := buf.Width * buf.Height * 3
	if len(buf.Pix) > n {
		*buf = *buf.Contiguous()
	}
	return buf.Pix[:n]
}

// ApplyGain multiplies every channel of buf by gain, in place.
func ApplyGain(buf *Buffer, gain float64) {
	if buf.Empty() || gain == 1 {
		return
	}
	pix := pixels(buf)
	g := float32(gain)
	parallel.Line(len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			pix[i] *= g
		}
	})
}

// WhiteBalanceMultipliers returns the per-channel gains for a temperature
// and tint offset.
//
// Temperature moves red and blue in opposite directions; tint moves green
// against magenta (red+blue held). Both axes are log-linear in the offset, so
// the mapping is monotonic and symmetric around zero.
func WhiteBalanceMultipliers(temp, tint float64) (r, g, b float64) {
	r = math.Exp2(WBStopsPerUnit * temp)
	b = math.Exp2(-WBStopsPerUnit * temp)
	g = math.Exp2(-WBStopsPerUnit * tint)
	return r, g, b
}

// ApplyWhiteBalance scales the channels of buf by the multipliers for temp
// and tint. Zero offsets leave the buffer untouched.
func ApplyWhiteBalance(buf *Buffer, temp, tint float64) {
	if buf.Empty() || (temp == 0 && tint == 0) {
		return
	}
	pix := pixels(buf)
	rm, gm, bm := WhiteBalanceMultipliers(temp, tint)
	r, g, b := float32(rm), float32(gm), float32(bm)
	parallel.Line(len(pix)/3, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			pix[i] *= r
			pix[i+1] *= g
			pix[i+2] *= b
		}
	})
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := (x - edge0) / (edge1 - edge0)
	switch {
	case t <= 0:
		return 0
	case t >= 1:
		return 1
	}
	return t * t * (3 - 2*t)
}

// HighlightShadowStops returns the exposure adjustment in stops applied to
// a pixel of luminance y. Mid-gray always maps to zero.
func HighlightShadowStops(y, highlight, shadow float64) float64 {
	if y <= 0 {
		return ToneStopsPerUnit * shadow
	}
	s := math.Log2(y / colormath.MidGray)
	hmask := smoothstep(0, highlightRange, s)
	smask := smoothstep(0, shadowRange, -s)
	return ToneStopsPerUnit*highlight*hmask + ToneStopsPerUnit*shadow*smask
}

// ApplyHighlightShadow reshapes the tone curve above and below mid-gray.
//
// Each pixel's luminance is measured with the primaries of space and placed
// on a stop scale relative to 0.18. A soft mask ramps in the highlight
// adjustment over four stops above mid-gray and the shadow adjustment over
// six stops below it, so there is no hard crossover to band at. The
// resulting gain scales all three channels, preserving hue.
func ApplyHighlightShadow(buf *Buffer, highlight, shadow float64, space colormath.Space) error {
	if buf.Empty() || (highlight == 0 && shadow == 0) {
		return nil
	}
	w, err := colormath.LuminanceWeights(space)
	if err != nil {
		return err
	}
	pix := pixels(buf)
	parallel.Line(len(pix)/3, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
			y := w[0]*r + w[1]*g + w[2]*b
			if y <= 0 || y != y {
				continue
			}
			stops := HighlightShadowStops(y, highlight, shadow)
			if stops == 0 {
				continue
			}
			f := float32(math.Exp2(stops))
			pix[i] *= f
			pix[i+1] *= f
			pix[i+2] *= f
		}
	})
	return nil
}

// ApplySaturationAndContrast applies contrast as a power curve on luminance
// pivoting at mid-gray, then scales chroma around the new luminance.
//
// Luminance is computed from the primaries of space, which must be the space
// the buffer is currently in. Saturation 1 and contrast 1 are the identity.
func ApplySaturationAndContrast(buf *Buffer, saturation, contrast float64, space colormath.Space) error {
	if buf.Empty() || (saturation == 1 && contrast == 1) {
		return nil
	}
	w, err := colormath.LuminanceWeights(space)
	if err != nil {
		return err
	}
	pix := pixels(buf)
	parallel.Line(len(pix)/3, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			r, g, b := float64(pix[i]), float64(pix[i+1]), float64(pix[i+2])
			y := w[0]*r + w[1]*g + w[2]*b
			if y != y {
				continue
			}

			yc := y
			if contrast != 1 && y > 0 {
				yc = colormath.MidGray * math.Pow(y/colormath.MidGray, contrast)
				k := yc / y
				r, g, b = r*k, g*k, b*k
			}
			if saturation != 1 {
				r = yc + saturation*(r-yc)
				g = yc + saturation*(g-yc)
				b = yc + saturation*(b-yc)
			}
			pix[i], pix[i+1], pix[i+2] = float32(r), float32(g), float32(b)
		}
	})
	return nil
}

// Luminance returns the relative luminance of every pixel of buf in space.
// The result has one entry per pixel.
func Luminance(buf *Buffer, space colormath.Space) ([]float64, error) {
	w, err := colormath.LuminanceWeights(space)
	if err != nil {
		return nil, err
	}
	n := buf.Len()
	out := make([]float64, n)
	pix := buf.Pix
	parallel.Line(n, func(start, end int) {
		for p := start; p < end; p++ {
			i := p * 3
			out[p] = w[0]*float64(pix[i]) + w[1]*float64(pix[i+1]) + w[2]*float64(pix[i+2])
		}
	})
	return out, nil
}

// ToDisplay converts buf in place to display-referred sRGB in [0,1] and
// retags it. Callers passing a log-encoded buffer must not use this.
func ToDisplay(buf *Buffer) error {
	if buf.Empty() {
		return nil
	}
	if err := colormath.ToDisplay(pixels(buf), buf.Space); err != nil {
		return err
	}
	buf.Space = colormath.SRGB
	return nil
}
