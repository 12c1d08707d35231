package colormath

import (
	"math"

	"github.com/anthonynsimon/bild/parallel"
)

// ApplyMatrix transforms every RGB triplet in pix by m, in place.
func ApplyMatrix(pix []float32, m Matrix3) {
	n := len(pix) / 3
	parallel.Line(n, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			r, g, b := m.Apply(float64(pix[i]), float64(pix[i+1]), float64(pix[i+2]))
			pix[i], pix[i+1], pix[i+2] = float32(r), float32(g), float32(b)
		}
	})
}

// Floor raises every sample below floor to floor, in place. NaN becomes floor.
func Floor(pix []float32, floor float32) {
	parallel.Line(len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			if pix[i] < floor || pix[i] != pix[i] {
				pix[i] = floor
			}
		}
	})
}

// Clamp limits every sample to [lo, hi], in place. NaN becomes lo.
func Clamp(pix []float32, lo, hi float32) {
	parallel.Line(len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			v := pix[i]
			switch {
			case v != v || v < lo:
				pix[i] = lo
			case v > hi:
				pix[i] = hi
			}
		}
	})
}

// EncodeLogCurve floors pix to Epsilon and then applies curve, in place.
// The floor is not optional: log curves are undefined for non-positive input.
func EncodeLogCurve(pix []float32, curve LogCurve) {
	Floor(pix, Epsilon)
	if curve == CurveNone {
		return
	}
	parallel.Line(len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			pix[i] = float32(curve.Encode(float64(pix[i])))
		}
	})
}

// EncodeSRGB applies the sRGB OETF to a linear value.
func EncodeSRGB(v float64) float64 {
	if v <= 0.0031308 {
		return 12.92 * v
	}
	return 1.055*math.Pow(v, 1.0/2.4) - 0.055
}

// DecodeSRGB is the inverse of EncodeSRGB.
func DecodeSRGB(v float64) float64 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// ToDisplay converts linear pix in space from to display-referred sRGB:
// gamut remap, clip to [0,1], OETF.
func ToDisplay(pix []float32, from Space) error {
	m, err := GamutMatrix(from, SRGB)
	if err != nil {
		return err
	}
	ApplyMatrix(pix, m)
	Clamp(pix, 0, 1)
	parallel.Line(len(pix), func(start, end int) {
		for i := start; i < end; i++ {
			pix[i] = float32(EncodeSRGB(float64(pix[i])))
		}
	})
	return nil
}
