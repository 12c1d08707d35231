package colormath

import "math"

const (
	// MidGray is the scene-linear reflectance metering solves toward. An 18%
	// gray card is the photographic convention every log curve pivots on.
	MidGray = 0.18

	// Epsilon is the floor applied before log encoding. Log curves are
	// undefined at and below zero, and sensor noise after gamut remapping
	// routinely produces small negatives.
	Epsilon = 1e-6

	// HighlightClip is the linear value treated as sensor saturation when
	// protecting highlights.
	HighlightClip = 1.0
)

// Gain limits bound every computed exposure gain to ±10 stops.
var (
	MinGain = math.Exp2(-10)
	MaxGain = math.Exp2(10)
)

// ClampGain limits g to [MinGain, MaxGain]. Non-finite or non-positive gains
// collapse to 1.0.
func ClampGain(g float64) float64 {
	if math.IsNaN(g) || math.IsInf(g, 0) || g <= 0 {
		return 1.0
	}
	if g < MinGain {
		return MinGain
	}
	if g > MaxGain {
		return MaxGain
	}
	return g
}
