package imaging

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSLColor represents a color in HSL space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent
	L int `json:"l"` // Lightness: 0-100 percent
}

// ColorResult contains one pixel of a buffer in several representations.
//
// Value holds the float components exactly as stored in the buffer. Hex, RGB
// and HSL are derived from Value clipped to [0,1] and are only meaningful
// for display-referred buffers.
type ColorResult struct {
	Hex   string     `json:"hex"`
	RGB   RGBColor   `json:"rgb"`
	HSL   HSLColor   `json:"hsl"`
	Value [3]float32 `json:"value"`
}

// SampleColor reads the pixel at (x, y).
//
// Coordinates are 0-based with origin at top-left. An error is returned when
// the point lies outside the buffer.
func SampleColor(buf *Buffer, x, y int) (*ColorResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if x < 0 || x >= buf.Width || y < 0 || y >= buf.Height {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds %dx%d", x, y, buf.Width, buf.Height)
	}

	r, g, b := buf.At(x, y)
	r8, g8, b8 := quantize8(r), quantize8(g), quantize8(b)

	return &ColorResult{
		Hex:   fmt.Sprintf("#%02X%02X%02X", r8, g8, b8),
		RGB:   RGBColor{R: r8, G: g8, B: b8},
		HSL:   toHSL(r, g, b),
		Value: [3]float32{r, g, b},
	}, nil
}

// LabeledPoint is a pixel coordinate with an optional label.
type LabeledPoint struct {
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Label string `json:"label,omitempty"`
}

// LabeledColorResult combines a color sample with its location and label.
type LabeledColorResult struct {
	Label string      `json:"label,omitempty"`
	X     int         `json:"x"`
	Y     int         `json:"y"`
	Color ColorResult `json:"color"`
}

// MultiColorResult contains samples in the order the points were given.
type MultiColorResult struct {
	Samples []LabeledColorResult `json:"samples"`
}

// SampleColorsMulti samples several points in one call. Any point outside
// the buffer fails the whole call and no partial results are returned.
func SampleColorsMulti(buf *Buffer, points []LabeledPoint) (*MultiColorResult, error) {
	results := make([]LabeledColorResult, 0, len(points))

	for _, p := range points {
		c, err := SampleColor(buf, p.X, p.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to sample point (%d,%d): %w", p.X, p.Y, err)
		}
		results = append(results, LabeledColorResult{
			Label: p.Label,
			X:     p.X,
			Y:     p.Y,
			Color: *c,
		})
	}

	return &MultiColorResult{Samples: results}, nil
}

func toHSL(r, g, b float32) HSLColor {
	c := colorful.Color{R: unit(r), G: unit(g), B: unit(b)}
	h, s, l := c.Hsl()
	return HSLColor{
		H: int(math.Round(h)) % 360,
		S: int(math.Round(s * 100)),
		L: int(math.Round(l * 100)),
	}
}

func unit(v float32) float64 {
	switch {
	case !(v > 0):
		return 0
	case v > 1:
		return 1
	}
	return float64(v)
}
