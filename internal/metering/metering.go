// Package metering estimates a scalar exposure gain from image content.
//
// Five strategies are available, selected by Mode. All of them return a
// gain in [colormath.MinGain, colormath.MaxGain] and fall back to 1.0 when
// the buffer carries no usable statistics (empty, all zero, all NaN). No
// state is kept between calls.
package metering

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

// ErrUnknownMeteringMode is returned by ParseMode for names outside the
// closed set.
var ErrUnknownMeteringMode = errors.New("metering: unknown mode")

// Mode selects a metering strategy.
type Mode string

const (
	Average        Mode = "average"
	CenterWeighted Mode = "center_weighted"
	HighlightSafe  Mode = "highlight_safe"
	Hybrid         Mode = "hybrid"
	Matrix         Mode = "matrix"
)

// Modes lists every mode in display order.
var Modes = []Mode{Matrix, Average, CenterWeighted, HighlightSafe, Hybrid}

// ParseMode validates a mode name.
func ParseMode(name string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMeteringMode, name)
}

const (
	// maxSamples bounds the number of pixels read from large buffers.
	maxSamples = 1 << 20

	// highlightPercentile is the luminance percentile held at the clip
	// point by HighlightSafe.
	highlightPercentile = 0.99

	// centerSigma is the Gaussian falloff of CenterWeighted, as a fraction
	// of the half-diagonal.
	centerSigma = 0.35

	// zoneGrid is the side of the Matrix zone grid.
	zoneGrid = 5

	// Matrix zones brighter than outlierFactor times the median zone are
	// down-weighted by outlierWeight.
	outlierFactor = 4.0
	outlierWeight = 0.25
)

// sample is one metered pixel: luminance plus its normalized position,
// with (0,0) at the frame center and the half-diagonal at radius 1.
type sample struct {
	y    float64
	u, v float64
	zx   int
	zy   int
}

// collect reads luminance samples from buf with a stride chosen so that at
// most maxSamples pixels are visited. Non-positive and NaN values are kept
// out; the caller sees only usable samples.
func collect(buf *imaging.Buffer, space colormath.Space) ([]sample, error) {
	if buf.Empty() {
		return nil, nil
	}
	w, err := colormath.LuminanceWeights(space)
	if err != nil {
		return nil, err
	}

	stride := 1
	for (buf.Width/stride)*(buf.Height/stride) > maxSamples {
		stride++
	}

	cx, cy := float64(buf.Width-1)/2, float64(buf.Height-1)/2
	halfDiag := math.Hypot(float64(buf.Width), float64(buf.Height)) / 2
	if halfDiag == 0 {
		halfDiag = 1
	}

	out := make([]sample, 0, (buf.Width/stride+1)*(buf.Height/stride+1))
	for y := 0; y < buf.Height; y += stride {
		for x := 0; x < buf.Width; x += stride {
			i := (y*buf.Width + x) * 3
			lum := w[0]*float64(buf.Pix[i]) + w[1]*float64(buf.Pix[i+1]) + w[2]*float64(buf.Pix[i+2])
			if !(lum > 0) || math.IsInf(lum, 0) {
				continue
			}
			out = append(out, sample{
				y:  lum,
				u:  (float64(x) - cx) / halfDiag,
				v:  (float64(y) - cy) / halfDiag,
				zx: x * zoneGrid / buf.Width,
				zy: y * zoneGrid / buf.Height,
			})
		}
	}
	return out, nil
}

// Measure returns the exposure gain for buf under mode. Luminance is
// computed in the buffer's own space.
func Measure(buf *imaging.Buffer, mode Mode) (float64, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return 1, err
	}
	if buf.Empty() {
		return 1, nil
	}
	samples, err := collect(buf, buf.Space)
	if err != nil {
		return 1, err
	}
	if len(samples) == 0 {
		return 1, nil
	}

	var gain float64
	switch mode {
	case Average:
		gain = averageGain(samples)
	case CenterWeighted:
		gain = centerWeightedGain(samples)
	case HighlightSafe:
		gain = highlightSafeGain(samples)
	case Hybrid:
		gain = math.Min(averageGain(samples), highlightSafeGain(samples))
	case Matrix:
		gain = matrixGain(samples)
	}
	return colormath.ClampGain(gain), nil
}

// Apply measures buf and multiplies it by the resulting gain in place. The
// applied gain is returned for display.
func Apply(buf *imaging.Buffer, mode Mode) (float64, error) {
	gain, err := Measure(buf, mode)
	if err != nil {
		return 1, err
	}
	imaging.ApplyGain(buf, gain)
	return gain, nil
}

// averageGain maps the geometric mean luminance to mid-gray.
func averageGain(s []sample) float64 {
	var sum float64
	for _, p := range s {
		sum += math.Log(p.y)
	}
	return colormath.MidGray / math.Exp(sum/float64(len(s)))
}

func centerWeightedGain(s []sample) float64 {
	var sum, wsum float64
	twoSigma2 := 2 * centerSigma * centerSigma
	for _, p := range s {
		w := math.Exp(-(p.u*p.u + p.v*p.v) / twoSigma2)
		sum += w * math.Log(p.y)
		wsum += w
	}
	if wsum <= 0 {
		return 1
	}
	return colormath.MidGray / math.Exp(sum/wsum)
}

// highlightSafeGain places the 99th luminance percentile at the clip point.
func highlightSafeGain(s []sample) float64 {
	ys := make([]float64, len(s))
	for i, p := range s {
		ys[i] = p.y
	}
	sort.Float64s(ys)
	idx := int(math.Ceil(highlightPercentile*float64(len(ys)))) - 1
	if idx < 0 {
		idx = 0
	}
	p := ys[idx]
	if p < colormath.Epsilon {
		return 1
	}
	return colormath.HighlightClip / p
}

// matrixGain averages a 5x5 zone grid. Zones are weighted toward the frame
// center, and zones far brighter than the median zone (sky, light sources)
// count for a quarter so they do not drag the exposure down.
func matrixGain(s []sample) float64 {
	var logSum [zoneGrid * zoneGrid]float64
	var count [zoneGrid * zoneGrid]int
	for _, p := range s {
		z := p.zy*zoneGrid + p.zx
		logSum[z] += math.Log(p.y)
		count[z]++
	}

	type zone struct {
		mean   float64
		weight float64
	}
	zones := make([]zone, 0, zoneGrid*zoneGrid)
	const c = float64(zoneGrid-1) / 2
	for z := range logSum {
		if count[z] == 0 {
			continue
		}
		dx := float64(z%zoneGrid) - c
		dy := float64(z/zoneGrid) - c
		zones = append(zones, zone{
			mean:   math.Exp(logSum[z] / float64(count[z])),
			weight: 1 / (1 + (dx*dx+dy*dy)/(c*c)),
		})
	}
	if len(zones) == 0 {
		return 1
	}

	means := make([]float64, len(zones))
	for i, z := range zones {
		means[i] = z.mean
	}
	sort.Float64s(means)
	median := means[len(means)/2]

	var sum, wsum float64
	for _, z := range zones {
		w := z.weight
		if z.mean > outlierFactor*median {
			w *= outlierWeight
		}
		sum += w * math.Log(z.mean)
		wsum += w
	}
	return colormath.MidGray / math.Exp(sum/wsum)
}
