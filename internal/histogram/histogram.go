// Package histogram estimates per-channel value distributions of a buffer
// for display.
//
// Bins are uniform over [0,1]; values outside the range land in the edge
// bins and NaN samples are skipped. To keep interactive updates cheap only
// every stride-th row and column is read, so a stride of 4 visits one pixel
// in sixteen. The shape of the distribution survives this sub-sampling well
// enough for a display widget; exact counts do not.
package histogram

import (
	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

// Defaults match the interactive histogram widget.
const (
	DefaultBins   = 100
	DefaultStride = 4
)

// Histogram holds per-channel counts.
type Histogram struct {
	Bins    int      `json:"bins"`
	Stride  int      `json:"stride"`
	Samples int      `json:"samples"`
	Counts  [3][]int `json:"counts"`
}

// Compute bins the channels of buf. Non-positive bins or stride fall back
// to the defaults. An empty buffer yields an all-zero histogram.
func Compute(buf *imaging.Buffer, bins, stride int) *Histogram {
	if bins <= 0 {
		bins = DefaultBins
	}
	if stride <= 0 {
		stride = DefaultStride
	}
	h := &Histogram{Bins: bins, Stride: stride}
	for c := range h.Counts {
		h.Counts[c] = make([]int, bins)
	}
	if buf.Empty() {
		return h
	}

	fb := float32(bins)
	for y := 0; y < buf.Height; y += stride {
		row := y * buf.Width * 3
		for x := 0; x < buf.Width; x += stride {
			i := row + x*3
			counted := false
			for c := 0; c < 3; c++ {
				v := buf.Pix[i+c]
				if v != v {
					continue
				}
				h.Counts[c][binOf(v, fb, bins)]++
				counted = true
			}
			if counted {
				h.Samples++
			}
		}
	}
	return h
}

func binOf(v, fb float32, bins int) int {
	if v <= 0 {
		return 0
	}
	// Checked before the conversion: int() of +Inf or a huge float is
	// undefined and comes out negative on amd64.
	if v >= 1 {
		return bins - 1
	}
	b := int(v * fb)
	if b >= bins {
		return bins - 1
	}
	return b
}

// Peak returns the largest count across all channels.
func (h *Histogram) Peak() int {
	peak := 0
	for c := range h.Counts {
		for _, n := range h.Counts[c] {
			if n > peak {
				peak = n
			}
		}
	}
	return peak
}

// Normalized scales counts so the peak bin is 1. A histogram with no
// samples normalizes to all zeros.
func (h *Histogram) Normalized() [3][]float64 {
	var out [3][]float64
	peak := float64(h.Peak())
	for c := range h.Counts {
		out[c] = make([]float64, len(h.Counts[c]))
		if peak == 0 {
			continue
		}
		for i, n := range h.Counts[c] {
			out[c][i] = float64(n) / peak
		}
	}
	return out
}
