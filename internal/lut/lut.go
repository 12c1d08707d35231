// Package lut samples 1D and 3D lookup tables over float pixel buffers and
// reads them from .cube files.
//
// Inputs are normalized into [0,1] through the table's domain, scaled to
// index space and clamped to the valid range. Out-of-domain values are
// never wrapped or extrapolated. 3D tables use trilinear interpolation over
// the eight corners of the enclosing cell; 1D tables interpolate linearly
// per channel.
package lut

import (
	"fmt"
	"math"

	"github.com/anthonynsimon/bild/parallel"

	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

// LUT is a table that can be applied to a buffer in place.
type LUT interface {
	Apply(buf *imaging.Buffer)
	Dimensions() int
}

// Domain is the input range mapped onto the table, per channel.
type Domain struct {
	Low  [3]float32
	High [3]float32
}

// UnitDomain is the default [0,1] domain.
var UnitDomain = Domain{High: [3]float32{1, 1, 1}}

func (d Domain) scale() (off, mul [3]float32) {
	for c := 0; c < 3; c++ {
		off[c] = d.Low[c]
		span := d.High[c] - d.Low[c]
		if span == 0 {
			span = 1
		}
		mul[c] = 1 / span
	}
	return off, mul
}

// Table1D is a per-channel curve of Size entries. Data holds Size RGB
// triplets.
type Table1D struct {
	Title  string
	Size   int
	Data   []float32
	Domain Domain
}

// NewTable1D builds a 1D table, casting data to float32 once.
func NewTable1D(size int, data []float64, domain Domain) (*Table1D, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: 1D size %d < 2", ErrMalformed, size)
	}
	if len(data) != size*3 {
		return nil, fmt.Errorf("%w: 1D table needs %d values, got %d", ErrMalformed, size*3, len(data))
	}
	t := &Table1D{Size: size, Data: make([]float32, len(data)), Domain: domain}
	for i, v := range data {
		t.Data[i] = float32(v)
	}
	return t, nil
}

// Dimensions returns 1.
func (t *Table1D) Dimensions() int { return 1 }

// Apply maps every channel through its curve, in place.
func (t *Table1D) Apply(buf *imaging.Buffer) {
	if buf.Empty() {
		return
	}
	off, mul := t.Domain.scale()
	last := float32(t.Size - 1)
	data := t.Data
	pix := buf.Pix[:buf.Len()*3]

	parallel.Line(len(pix)/3, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			for c := 0; c < 3; c++ {
				x := clampIndex((pix[i+c]-off[c])*mul[c]*last, last)
				i0 := int(x)
				if i0 > t.Size-2 {
					i0 = t.Size - 2
				}
				f := x - float32(i0)
				a := data[i0*3+c]
				b := data[(i0+1)*3+c]
				pix[i+c] = a + (b-a)*f
			}
		}
	})
}

// Table3D is an N×N×N table. Entry (r,g,b) lives at ((r*N+g)*N+b)*3, which
// is red-major; .cube files store blue-major and are transposed on read.
type Table3D struct {
	Title  string
	Size   int
	Data   []float32
	Domain Domain
}

// NewTable3D builds a 3D table from red-major float64 data, casting it to
// float32 once so the sampling loop never converts per pixel.
func NewTable3D(size int, data []float64, domain Domain) (*Table3D, error) {
	if size < 2 {
		return nil, fmt.Errorf("%w: 3D size %d < 2", ErrMalformed, size)
	}
	if len(data) != size*size*size*3 {
		return nil, fmt.Errorf("%w: 3D table needs %d values, got %d", ErrMalformed, size*size*size*3, len(data))
	}
	t := &Table3D{Size: size, Data: make([]float32, len(data)), Domain: domain}
	for i, v := range data {
		t.Data[i] = float32(v)
	}
	return t, nil
}

// Identity3D returns the identity table of the given size and domain: each
// entry holds its own input coordinate.
func Identity3D(size int, domain Domain) *Table3D {
	t := &Table3D{Size: size, Data: make([]float32, size*size*size*3), Domain: domain}
	n := float32(size - 1)
	for r := 0; r < size; r++ {
		for g := 0; g < size; g++ {
			for b := 0; b < size; b++ {
				i := ((r*size+g)*size + b) * 3
				idx := [3]float32{float32(r), float32(g), float32(b)}
				for c := 0; c < 3; c++ {
					t.Data[i+c] = domain.Low[c] + idx[c]/n*(domain.High[c]-domain.Low[c])
				}
			}
		}
	}
	return t
}

// Dimensions returns 3.
func (t *Table3D) Dimensions() int { return 3 }

// At returns the entry at integer coordinates.
func (t *Table3D) At(r, g, b int) (float32, float32, float32) {
	i := ((r*t.Size+g)*t.Size + b) * 3
	return t.Data[i], t.Data[i+1], t.Data[i+2]
}

// Apply samples the table with trilinear interpolation, in place.
func (t *Table3D) Apply(buf *imaging.Buffer) {
	if buf.Empty() {
		return
	}
	off, mul := t.Domain.scale()
	n := t.Size
	last := float32(n - 1)
	data := t.Data
	pix := buf.Pix[:buf.Len()*3]

	// Strides between neighbouring entries along each axis.
	sr, sg, sb := n*n*3, n*3, 3

	parallel.Line(len(pix)/3, func(start, end int) {
		for i := start * 3; i < end*3; i += 3 {
			x := clampIndex((pix[i]-off[0])*mul[0]*last, last)
			y := clampIndex((pix[i+1]-off[1])*mul[1]*last, last)
			z := clampIndex((pix[i+2]-off[2])*mul[2]*last, last)

			x0, y0, z0 := baseCell(x, n), baseCell(y, n), baseCell(z, n)
			fx, fy, fz := x-float32(x0), y-float32(y0), z-float32(z0)

			base := x0*sr + y0*sg + z0*sb
			for c := 0; c < 3; c++ {
				c000 := data[base+c]
				c001 := data[base+sb+c]
				c010 := data[base+sg+c]
				c011 := data[base+sg+sb+c]
				c100 := data[base+sr+c]
				c101 := data[base+sr+sb+c]
				c110 := data[base+sr+sg+c]
				c111 := data[base+sr+sg+sb+c]

				c00 := c000 + (c100-c000)*fx
				c01 := c001 + (c101-c001)*fx
				c10 := c010 + (c110-c010)*fx
				c11 := c011 + (c111-c011)*fx

				c0 := c00 + (c10-c00)*fy
				c1 := c01 + (c11-c01)*fy

				pix[i+c] = c0 + (c1-c0)*fz
			}
		}
	})
}

func clampIndex(x, last float32) float32 {
	if x != x || x < 0 {
		return 0
	}
	if x > last {
		return last
	}
	return x
}

// baseCell returns floor(x) limited to n-2 so the +1 corner stays in range.
func baseCell(x float32, n int) int {
	i := int(math.Floor(float64(x)))
	if i > n-2 {
		i = n - 2
	}
	return i
}

// Apply applies table to buf in place. A nil table is a no-op.
func Apply(buf *imaging.Buffer, table LUT) {
	if table == nil {
		return
	}
	table.Apply(buf)
}
