package colormath

import (
	"fmt"
	"math"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Matrix3 is a row-major 3x3 matrix.
type Matrix3 [9]float64

// Identity3 returns the identity matrix.
func Identity3() Matrix3 {
	return Matrix3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// Mul returns m·n.
func (m Matrix3) Mul(n Matrix3) Matrix3 {
	var c Matrix3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			c[row*3+col] = m[row*3]*n[col] + m[row*3+1]*n[3+col] + m[row*3+2]*n[6+col]
		}
	}
	return c
}

// Apply multiplies the column vector (a, b, c) by m.
func (m Matrix3) Apply(a, b, c float64) (float64, float64, float64) {
	return m[0]*a + m[1]*b + m[2]*c,
		m[3]*a + m[4]*b + m[5]*c,
		m[6]*a + m[7]*b + m[8]*c
}

// Inverse returns the inverse of m. A singular matrix yields an error.
func (m Matrix3) Inverse() (Matrix3, error) {
	var inv Matrix3

	A := +(m[4]*m[8] - m[5]*m[7])
	B := -(m[3]*m[8] - m[5]*m[6])
	C := +(m[3]*m[7] - m[4]*m[6])

	D := -(m[1]*m[8] - m[2]*m[7])
	E := +(m[0]*m[8] - m[2]*m[6])
	F := -(m[0]*m[7] - m[1]*m[6])

	G := +(m[1]*m[5] - m[2]*m[4])
	H := -(m[0]*m[5] - m[2]*m[3])
	I := +(m[0]*m[4] - m[1]*m[3])

	det := m[0]*A + m[1]*B + m[2]*C
	if math.Abs(det) < 1e-12 {
		return inv, fmt.Errorf("colormath: singular matrix")
	}

	inv[0], inv[1], inv[2] = A/det, D/det, G/det
	inv[3], inv[4], inv[5] = B/det, E/det, H/det
	inv[6], inv[7], inv[8] = C/det, F/det, I/det
	return inv, nil
}

// bradford is the Bradford cone response matrix used for chromatic adaptation.
var bradford = Matrix3{
	0.8951, 0.2664, -0.1614,
	-0.7502, 1.7135, 0.0367,
	0.0389, -0.0685, 1.0296,
}

func xyToXYZ(c Chromaticity) (float64, float64, float64) {
	return colorful.XyyToXyz(c.X, c.Y, 1.0)
}

// RGBToXYZ derives the linear RGB→XYZ matrix of s from its primaries and
// white point.
func RGBToXYZ(s Space) (Matrix3, error) {
	r, g, b, w, err := s.Primaries()
	if err != nil {
		return Matrix3{}, err
	}
	rx, ry, rz := xyToXYZ(r)
	gx, gy, gz := xyToXYZ(g)
	bx, by, bz := xyToXYZ(b)
	p := Matrix3{
		rx, gx, bx,
		ry, gy, by,
		rz, gz, bz,
	}
	pinv, err := p.Inverse()
	if err != nil {
		return Matrix3{}, fmt.Errorf("colormath: %s primaries: %w", s, err)
	}
	sr, sg, sb := pinv.Apply(xyToXYZ(w))
	return Matrix3{
		rx * sr, gx * sg, bx * sb,
		ry * sr, gy * sg, by * sb,
		rz * sr, gz * sg, bz * sb,
	}, nil
}

// adaptation returns the Bradford transform from white point src to dst.
func adaptation(src, dst Chromaticity) (Matrix3, error) {
	if src == dst {
		return Identity3(), nil
	}
	sl, sm, ss := bradford.Apply(xyToXYZ(src))
	dl, dm, ds := bradford.Apply(xyToXYZ(dst))
	scale := Matrix3{
		dl / sl, 0, 0,
		0, dm / sm, 0,
		0, 0, ds / ss,
	}
	binv, err := bradford.Inverse()
	if err != nil {
		return Matrix3{}, err
	}
	return binv.Mul(scale).Mul(bradford), nil
}

type spacePair struct {
	from, to Space
}

var gamutCache sync.Map // spacePair -> Matrix3

// GamutMatrix returns the linear RGB→RGB matrix from one space to another,
// adapting the white point with Bradford when the two differ. Results are
// cached per pair.
func GamutMatrix(from, to Space) (Matrix3, error) {
	key := spacePair{from, to}
	if m, ok := gamutCache.Load(key); ok {
		return m.(Matrix3), nil
	}
	if from == to {
		gamutCache.Store(key, Identity3())
		return Identity3(), nil
	}

	src, err := RGBToXYZ(from)
	if err != nil {
		return Matrix3{}, err
	}
	dst, err := RGBToXYZ(to)
	if err != nil {
		return Matrix3{}, err
	}
	dstInv, err := dst.Inverse()
	if err != nil {
		return Matrix3{}, err
	}
	_, _, _, srcWhite, _ := from.Primaries()
	_, _, _, dstWhite, _ := to.Primaries()
	cat, err := adaptation(srcWhite, dstWhite)
	if err != nil {
		return Matrix3{}, err
	}

	m := dstInv.Mul(cat).Mul(src)
	gamutCache.Store(key, m)
	return m, nil
}

// LuminanceWeights returns the Y row of the space's RGB→XYZ matrix. A dot
// product with linear RGB yields relative luminance in that space.
func LuminanceWeights(s Space) ([3]float64, error) {
	m, err := RGBToXYZ(s)
	if err != nil {
		return [3]float64{}, err
	}
	return [3]float64{m[3], m[4], m[5]}, nil
}
