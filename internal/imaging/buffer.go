package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

// ErrShape is returned when a buffer's pixel slice does not match its
// declared dimensions.
var ErrShape = errors.New("imaging: buffer shape mismatch")

// Buffer is a 3-channel float32 image, interleaved and row-major.
//
// Values are scene-linear and nominally in [0, a few]; they are not clamped
// before log encoding. A Buffer is owned by whichever pipeline stage holds it.
type Buffer struct {
	Width  int
	Height int

	// Pix holds Width*Height RGB triplets.
	Pix []float32

	// Space is the color space the samples are expressed in.
	Space colormath.Space
}

// NewBuffer allocates a zeroed buffer.
func NewBuffer(width, height int, space colormath.Space) *Buffer {
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]float32, width*height*3),
		Space:  space,
	}
}

// NewFilled allocates a buffer with every channel set to v.
func NewFilled(width, height int, space colormath.Space, v float32) *Buffer {
	b := NewBuffer(width, height, space)
	for i := range b.Pix {
		b.Pix[i] = v
	}
	return b
}

// Len returns the number of pixels.
func (b *Buffer) Len() int {
	return b.Width * b.Height
}

// Empty reports whether the buffer holds no pixels.
func (b *Buffer) Empty() bool {
	return b == nil || b.Width <= 0 || b.Height <= 0
}

// Validate checks that Pix matches the declared dimensions.
func (b *Buffer) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil buffer", ErrShape)
	}
	if b.Width < 0 || b.Height < 0 {
		return fmt.Errorf("%w: negative dimensions %dx%d", ErrShape, b.Width, b.Height)
	}
	if len(b.Pix) < b.Width*b.Height*3 {
		return fmt.Errorf("%w: %dx%d needs %d samples, have %d",
			ErrShape, b.Width, b.Height, b.Width*b.Height*3, len(b.Pix))
	}
	return nil
}

// Clone returns a deep copy.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{Width: b.Width, Height: b.Height, Space: b.Space}
	c.Pix = make([]float32, b.Width*b.Height*3)
	copy(c.Pix, b.Pix)
	return c
}

// Contiguous returns the buffer itself when Pix is exactly sized, or a
// compacted copy when Pix carries trailing capacity or excess samples.
func (b *Buffer) Contiguous() *Buffer {
	n := b.Width * b.Height * 3
	if len(b.Pix) == n && cap(b.Pix) == n {
		return b
	}
	return b.Clone()
}

// At returns the RGB triplet at (x, y).
func (b *Buffer) At(x, y int) (float32, float32, float32) {
	i := (y*b.Width + x) * 3
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Set stores an RGB triplet at (x, y).
func (b *Buffer) Set(x, y int, r, g, bl float32) {
	i := (y*b.Width + x) * 3
	b.Pix[i], b.Pix[i+1], b.Pix[i+2] = r, g, bl
}

// ToNRGBA64 quantizes a display-referred buffer (values in [0,1]) to a
// 16-bit image.
func (b *Buffer) ToNRGBA64() *image.NRGBA64 {
	img := image.NewNRGBA64(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bl := b.At(x, y)
			img.SetNRGBA64(x, y, color.NRGBA64{R: quantize16(r), G: quantize16(g), B: quantize16(bl), A: 0xffff})
		}
	}
	return img
}

// ToNRGBA quantizes a display-referred buffer to 8 bits per channel.
func (b *Buffer) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			r, g, bl := b.At(x, y)
			img.SetNRGBA(x, y, color.NRGBA{R: quantize8(r), G: quantize8(g), B: quantize8(bl), A: 0xff})
		}
	}
	return img
}

func quantize16(v float32) uint16 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*65535 + 0.5)
}

func quantize8(v float32) uint8 {
	if v != v || v <= 0 {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return uint8(v*255 + 0.5)
}
