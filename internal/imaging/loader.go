package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

// ErrDecode is returned when a source file cannot be read or decoded.
var ErrDecode = errors.New("imaging: decode failed")

// Exif is the subset of capture metadata the pipeline consumes. It is
// extracted once at decode time and never modified afterwards.
type Exif struct {
	Make        string  `json:"make,omitempty" yaml:"make,omitempty"`
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Lens        string  `json:"lens,omitempty" yaml:"lens,omitempty"`
	FocalLength float64 `json:"focal_length,omitempty" yaml:"focal_length,omitempty"`
	Aperture    float64 `json:"aperture,omitempty" yaml:"aperture,omitempty"`
	Distance    float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
	Orientation int     `json:"orientation,omitempty" yaml:"orientation,omitempty"`
}

// Empty reports whether no identifying fields are present.
func (e Exif) Empty() bool {
	return e.Make == "" && e.Model == "" && e.Lens == ""
}

// DecodeOptions controls a single decode.
type DecodeOptions struct {
	// HalfSize requests a fast preview decode at half the source resolution.
	HalfSize bool
}

// Decoded is the output of a decoder: a linear buffer in the working space
// plus the metadata gathered while reading the file.
type Decoded struct {
	Buffer *Buffer

	// BitDepth is the per-channel depth of the source samples (8 or 16).
	BitDepth int

	Exif Exif

	// Orientation is the EXIF orientation tag (1-8). It has already been
	// applied to Buffer when Oriented is true.
	Orientation int
	Oriented    bool
}

// FileDecoder decodes PNG, JPEG and TIFF files into linear ProPhoto buffers.
//
// Source samples are assumed to be sRGB-encoded. They are linearized through
// a 16-bit lookup table and remapped from sRGB primaries into the working
// space. A zero FileDecoder is ready to use and safe for concurrent use.
type FileDecoder struct{}

// Decode reads path and returns its linear working-space buffer.
//
// Parameters:
//   - path: Path to a PNG, JPEG or TIFF file.
//   - opts: Decode options. HalfSize halves both dimensions with bilinear
//     filtering before linearization.
//
// Returns:
//   - *Decoded: The buffer and metadata.
//   - error: Wraps ErrDecode if the file cannot be opened or decoded.
//
// # Orientation
//
// EXIF orientation is applied for 8-bit sources only, where the rotation is
// lossless. 16-bit sources keep their stored orientation and report it.
func (FileDecoder) Decode(path string, opts DecodeOptions) (*Decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}

	meta := readExif(f)
	depth := bitDepth(src)

	out := &Decoded{BitDepth: depth, Exif: meta, Orientation: meta.Orientation}
	if out.Orientation == 0 {
		out.Orientation = 1
	}
	if depth == 8 && out.Orientation > 1 {
		src = orient(src, out.Orientation)
		out.Oriented = true
	}

	if opts.HalfSize {
		src = Scale(src, src.Bounds().Dx()/2, src.Bounds().Dy()/2)
	}

	buf, err := FromImage(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	out.Buffer = buf
	return out, nil
}

// Scale resizes img to w x h with bilinear filtering, keeping 16-bit
// precision. Dimensions below one pixel are raised to one.
func Scale(img image.Image, w, h int) image.Image {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	b := img.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return img
	}
	dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// FitBuffer downscales buf so neither side exceeds maxDim, preserving aspect
// ratio. A buffer already within bounds is returned unchanged.
func FitBuffer(buf *Buffer, maxDim int) *Buffer {
	if maxDim <= 0 || (buf.Width <= maxDim && buf.Height <= maxDim) {
		return buf
	}
	w, h := buf.Width, buf.Height
	if w >= h {
		h = h * maxDim / w
		w = maxDim
	} else {
		w = w * maxDim / h
		h = maxDim
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	out := NewBuffer(w, h, buf.Space)
	sx := float64(buf.Width) / float64(w)
	sy := float64(buf.Height) / float64(h)
	for y := 0; y < h; y++ {
		fy := (float64(y)+0.5)*sy - 0.5
		y0, ty := splitCoord(fy, buf.Height)
		for x := 0; x < w; x++ {
			fx := (float64(x)+0.5)*sx - 0.5
			x0, tx := splitCoord(fx, buf.Width)
			x1, y1 := minInt(x0+1, buf.Width-1), minInt(y0+1, buf.Height-1)
			o := (y*w + x) * 3
			for c := 0; c < 3; c++ {
				a := lerp(buf.Pix[(y0*buf.Width+x0)*3+c], buf.Pix[(y0*buf.Width+x1)*3+c], tx)
				bb := lerp(buf.Pix[(y1*buf.Width+x0)*3+c], buf.Pix[(y1*buf.Width+x1)*3+c], tx)
				out.Pix[o+c] = lerp(a, bb, ty)
			}
		}
	}
	return out
}

func splitCoord(f float64, n int) (int, float32) {
	if f <= 0 {
		return 0, 0
	}
	i := int(f)
	if i >= n-1 {
		return n - 1, 0
	}
	return i, float32(f - float64(i))
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var (
	srgbOnce  sync.Once
	srgbToLin []float32
)

// linearTable returns the 16-bit sRGB decode table, building it on first use.
func linearTable() []float32 {
	srgbOnce.Do(func() {
		srgbToLin = make([]float32, 65536)
		for i := range srgbToLin {
			srgbToLin[i] = float32(colormath.DecodeSRGB(float64(i) / 65535))
		}
	})
	return srgbToLin
}

// FromImage converts an sRGB-encoded image into a linear working-space
// buffer. Alpha is discarded after un-premultiplying.
func FromImage(img image.Image) (*Buffer, error) {
	b := img.Bounds()
	buf := NewBuffer(b.Dx(), b.Dy(), colormath.SRGB)
	lin := linearTable()

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
			buf.Set(x-b.Min.X, y-b.Min.Y, lin[c.R], lin[c.G], lin[c.B])
		}
	}

	m, err := colormath.GamutMatrix(colormath.SRGB, colormath.WorkingSpace)
	if err != nil {
		return nil, err
	}
	colormath.ApplyMatrix(buf.Pix, m)
	buf.Space = colormath.WorkingSpace
	return buf, nil
}

func bitDepth(img image.Image) int {
	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return 16
	}
	return 8
}

// orient applies an EXIF orientation to img.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	}
	return img
}

// readExif extracts the metadata subset from f. Files without EXIF, or with
// unreadable EXIF, yield an empty Exif.
func readExif(f *os.File) Exif {
	if _, err := f.Seek(0, 0); err != nil {
		return Exif{}
	}
	x, err := exif.Decode(f)
	if err != nil {
		return Exif{}
	}

	var e Exif
	e.Make = exifString(x, exif.Make)
	e.Model = exifString(x, exif.Model)
	e.Lens = exifString(x, exif.LensModel)
	e.FocalLength = exifRat(x, exif.FocalLength)
	e.Aperture = exifRat(x, exif.FNumber)
	e.Distance = exifRat(x, exif.SubjectDistance)
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			e.Orientation = v
		}
	}
	return e
}

func exifString(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

func exifRat(x *exif.Exif, name exif.FieldName) float64 {
	tag, err := x.Get(name)
	if err != nil {
		return 0
	}
	r, err := tag.Rat(0)
	if err != nil || r == nil {
		return 0
	}
	v, _ := r.Float64()
	return v
}

// ImageInfo describes a source file without decoding it into a buffer.
type ImageInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadImageInfo reads only the header of path.
func LoadImageInfo(path string) (*ImageInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, filepath.Base(path), err)
	}
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	return &ImageInfo{
		Width:         cfg.Width,
		Height:        cfg.Height,
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
