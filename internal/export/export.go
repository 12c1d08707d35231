// Package export encodes display-referred buffers into raster files.
//
// Three containers are supported: 8-bit JPEG and 16-bit PNG through
// disintegration/imaging, and 16-bit deflate-compressed TIFF through
// golang.org/x/image/tiff.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/tiff"

	rimaging "github.com/ironsheep/raw-alchemy/internal/imaging"
)

// ErrUnsupportedFormat is returned for output formats outside the closed set.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// Format names an output container.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	TIFF Format = "tiff"
)

// Formats lists the supported containers.
var Formats = []Format{JPEG, PNG, TIFF}

// DefaultJPEGQuality is used when Options.JPEGQuality is zero.
const DefaultJPEGQuality = 95

// Options tunes encoding.
type Options struct {
	JPEGQuality int
}

// ParseFormat accepts a format name or a common alias ("jpg", "tif").
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "jpeg", "jpg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "tiff", "tif":
		return TIFF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Ext returns the canonical file extension, including the dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case TIFF:
		return ".tif"
	}
	return "." + string(f)
}

// BitDepth returns the per-channel depth written for f.
func (f Format) BitDepth() int {
	if f == JPEG {
		return 8
	}
	return 16
}

// Write encodes buf, which must hold display-referred values in [0,1], to
// path. The parent directory must exist.
func Write(buf *rimaging.Buffer, path string, format Format, opts Options) error {
	if err := buf.Validate(); err != nil {
		return err
	}
	if buf.Empty() {
		return fmt.Errorf("export: empty buffer")
	}

	switch format {
	case JPEG:
		q := opts.JPEGQuality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		if err := imaging.Save(buf.ToNRGBA(), path, imaging.JPEGQuality(q)); err != nil {
			return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
		}
		return nil

	case PNG:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		if err := imaging.Encode(f, buf.ToNRGBA64(), imaging.PNG); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
		}
		return f.Close()

	case TIFF:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		err = tiff.Encode(f, buf.ToNRGBA64(), &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		if err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
		}
		return f.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
