package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// DefaultPreviewSize bounds the long side of encoded previews.
const DefaultPreviewSize = 1024

// CropResult contains an encoded PNG of a display-referred buffer.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Preview encodes buf as a PNG no larger than maxDim on its long side. The
// buffer must already be display-referred.
func Preview(buf *Buffer, maxDim int) (*CropResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if maxDim <= 0 {
		maxDim = DefaultPreviewSize
	}
	img := imaging.Fit(buf.ToNRGBA(), maxDim, maxDim, imaging.Lanczos)
	return encodePNG(img)
}

// Crop extracts (x1,y1)-(x2,y2) from buf, optionally rescaled, and encodes it
// as a PNG. x2 and y2 are exclusive.
func Crop(buf *Buffer, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if x1 < 0 || y1 < 0 || x2 > buf.Width || y2 > buf.Height {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds %dx%d",
			x1, y1, x2, y2, buf.Width, buf.Height)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	cropped := imaging.Crop(buf.ToNRGBA(), image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		w := int(float64(cropped.Bounds().Dx()) * scale)
		h := int(float64(cropped.Bounds().Dy()) * scale)
		cropped = imaging.Resize(cropped, w, h, imaging.Lanczos)
	}

	return encodePNG(cropped)
}

// CropQuadrant extracts a named region: top-left, top-right, bottom-left,
// bottom-right, top-half, bottom-half, left-half, right-half or center.
func CropQuadrant(buf *Buffer, region string, scale float64) (*CropResult, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	w, h := buf.Width, buf.Height
	midX, midY := w/2, h/2

	var x1, y1, x2, y2 int
	switch region {
	case "top-left":
		x1, y1, x2, y2 = 0, 0, midX, midY
	case "top-right":
		x1, y1, x2, y2 = midX, 0, w, midY
	case "bottom-left":
		x1, y1, x2, y2 = 0, midY, midX, h
	case "bottom-right":
		x1, y1, x2, y2 = midX, midY, w, h
	case "top-half":
		x1, y1, x2, y2 = 0, 0, w, midY
	case "bottom-half":
		x1, y1, x2, y2 = 0, midY, w, h
	case "left-half":
		x1, y1, x2, y2 = 0, 0, midX, h
	case "right-half":
		x1, y1, x2, y2 = midX, 0, w, h
	case "center":
		// Center 50% of the image
		x1, y1, x2, y2 = w/4, h/4, w-w/4, h-h/4
	default:
		return nil, fmt.Errorf("unknown region: %s", region)
	}

	return Crop(buf, x1, y1, x2, y2, scale)
}

func encodePNG(img image.Image) (*CropResult, error) {
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(out.Bytes()),
		MimeType:    "image/png",
	}, nil
}
