package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"testing"
)

func decodeResult(t *testing.T, r *CropResult) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(r.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	return img
}

func TestPreview_FitsLongSide(t *testing.T) {
	buf := createPatternBuffer(200, 100)

	result, err := Preview(buf, 50)
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if result.Width != 50 || result.Height != 25 {
		t.Errorf("dimensions: got %dx%d, want 50x25", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s", result.MimeType)
	}
	if b := decodeResult(t, result).Bounds(); b.Dx() != 50 || b.Dy() != 25 {
		t.Errorf("decoded bounds: %v", b)
	}
}

func TestPreview_DoesNotUpscale(t *testing.T) {
	result, err := Preview(createPatternBuffer(20, 10), 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.Width != 20 || result.Height != 10 {
		t.Errorf("dimensions: got %dx%d, want 20x10", result.Width, result.Height)
	}
}

func TestCrop(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		scale          float64
		wantW, wantH   int
	}{
		{"quarter", 0, 0, 50, 50, 1.0, 50, 50},
		{"scale up", 0, 0, 50, 50, 2.0, 100, 100},
		{"scale down", 0, 0, 100, 100, 0.5, 50, 50},
		{"full image", 0, 0, 100, 100, 1.0, 100, 100},
	}
	buf := createPatternBuffer(100, 100)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Crop(buf, tt.x1, tt.y1, tt.x2, tt.y2, tt.scale)
			if err != nil {
				t.Fatalf("Crop failed: %v", err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("dimensions: got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestCrop_InvalidRegion(t *testing.T) {
	buf := createPatternBuffer(100, 100)
	tests := []struct {
		name           string
		x1, y1, x2, y2 int
	}{
		{"outside right", 50, 0, 150, 50},
		{"negative", -1, 0, 50, 50},
		{"inverted", 50, 50, 10, 10},
		{"empty", 10, 10, 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Crop(buf, tt.x1, tt.y1, tt.x2, tt.y2, 1); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCropQuadrant_VerifyContent(t *testing.T) {
	buf := createPatternBuffer(100, 100)
	tests := []struct {
		region  string
		r, g, b uint32
	}{
		{"top-left", 0xffff, 0, 0},
		{"top-right", 0, 0xffff, 0},
		{"bottom-left", 0, 0, 0xffff},
		{"bottom-right", 0xffff, 0xffff, 0xffff},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			result, err := CropQuadrant(buf, tt.region, 1.0)
			if err != nil {
				t.Fatalf("CropQuadrant failed: %v", err)
			}
			if result.Width != 50 || result.Height != 50 {
				t.Errorf("dimensions: got %dx%d", result.Width, result.Height)
			}
			r, g, b, _ := decodeResult(t, result).At(25, 25).RGBA()
			if r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("center pixel: got (%d,%d,%d), want (%d,%d,%d)", r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestCropQuadrant_CenterAndHalves(t *testing.T) {
	buf := createPatternBuffer(101, 51)
	tests := []struct {
		region       string
		wantW, wantH int
	}{
		{"center", 51, 27},
		{"top-half", 101, 25},
		{"right-half", 51, 51},
	}
	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			result, err := CropQuadrant(buf, tt.region, 1.0)
			if err != nil {
				t.Fatal(err)
			}
			if result.Width != tt.wantW || result.Height != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", result.Width, result.Height, tt.wantW, tt.wantH)
			}
		})
	}

	if _, err := CropQuadrant(buf, "middle", 1.0); err == nil {
		t.Error("expected error for unknown region")
	}
}
