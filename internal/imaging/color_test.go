package imaging

import (
	"testing"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

// createFilledBuffer creates a display-referred buffer of one color.
func createFilledBuffer(width, height int, r, g, b float32) *Buffer {
	buf := NewBuffer(width, height, colormath.SRGB)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			buf.Set(x, y, r, g, b)
		}
	}
	return buf
}

// createPatternBuffer creates a buffer with a different color in each
// quadrant: red, green, blue, white.
func createPatternBuffer(width, height int) *Buffer {
	buf := NewBuffer(width, height, colormath.SRGB)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			switch {
			case x < width/2 && y < height/2:
				buf.Set(x, y, 1, 0, 0)
			case x >= width/2 && y < height/2:
				buf.Set(x, y, 0, 1, 0)
			case x < width/2:
				buf.Set(x, y, 0, 0, 1)
			default:
				buf.Set(x, y, 1, 1, 1)
			}
		}
	}
	return buf
}

func TestSampleColor(t *testing.T) {
	buf := createFilledBuffer(10, 10, 1, 128.0/255, 64.0/255)

	result, err := SampleColor(buf, 5, 5)
	if err != nil {
		t.Fatalf("SampleColor failed: %v", err)
	}
	if result.Hex != "#FF8040" {
		t.Errorf("Hex: got %s, want #FF8040", result.Hex)
	}
	if result.RGB != (RGBColor{R: 255, G: 128, B: 64}) {
		t.Errorf("RGB: got %+v", result.RGB)
	}
	if result.Value[0] != 1 {
		t.Errorf("Value: got %v", result.Value)
	}
}

func TestSampleColor_KnownColors(t *testing.T) {
	tests := []struct {
		name    string
		r, g, b float32
		wantHex string
		wantHue int
		wantL   int
	}{
		{"pure red", 1, 0, 0, "#FF0000", 0, 50},
		{"pure green", 0, 1, 0, "#00FF00", 120, 50},
		{"pure blue", 0, 0, 1, "#0000FF", 240, 50},
		{"white", 1, 1, 1, "#FFFFFF", 0, 100},
		{"black", 0, 0, 0, "#000000", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := SampleColor(createFilledBuffer(2, 2, tt.r, tt.g, tt.b), 0, 0)
			if err != nil {
				t.Fatalf("SampleColor failed: %v", err)
			}
			if result.Hex != tt.wantHex {
				t.Errorf("Hex: got %s, want %s", result.Hex, tt.wantHex)
			}
			if result.HSL.H != tt.wantHue || result.HSL.L != tt.wantL {
				t.Errorf("HSL: got %+v, want H=%d L=%d", result.HSL, tt.wantHue, tt.wantL)
			}
		})
	}
}

func TestSampleColor_OutOfRangeValuesClip(t *testing.T) {
	result, err := SampleColor(createFilledBuffer(1, 1, 3.5, -0.2, 0.5), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.RGB.R != 255 || result.RGB.G != 0 {
		t.Errorf("RGB: got %+v", result.RGB)
	}
	if result.Value[0] != 3.5 {
		t.Errorf("Value should keep the stored float: %v", result.Value)
	}
}

func TestSampleColor_OutOfBounds(t *testing.T) {
	buf := createFilledBuffer(10, 10, 0.5, 0.5, 0.5)

	tests := []struct {
		name string
		x, y int
	}{
		{"negative x", -1, 5},
		{"negative y", 5, -1},
		{"x too large", 10, 5},
		{"y too large", 5, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := SampleColor(buf, tt.x, tt.y); err == nil {
				t.Errorf("expected error for (%d,%d)", tt.x, tt.y)
			}
		})
	}
}

func TestSampleColorsMulti(t *testing.T) {
	buf := createPatternBuffer(10, 10)
	points := []LabeledPoint{
		{X: 1, Y: 1, Label: "red"},
		{X: 8, Y: 1, Label: "green"},
		{X: 1, Y: 8},
		{X: 8, Y: 8, Label: "white"},
	}

	result, err := SampleColorsMulti(buf, points)
	if err != nil {
		t.Fatalf("SampleColorsMulti failed: %v", err)
	}
	want := []string{"#FF0000", "#00FF00", "#0000FF", "#FFFFFF"}
	if len(result.Samples) != len(want) {
		t.Fatalf("got %d samples, want %d", len(result.Samples), len(want))
	}
	for i, s := range result.Samples {
		if s.Color.Hex != want[i] || s.Label != points[i].Label {
			t.Errorf("sample %d: got %s %q, want %s %q", i, s.Color.Hex, s.Label, want[i], points[i].Label)
		}
	}
}

func TestSampleColorsMulti_OutOfBounds(t *testing.T) {
	buf := createPatternBuffer(10, 10)
	_, err := SampleColorsMulti(buf, []LabeledPoint{{X: 1, Y: 1}, {X: 50, Y: 1}})
	if err == nil {
		t.Error("expected error when any point is out of bounds")
	}
}
