package imaging

import (
	"math"
	"testing"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
)

// newGradient builds a w x h buffer whose pixels span a range of colors and
// intensities, including some above 1.0.
func newGradient(t *testing.T, w, h int) *Buffer {
	t.Helper()
	buf := NewBuffer(w, h, colormath.ProPhoto)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			fx := float32(x+1) / float32(w)
			fy := float32(y+1) / float32(h)
			buf.Set(x, y, 2*fx, fx*fy, 0.5*fy)
		}
	}
	return buf
}

func buffersClose(t *testing.T, got, want *Buffer, tol float64) {
	t.Helper()
	if got.Width != want.Width || got.Height != want.Height {
		t.Fatalf("size: got %dx%d, want %dx%d", got.Width, got.Height, want.Width, want.Height)
	}
	for i := range want.Pix {
		if math.Abs(float64(got.Pix[i]-want.Pix[i])) > tol {
			t.Fatalf("Pix[%d]: got %f, want %f", i, got.Pix[i], want.Pix[i])
		}
	}
}

func TestApplyGain_ReciprocalRoundTrip(t *testing.T) {
	gains := []float64{2, 0.5, 3.7, 1.0 / 1024, 1024}
	for _, g := range gains {
		buf := newGradient(t, 8, 6)
		orig := buf.Clone()

		ApplyGain(buf, g)
		ApplyGain(buf, 1/g)
		buffersClose(t, buf, orig, 1e-5)
	}
}

func TestApplyGain_OneStop(t *testing.T) {
	buf := NewFilled(4, 4, colormath.ProPhoto, 0.18)
	ApplyGain(buf, math.Exp2(1))
	for i, v := range buf.Pix {
		if math.Abs(float64(v)-0.36) > 1e-6 {
			t.Fatalf("Pix[%d]: got %f, want 0.36", i, v)
		}
	}
}

func TestApplyGain_CompactsOversizedBuffer(t *testing.T) {
	buf := NewFilled(2, 2, colormath.ProPhoto, 1)
	buf.Pix = append(buf.Pix, 5, 5, 5)

	ApplyGain(buf, 2)

	if len(buf.Pix) != 12 {
		t.Fatalf("len(Pix): got %d, want 12", len(buf.Pix))
	}
	for i, v := range buf.Pix {
		if v != 2 {
			t.Errorf("Pix[%d]: got %f, want 2", i, v)
		}
	}
}

func TestApplyWhiteBalance_ZeroIsNoOp(t *testing.T) {
	buf := newGradient(t, 5, 5)
	orig := buf.Clone()
	ApplyWhiteBalance(buf, 0, 0)
	buffersClose(t, buf, orig, 0)
}

func TestWhiteBalanceMultipliers(t *testing.T) {
	tests := []struct {
		name       string
		temp, tint float64
		check      func(r, g, b float64) bool
	}{
		{"warm raises red lowers blue", 50, 0, func(r, g, b float64) bool { return r > 1 && b < 1 && g == 1 }},
		{"cool lowers red raises blue", -50, 0, func(r, g, b float64) bool { return r < 1 && b > 1 && g == 1 }},
		{"magenta tint lowers green", 0, 40, func(r, g, b float64) bool { return g < 1 && r == 1 && b == 1 }},
		{"full range is 0.3 stops", 100, 0, func(r, g, b float64) bool { return math.Abs(math.Log2(r)-0.3) < 1e-12 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := WhiteBalanceMultipliers(tt.temp, tt.tint)
			if !tt.check(r, g, b) {
				t.Errorf("got (%f, %f, %f)", r, g, b)
			}
		})
	}
}

func TestWhiteBalanceMultipliers_SymmetricAndMonotonic(t *testing.T) {
	prev := 0.0
	for temp := -100.0; temp <= 100; temp += 10 {
		r, _, b := WhiteBalanceMultipliers(temp, 0)
		nr, _, nb := WhiteBalanceMultipliers(-temp, 0)
		if math.Abs(r*nr-1) > 1e-12 || math.Abs(b*nb-1) > 1e-12 {
			t.Errorf("temp %v: multipliers not reciprocal around zero", temp)
		}
		if r <= prev {
			t.Errorf("temp %v: red multiplier %f not increasing", temp, r)
		}
		prev = r
	}
}

func TestApplyHighlightShadow_MidGrayUntouched(t *testing.T) {
	buf := NewFilled(3, 3, colormath.ProPhoto, float32(colormath.MidGray))
	if err := ApplyHighlightShadow(buf, 100, -100, colormath.ProPhoto); err != nil {
		t.Fatalf("ApplyHighlightShadow failed: %v", err)
	}
	for i, v := range buf.Pix {
		if math.Abs(float64(v)-colormath.MidGray) > 1e-6 {
			t.Fatalf("Pix[%d]: got %f, want 0.18", i, v)
		}
	}
}

func TestApplyHighlightShadow_Direction(t *testing.T) {
	tests := []struct {
		name              string
		value             float32
		highlight, shadow float64
		wantBrighter      bool
	}{
		{"negative highlight darkens bright pixel", 1.5, -60, 0, false},
		{"positive highlight brightens bright pixel", 1.5, 60, 0, true},
		{"positive shadow lifts dark pixel", 0.01, 0, 60, true},
		{"negative shadow crushes dark pixel", 0.01, 0, -60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := NewFilled(1, 1, colormath.ProPhoto, tt.value)
			if err := ApplyHighlightShadow(buf, tt.highlight, tt.shadow, colormath.ProPhoto); err != nil {
				t.Fatalf("ApplyHighlightShadow failed: %v", err)
			}
			if got := buf.Pix[1] > tt.value; got != tt.wantBrighter {
				t.Errorf("got %f from %f, wantBrighter=%v", buf.Pix[1], tt.value, tt.wantBrighter)
			}
		})
	}
}

func TestHighlightShadowStops_SoftMask(t *testing.T) {
	// Just above mid-gray the highlight mask is barely engaged.
	near := HighlightShadowStops(colormath.MidGray*1.05, 100, 0)
	far := HighlightShadowStops(colormath.MidGray*32, 100, 0)
	if near <= 0 || near >= 0.01 {
		t.Errorf("near mid-gray: got %f stops, want small positive", near)
	}
	if math.Abs(far-2) > 1e-12 {
		t.Errorf("five stops over: got %f, want full 2 stops", far)
	}
}

func TestApplySaturationAndContrast_IdentityAtOne(t *testing.T) {
	buf := newGradient(t, 6, 4)
	orig := buf.Clone()
	if err := ApplySaturationAndContrast(buf, 1, 1, colormath.ProPhoto); err != nil {
		t.Fatalf("ApplySaturationAndContrast failed: %v", err)
	}
	buffersClose(t, buf, orig, 0)
}

func TestApplySaturationAndContrast_ZeroSaturationIsGray(t *testing.T) {
	buf := newGradient(t, 4, 4)
	if err := ApplySaturationAndContrast(buf, 0, 1, colormath.ProPhoto); err != nil {
		t.Fatalf("ApplySaturationAndContrast failed: %v", err)
	}
	for p := 0; p < buf.Len(); p++ {
		r, g, b := buf.Pix[p*3], buf.Pix[p*3+1], buf.Pix[p*3+2]
		if math.Abs(float64(r-g)) > 1e-5 || math.Abs(float64(g-b)) > 1e-5 {
			t.Fatalf("pixel %d not neutral: (%f,%f,%f)", p, r, g, b)
		}
	}
}

func TestApplySaturationAndContrast_ContrastPivotsAtMidGray(t *testing.T) {
	buf := NewBuffer(3, 1, colormath.ProPhoto)
	buf.Set(0, 0, 0.18, 0.18, 0.18)
	buf.Set(1, 0, 0.72, 0.72, 0.72)
	buf.Set(2, 0, 0.045, 0.045, 0.045)

	if err := ApplySaturationAndContrast(buf, 1, 1.5, colormath.ProPhoto); err != nil {
		t.Fatalf("ApplySaturationAndContrast failed: %v", err)
	}

	if math.Abs(float64(buf.Pix[0])-0.18) > 1e-5 {
		t.Errorf("mid-gray moved: %f", buf.Pix[0])
	}
	// Two stops over becomes three stops over at contrast 1.5.
	if want := 0.18 * 8; math.Abs(float64(buf.Pix[3])-want) > 1e-4 {
		t.Errorf("highlight: got %f, want %f", buf.Pix[3], want)
	}
	if want := 0.18 / 8; math.Abs(float64(buf.Pix[6])-want) > 1e-5 {
		t.Errorf("shadow: got %f, want %f", buf.Pix[6], want)
	}
}

func TestLuminance_NeutralEqualsValue(t *testing.T) {
	buf := NewFilled(2, 2, colormath.ProPhoto, 0.5)
	y, err := Luminance(buf, colormath.ProPhoto)
	if err != nil {
		t.Fatalf("Luminance failed: %v", err)
	}
	for i, v := range y {
		if math.Abs(v-0.5) > 1e-6 {
			t.Errorf("y[%d]: got %f, want 0.5", i, v)
		}
	}
}

func TestToDisplay_Retags(t *testing.T) {
	buf := NewFilled(2, 2, colormath.ProPhoto, 0.18)
	if err := ToDisplay(buf); err != nil {
		t.Fatalf("ToDisplay failed: %v", err)
	}
	if buf.Space != colormath.SRGB {
		t.Errorf("Space: got %v, want sRGB", buf.Space)
	}
	want := colormath.EncodeSRGB(0.18)
	if math.Abs(float64(buf.Pix[0])-want) > 1e-3 {
		t.Errorf("Pix[0]: got %f, want %f", buf.Pix[0], want)
	}
}
