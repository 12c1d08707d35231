package lens

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

const testDB = `profiles:
  - make: SONY
    lens: FE 24-70mm F2.8 GM
    vignetting:
      - focal: 24
        aperture: 2.8
        k1: -0.5
      - focal: 70
        aperture: 2.8
        k1: -0.2
  - make: SONY
    model: ILCE-7M3
    lens: FE 24-70mm F2.8 GM
    vignetting:
      - focal: 24
        aperture: 2.8
        k1: -0.4
`

func writeDB(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lenses.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write database: %v", err)
	}
	return path
}

func sonyExif() imaging.Exif {
	return imaging.Exif{Make: "Sony", Model: "ILCE-7M3", Lens: "FE 24-70mm F2.8 GM", FocalLength: 28, Aperture: 4}
}

func TestDatabase_Find(t *testing.T) {
	db, err := LoadDatabase(writeDB(t, testDB))
	if err != nil {
		t.Fatalf("LoadDatabase failed: %v", err)
	}

	tests := []struct {
		name   string
		exif   imaging.Exif
		wantK1 float64
		found  bool
	}{
		{"exact body wins", sonyExif(), -0.4, true},
		{"any body fallback", imaging.Exif{Make: "SONY", Model: "ILCE-1", Lens: "fe 24-70mm f2.8 gm", FocalLength: 24}, -0.5, true},
		{"other make", imaging.Exif{Make: "Nikon", Lens: "FE 24-70mm F2.8 GM"}, 0, false},
		{"no lens", imaging.Exif{Make: "SONY"}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := db.Find(tt.exif)
			if (p != nil) != tt.found {
				t.Fatalf("found: got %v, want %v", p != nil, tt.found)
			}
			if p == nil {
				return
			}
			k, _ := p.Coeffs(tt.exif.FocalLength, tt.exif.Aperture)
			if k.K1 != tt.wantK1 {
				t.Errorf("k1: got %v, want %v", k.K1, tt.wantK1)
			}
		})
	}
}

func TestProfile_CoeffsNearestFocal(t *testing.T) {
	p := Profile{Vignetting: []VignetteCoeffs{{Focal: 24, K1: 1}, {Focal: 70, K1: 2}}}
	if k, _ := p.Coeffs(60, 0); k.K1 != 2 {
		t.Errorf("got k1=%v, want 2", k.K1)
	}
	if _, ok := (&Profile{}).Coeffs(24, 2.8); ok {
		t.Error("empty profile should report no coefficients")
	}
}

func TestVignetting_Correct(t *testing.T) {
	v := NewVignetting(writeDB(t, testDB))
	buf := imaging.NewFilled(9, 9, colormath.ProPhoto, 0.5)

	out, err := v.Correct(buf, sonyExif(), "")
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if out == buf {
		t.Fatal("Correct should return a new buffer when a profile applies")
	}
	if buf.Pix[0] != 0.5 {
		t.Error("input buffer was modified")
	}

	center := out.Pix[(4*9+4)*3]
	corner := out.Pix[0]
	if math.Abs(float64(center)-0.5) > 1e-6 {
		t.Errorf("center: got %f, want 0.5", center)
	}
	if corner <= center {
		t.Errorf("corner %f should be brightened above center %f", corner, center)
	}
}

func TestVignetting_PassThrough(t *testing.T) {
	buf := imaging.NewFilled(4, 4, colormath.ProPhoto, 0.3)

	tests := []struct {
		name string
		v    *Vignetting
		exif imaging.Exif
	}{
		{"no database", NewVignetting(""), sonyExif()},
		{"empty exif", NewVignetting(writeDB(t, testDB)), imaging.Exif{}},
		{"unknown lens", NewVignetting(writeDB(t, testDB)), imaging.Exif{Make: "SONY", Lens: "Other"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := tt.v.Correct(buf, tt.exif, "")
			if err != nil {
				t.Fatalf("Correct failed: %v", err)
			}
			if out != buf {
				t.Error("expected the input buffer back unchanged")
			}
		})
	}
}

func TestVignetting_CustomDatabaseOverrides(t *testing.T) {
	custom := writeDB(t, `profiles:
  - lens: FE 24-70mm F2.8 GM
    vignetting:
      - focal: 24
        k1: -0.9
`)
	v := NewVignetting("")
	out, err := v.Correct(imaging.NewFilled(5, 5, colormath.ProPhoto, 0.2), sonyExif(), custom)
	if err != nil {
		t.Fatalf("Correct failed: %v", err)
	}
	if out.Pix[0] <= 0.2 {
		t.Errorf("corner not corrected: %f", out.Pix[0])
	}
}

func TestVignetting_BadDatabase(t *testing.T) {
	v := NewVignetting(writeDB(t, "profiles: [this is: not valid"))
	_, err := v.Correct(imaging.NewFilled(2, 2, colormath.ProPhoto, 1), sonyExif(), "")
	if !errors.Is(err, ErrDatabase) {
		t.Errorf("got %v, want ErrDatabase", err)
	}
}
