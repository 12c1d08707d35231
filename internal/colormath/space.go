package colormath

import (
	"fmt"
	"strings"
)

// Chromaticity is a CIE 1931 xy coordinate.
type Chromaticity struct {
	X, Y float64
}

// Space identifies an RGB color space by its primaries and white point.
type Space int

const (
	SpaceUnknown Space = iota
	// ProPhoto is the linear working space every pre-log operator runs in.
	ProPhoto
	// SRGB is Rec.709 primaries with a D65 white; the display space.
	SRGB
	Rec2020
	SGamut3
	SGamut3Cine
	VGamut
	ArriWideGamut3
	ArriWideGamut4
	CinemaGamut
	REDWideGamut
	DGamut
)

// WorkingSpace is the space decoded buffers are delivered in.
const WorkingSpace = ProPhoto

var (
	whiteD65 = Chromaticity{0.3127, 0.3290}
	whiteD50 = Chromaticity{0.3457, 0.3585}
)

type spaceDef struct {
	name  string
	r     Chromaticity
	g     Chromaticity
	b     Chromaticity
	white Chromaticity
}

var spaceDefs = map[Space]spaceDef{
	ProPhoto:       {"ProPhoto RGB", Chromaticity{0.7347, 0.2653}, Chromaticity{0.1596, 0.8404}, Chromaticity{0.0366, 0.0001}, whiteD50},
	SRGB:           {"sRGB", Chromaticity{0.64, 0.33}, Chromaticity{0.30, 0.60}, Chromaticity{0.15, 0.06}, whiteD65},
	Rec2020:        {"ITU-R BT.2020", Chromaticity{0.708, 0.292}, Chromaticity{0.170, 0.797}, Chromaticity{0.131, 0.046}, whiteD65},
	SGamut3:        {"S-Gamut3", Chromaticity{0.730, 0.280}, Chromaticity{0.140, 0.855}, Chromaticity{0.100, -0.050}, whiteD65},
	SGamut3Cine:    {"S-Gamut3.Cine", Chromaticity{0.766, 0.275}, Chromaticity{0.225, 0.800}, Chromaticity{0.089, -0.087}, whiteD65},
	VGamut:         {"V-Gamut", Chromaticity{0.730, 0.280}, Chromaticity{0.165, 0.840}, Chromaticity{0.100, -0.030}, whiteD65},
	ArriWideGamut3: {"ARRI Wide Gamut 3", Chromaticity{0.6840, 0.3130}, Chromaticity{0.2210, 0.8480}, Chromaticity{0.0861, -0.1020}, whiteD65},
	ArriWideGamut4: {"ARRI Wide Gamut 4", Chromaticity{0.7347, 0.2653}, Chromaticity{0.1424, 0.8576}, Chromaticity{0.0991, -0.0308}, whiteD65},
	CinemaGamut:    {"Cinema Gamut", Chromaticity{0.740, 0.270}, Chromaticity{0.170, 1.140}, Chromaticity{0.080, -0.100}, whiteD65},
	REDWideGamut:   {"REDWideGamutRGB", Chromaticity{0.780308, 0.304253}, Chromaticity{0.121595, 1.493994}, Chromaticity{0.095612, -0.084589}, whiteD65},
	DGamut:         {"DJI D-Gamut", Chromaticity{0.71, 0.31}, Chromaticity{0.21, 0.88}, Chromaticity{0.09, -0.08}, whiteD65},
}

// String returns the conventional name of the space.
func (s Space) String() string {
	if d, ok := spaceDefs[s]; ok {
		return d.name
	}
	return "unknown"
}

// Primaries returns the red, green and blue chromaticities and the white point.
func (s Space) Primaries() (r, g, b, white Chromaticity, err error) {
	d, ok := spaceDefs[s]
	if !ok {
		return r, g, b, white, fmt.Errorf("colormath: no primaries for space %d", int(s))
	}
	return d.r, d.g, d.b, d.white, nil
}

// ParseSpace resolves a space by name, ignoring case.
func ParseSpace(name string) (Space, error) {
	for s, d := range spaceDefs {
		if strings.EqualFold(d.name, name) {
			return s, nil
		}
	}
	return SpaceUnknown, fmt.Errorf("colormath: unknown color space %q", name)
}
