package colormath

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUnknownLogSpace is returned for a log space name outside the closed set.
var ErrUnknownLogSpace = errors.New("colormath: unknown log space")

// LogCurve identifies a vendor log transfer function.
type LogCurve int

const (
	CurveNone LogCurve = iota
	FLog
	FLog2
	NLog
	VLog
	SLog3
	ArriLogC3
	ArriLogC4
	CanonLog3
	Log3G10
	DLog
)

// LogSpace pairs a log curve with the gamut it is defined against.
type LogSpace struct {
	Name  string
	Gamut Space
	Curve LogCurve
}

// NoLogSpace is the name selecting the linear (display-transformed) path.
const NoLogSpace = "None"

var logSpaces = map[string]LogSpace{
	"F-Log":       {"F-Log", Rec2020, FLog},
	"F-Log2":      {"F-Log2", Rec2020, FLog2},
	"N-Log":       {"N-Log", Rec2020, NLog},
	"V-Log":       {"V-Log", VGamut, VLog},
	"S-Log3":      {"S-Log3", SGamut3, SLog3},
	"S-Log3.Cine": {"S-Log3.Cine", SGamut3Cine, SLog3},
	"Arri LogC3":  {"Arri LogC3", ArriWideGamut3, ArriLogC3},
	"Arri LogC4":  {"Arri LogC4", ArriWideGamut4, ArriLogC4},
	"Canon Log 3": {"Canon Log 3", CinemaGamut, CanonLog3},
	"Log3G10":     {"Log3G10", REDWideGamut, Log3G10},
	"D-Log":       {"D-Log", DGamut, DLog},
}

// LookupLogSpace resolves a user-facing log space name. The empty string and
// NoLogSpace report ok=false without error.
func LookupLogSpace(name string) (LogSpace, bool, error) {
	if name == "" || name == NoLogSpace {
		return LogSpace{}, false, nil
	}
	ls, found := logSpaces[name]
	if !found {
		return LogSpace{}, false, fmt.Errorf("%w: %q", ErrUnknownLogSpace, name)
	}
	return ls, true, nil
}

// LogSpaceNames lists the selectable log spaces in sorted order.
func LogSpaceNames() []string {
	names := make([]string, 0, len(logSpaces))
	for n := range logSpaces {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Encode maps a scene-linear value through the curve. Inputs are expected to
// be floored to Epsilon already.
func (c LogCurve) Encode(x float64) float64 {
	switch c {
	case FLog:
		if x >= 0.00089 {
			return 0.344676*math.Log10(0.555556*x+0.009468) + 0.790453
		}
		return 8.735631*x + 0.092864
	case FLog2:
		if x >= 0.000889 {
			return 0.245281*math.Log10(5.555556*x+0.064829) + 0.384316
		}
		return 8.799461*x + 0.092864
	case NLog:
		if x < 0.328 {
			return 650.0 / 1023.0 * math.Cbrt(x+0.0075)
		}
		return 150.0/1023.0*math.Log(x) + 619.0/1023.0
	case VLog:
		if x < 0.01 {
			return 5.6*x + 0.125
		}
		return 0.241514*math.Log10(x+0.00873) + 0.598206
	case SLog3:
		if x >= 0.01125 {
			return (420.0 + math.Log10((x+0.01)/(0.18+0.01))*261.5) / 1023.0
		}
		return (x*(171.2102946929-95.0)/0.01125 + 95.0) / 1023.0
	case ArriLogC3:
		if x > 0.010591 {
			return 0.247190*math.Log10(5.555556*x+0.052272) + 0.385537
		}
		return 5.367655*x + 0.092809
	case ArriLogC4:
		return logC4(x)
	case CanonLog3:
		return canonLog3(x)
	case Log3G10:
		x += 0.01
		if x < 0 {
			return x * 15.1927
		}
		return 0.224282 * math.Log10(x*155.975327+1)
	case DLog:
		if x <= 0.0078 {
			return 6.025*x + 0.0929
		}
		return math.Log10(x*0.9892+0.0108)*0.256663 + 0.584555
	default:
		return x
	}
}

var (
	logC4A = (math.Exp2(18) - 16) / 117.45
	logC4B = (1023.0 - 95.0) / 1023.0
	logC4C = 95.0 / 1023.0
	logC4S = (7 * math.Ln2 * math.Exp2(7-14*logC4C/logC4B)) / (logC4A * logC4B)
	logC4T = (math.Exp2(14*(-logC4C/logC4B)+6) - 64) / logC4A
)

func logC4(x float64) float64 {
	if x >= logC4T {
		return (math.Log2(logC4A*x+64)-6)/14*logC4B + logC4C
	}
	return (x - logC4T) / logC4S
}

// canonLog3 takes scene reflection input and returns a 10-bit legal-range
// normalized code value.
func canonLog3(x float64) float64 {
	x /= 0.9
	var v float64
	switch {
	case x < -0.014:
		v = -0.36726845*math.Log10(-x*14.98325+1) + 0.12783901
	case x <= 0.014:
		v = 1.9754798*x + 0.12512219
	default:
		v = 0.36726845*math.Log10(x*14.98325+1) + 0.12240537
	}
	return (876*v + 64) / 1023
}
