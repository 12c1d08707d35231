package develop

import (
	"errors"
	"fmt"
	"math"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

// ErrInvalidParams is returned when a Params value fails validation.
var ErrInvalidParams = errors.New("develop: invalid parameters")

// ExposureMode selects metered or manual exposure.
type ExposureMode string

const (
	ExposureAuto   ExposureMode = "auto"
	ExposureManual ExposureMode = "manual"
)

// Slider ranges accepted by Validate.
const (
	MaxExposureEV = 5.0
	MaxOffset     = 100.0
	MaxSatCon     = 3.0
)

// Params holds every user-tunable adjustment. It is a plain value: copies
// are independent and two Params are equal exactly when every field is.
type Params struct {
	ExposureMode ExposureMode  `json:"exposure_mode" yaml:"exposure_mode"`
	Exposure     float64       `json:"exposure" yaml:"exposure"`
	Metering     metering.Mode `json:"metering" yaml:"metering"`

	WBTemp float64 `json:"wb_temp" yaml:"wb_temp"`
	WBTint float64 `json:"wb_tint" yaml:"wb_tint"`

	Highlight float64 `json:"highlight" yaml:"highlight"`
	Shadow    float64 `json:"shadow" yaml:"shadow"`

	Saturation float64 `json:"saturation" yaml:"saturation"`
	Contrast   float64 `json:"contrast" yaml:"contrast"`

	LogSpace string `json:"log_space" yaml:"log_space"`
	LUTPath  string `json:"lut_path,omitempty" yaml:"lut_path,omitempty"`

	LensCorrect  bool   `json:"lens_correct" yaml:"lens_correct"`
	LensDatabase string `json:"lens_database,omitempty" yaml:"lens_database,omitempty"`
}

// DefaultParams returns the adjustments a fresh session starts from.
func DefaultParams() Params {
	return Params{
		ExposureMode: ExposureAuto,
		Metering:     metering.Matrix,
		Saturation:   1.25,
		Contrast:     1.1,
		LogSpace:     colormath.NoLogSpace,
		LensCorrect:  true,
	}
}

// NeutralParams returns adjustments that leave a buffer unchanged apart from
// average metering.
func NeutralParams() Params {
	return Params{
		ExposureMode: ExposureAuto,
		Metering:     metering.Average,
		Saturation:   1,
		Contrast:     1,
		LogSpace:     colormath.NoLogSpace,
	}
}

// LensKey is the subset of Params that determines the lens-corrected buffer.
type LensKey struct {
	Enabled  bool
	Database string
}

// LensKey returns the lens cache key of p. The database path only matters
// while correction is enabled.
func (p Params) LensKey() LensKey {
	if !p.LensCorrect {
		return LensKey{}
	}
	return LensKey{Enabled: true, Database: p.LensDatabase}
}

// Validate rejects unknown names and out-of-range or non-finite values.
func (p Params) Validate() error {
	switch p.ExposureMode {
	case ExposureAuto:
		if _, err := metering.ParseMode(string(p.Metering)); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	case ExposureManual:
	default:
		return fmt.Errorf("%w: exposure mode %q", ErrInvalidParams, p.ExposureMode)
	}

	if _, _, err := colormath.LookupLogSpace(p.LogSpace); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}

	ranges := []struct {
		name   string
		v      float64
		lo, hi float64
	}{
		{"exposure", p.Exposure, -MaxExposureEV, MaxExposureEV},
		{"wb_temp", p.WBTemp, -MaxOffset, MaxOffset},
		{"wb_tint", p.WBTint, -MaxOffset, MaxOffset},
		{"highlight", p.Highlight, -MaxOffset, MaxOffset},
		{"shadow", p.Shadow, -MaxOffset, MaxOffset},
		{"saturation", p.Saturation, 0, MaxSatCon},
		{"contrast", p.Contrast, 0, MaxSatCon},
	}
	for _, r := range ranges {
		if math.IsNaN(r.v) || r.v < r.lo || r.v > r.hi {
			return fmt.Errorf("%w: %s %v outside [%v, %v]", ErrInvalidParams, r.name, r.v, r.lo, r.hi)
		}
	}
	return nil
}
