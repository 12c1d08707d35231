package develop

import (
	"fmt"
	"log"
	"math"

	"github.com/ironsheep/raw-alchemy/internal/colormath"
	"github.com/ironsheep/raw-alchemy/internal/imaging"
	"github.com/ironsheep/raw-alchemy/internal/lens"
	"github.com/ironsheep/raw-alchemy/internal/lut"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

// Stage names one step of the operator chain.
type Stage string

const (
	StageLens               Stage = "lens"
	StageExposure           Stage = "exposure"
	StageWhiteBalance       Stage = "white_balance"
	StageHighlightShadow    Stage = "highlight_shadow"
	StageSaturationContrast Stage = "saturation_contrast"
	StageLogEncode          Stage = "log_encode"
	StageLUT                Stage = "lut"
	StageDisplay            Stage = "display"
)

// StageOrder is the fixed order of the chain. Stages may be skipped but
// never reordered.
var StageOrder = []Stage{
	StageLens,
	StageExposure,
	StageWhiteBalance,
	StageHighlightShadow,
	StageSaturationContrast,
	StageLogEncode,
	StageLUT,
	StageDisplay,
}

// Decoder turns a source file into a linear working-space buffer.
type Decoder interface {
	Decode(path string, opts imaging.DecodeOptions) (*imaging.Decoded, error)
}

// LUTLoader resolves a LUT reference to a table. *lut.Cache implements it.
type LUTLoader interface {
	Load(path string) (lut.LUT, error)
}

// LUTLoaderFunc adapts a function to LUTLoader.
type LUTLoaderFunc func(path string) (lut.LUT, error)

// Load calls f.
func (f LUTLoaderFunc) Load(path string) (lut.LUT, error) { return f(path) }

// Outcome describes one pass of the chain.
type Outcome struct {
	// Gain is the exposure multiplier that was applied.
	Gain float64

	// LogSpace is the log encoding applied, or empty for a linear result.
	LogSpace string

	// Stages lists the stages that ran, in order.
	Stages []Stage

	// Warnings collects recoverable problems (an unreadable LUT).
	Warnings []string
}

// Chain runs the fixed operator sequence. A zero Chain uses no LUT loader
// and logs through the standard logger.
type Chain struct {
	Corrector lens.Corrector
	LUTs      LUTLoader

	// Logf receives warnings. Defaults to log.Printf.
	Logf func(format string, args ...interface{})

	// Observe, when set, is called as each stage starts.
	Observe func(Stage)
}

func (c *Chain) logf(format string, args ...interface{}) {
	if c.Logf != nil {
		c.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (c *Chain) enter(o *Outcome, s Stage) {
	if o != nil {
		o.Stages = append(o.Stages, s)
	}
	if c.Observe != nil {
		c.Observe(s)
	}
}

// Correct runs lens correction for key. A disabled key, or a chain without
// a corrector, returns src itself. src is never modified.
func (c *Chain) Correct(src *imaging.Buffer, exif imaging.Exif, key LensKey) (*imaging.Buffer, error) {
	if !key.Enabled || c.Corrector == nil {
		return src, nil
	}
	c.enter(nil, StageLens)
	out, err := c.Corrector.Correct(src, exif, key.Database)
	if err != nil {
		return nil, fmt.Errorf("lens correction: %w", err)
	}
	if out == nil {
		return src, nil
	}
	return out, nil
}

// Develop applies exposure through LUT to buf in place. The buffer must be
// linear in its tagged space; on return it is either linear in the same
// space or log-encoded in the target gamut.
func (c *Chain) Develop(buf *imaging.Buffer, p Params) (*Outcome, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	out := &Outcome{Gain: 1}
	space := buf.Space

	// Exposure.
	c.enter(out, StageExposure)
	switch p.ExposureMode {
	case ExposureManual:
		out.Gain = colormath.ClampGain(math.Exp2(p.Exposure))
		imaging.ApplyGain(buf, out.Gain)
	default:
		g, err := metering.Apply(buf, p.Metering)
		if err != nil {
			return nil, err
		}
		out.Gain = g
	}

	if p.WBTemp != 0 || p.WBTint != 0 {
		c.enter(out, StageWhiteBalance)
		imaging.ApplyWhiteBalance(buf, p.WBTemp, p.WBTint)
	}

	if p.Highlight != 0 || p.Shadow != 0 {
		c.enter(out, StageHighlightShadow)
		if err := imaging.ApplyHighlightShadow(buf, p.Highlight, p.Shadow, space); err != nil {
			return nil, err
		}
	}

	if p.Saturation != 1 || p.Contrast != 1 {
		c.enter(out, StageSaturationContrast)
		if err := imaging.ApplySaturationAndContrast(buf, p.Saturation, p.Contrast, space); err != nil {
			return nil, err
		}
	}

	ls, ok, err := colormath.LookupLogSpace(p.LogSpace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	if ok {
		c.enter(out, StageLogEncode)
		m, err := colormath.GamutMatrix(space, ls.Gamut)
		if err != nil {
			return nil, err
		}
		colormath.ApplyMatrix(buf.Pix, m)
		colormath.EncodeLogCurve(buf.Pix, ls.Curve)
		buf.Space = ls.Gamut
		out.LogSpace = ls.Name
	}

	if p.LUTPath != "" {
		c.enter(out, StageLUT)
		c.applyLUT(buf, p.LUTPath, out)
	}
	return out, nil
}

// applyLUT samples the table at path. A missing loader or an unreadable
// file leaves buf untouched and records a warning.
func (c *Chain) applyLUT(buf *imaging.Buffer, path string, out *Outcome) {
	if c.LUTs == nil {
		out.Warnings = append(out.Warnings, fmt.Sprintf("LUT %s ignored: no LUT loader configured", path))
		return
	}
	table, err := c.LUTs.Load(path)
	if err != nil {
		c.logf("LUT load failed, continuing without it: %v", err)
		out.Warnings = append(out.Warnings, fmt.Sprintf("LUT not applied: %v", err))
		return
	}
	lut.Apply(buf, table)
}

// Render applies the display transform to buf in place. Linear results are
// converted to sRGB with its transfer curve; log-encoded results are
// already code values and are only clipped. Either way the output is in
// [0,1].
func (c *Chain) Render(buf *imaging.Buffer, o *Outcome) error {
	c.enter(o, StageDisplay)
	if o != nil && o.LogSpace != "" {
		colormath.Clamp(buf.Pix, 0, 1)
		return nil
	}
	return imaging.ToDisplay(buf)
}

// Run corrects src for lens falloff and runs the full chain on a private
// copy, leaving src untouched. It is the uncached path used for export.
func (c *Chain) Run(src *imaging.Buffer, exif imaging.Exif, p Params) (*imaging.Buffer, *Outcome, error) {
	corrected, err := c.Correct(src, exif, p.LensKey())
	if err != nil {
		return nil, nil, err
	}
	buf := corrected.Clone()

	out, err := c.Develop(buf, p)
	if err != nil {
		return nil, nil, err
	}
	if p.LensKey().Enabled && c.Corrector != nil {
		out.Stages = append([]Stage{StageLens}, out.Stages...)
	}
	if err := c.Render(buf, out); err != nil {
		return nil, nil, err
	}
	return buf, out, nil
}
