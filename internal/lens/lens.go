// Package lens corrects lens vignetting using a YAML profile database.
//
// The pipeline treats lens correction as an opaque capability behind the
// Corrector interface. Vignetting is the default implementation: it looks
// up a profile by camera make, model and lens name and divides out a radial
// polynomial falloff.
//
// # Database Format
//
//	profiles:
//	  - make: SONY
//	    model: ILCE-7M3          # optional; empty matches any body
//	    lens: FE 24-70mm F2.8 GM
//	    vignetting:
//	      - focal: 24
//	        aperture: 2.8
//	        k1: -0.42
//	        k2: 0.12
//	        k3: -0.02
//
// The falloff at normalized radius r (1 at the corner) is
// 1 + k1·r² + k2·r⁴ + k3·r⁶; the correction multiplies by its inverse. The
// entry closest in focal length, then aperture, is used.
package lens

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/parallel"
	"gopkg.in/yaml.v2"

	"github.com/ironsheep/raw-alchemy/internal/imaging"
)

// ErrDatabase is returned when a profile database cannot be read.
var ErrDatabase = errors.New("lens: database unreadable")

// Corrector applies lens correction. Implementations must not modify buf;
// they return either buf itself (nothing to correct) or a new buffer.
type Corrector interface {
	Correct(buf *imaging.Buffer, exif imaging.Exif, database string) (*imaging.Buffer, error)
}

// CorrectorFunc adapts a function to Corrector.
type CorrectorFunc func(buf *imaging.Buffer, exif imaging.Exif, database string) (*imaging.Buffer, error)

// Correct calls f.
func (f CorrectorFunc) Correct(buf *imaging.Buffer, exif imaging.Exif, database string) (*imaging.Buffer, error) {
	return f(buf, exif, database)
}

// VignetteCoeffs is one calibration point of a profile.
type VignetteCoeffs struct {
	Focal    float64 `yaml:"focal"`
	Aperture float64 `yaml:"aperture"`
	K1       float64 `yaml:"k1"`
	K2       float64 `yaml:"k2"`
	K3       float64 `yaml:"k3"`
}

// Profile describes one camera/lens combination.
type Profile struct {
	Make       string           `yaml:"make"`
	Model      string           `yaml:"model"`
	Lens       string           `yaml:"lens"`
	Vignetting []VignetteCoeffs `yaml:"vignetting"`
}

// Database is a parsed profile file.
type Database struct {
	Profiles []Profile `yaml:"profiles"`
}

// LoadDatabase reads and parses a profile file.
func LoadDatabase(path string) (*Database, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabase, err)
	}
	var db Database
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDatabase, path, err)
	}
	return &db, nil
}

// Find returns the profile matching exif, or nil. Matching is
// case-insensitive; a profile without a model matches any body.
func (db *Database) Find(exif imaging.Exif) *Profile {
	if db == nil || exif.Lens == "" {
		return nil
	}
	var fallback *Profile
	for i := range db.Profiles {
		p := &db.Profiles[i]
		if !strings.EqualFold(p.Lens, exif.Lens) {
			continue
		}
		if p.Make != "" && !strings.EqualFold(p.Make, exif.Make) {
			continue
		}
		if strings.EqualFold(p.Model, exif.Model) {
			return p
		}
		if p.Model == "" && fallback == nil {
			fallback = p
		}
	}
	return fallback
}

// Coeffs picks the calibration point nearest the capture settings.
func (p *Profile) Coeffs(focal, aperture float64) (VignetteCoeffs, bool) {
	if len(p.Vignetting) == 0 {
		return VignetteCoeffs{}, false
	}
	best := p.Vignetting[0]
	bestF, bestA := math.Inf(1), math.Inf(1)
	for _, v := range p.Vignetting {
		df := math.Abs(v.Focal - focal)
		da := math.Abs(v.Aperture - aperture)
		if df < bestF || (df == bestF && da < bestA) {
			best, bestF, bestA = v, df, da
		}
	}
	return best, true
}

// Vignetting is the default Corrector. Parsed databases are cached by path;
// a Vignetting is safe for concurrent use.
type Vignetting struct {
	// DefaultDatabase is used when Correct is called without a database.
	DefaultDatabase string

	mu  sync.RWMutex
	dbs map[string]*Database
}

// NewVignetting creates a corrector backed by the database at path (which
// may be empty: no default profiles).
func NewVignetting(path string) *Vignetting {
	return &Vignetting{
		DefaultDatabase: path,
		dbs:             make(map[string]*Database),
	}
}

func (v *Vignetting) load(path string) (*Database, error) {
	v.mu.RLock()
	if db, ok := v.dbs[path]; ok {
		v.mu.RUnlock()
		return db, nil
	}
	v.mu.RUnlock()

	db, err := LoadDatabase(path)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	if v.dbs == nil {
		v.dbs = make(map[string]*Database)
	}
	v.dbs[path] = db
	v.mu.Unlock()
	return db, nil
}

// Evict drops a cached database so the next Correct re-reads it.
func (v *Vignetting) Evict(path string) {
	v.mu.Lock()
	delete(v.dbs, path)
	v.mu.Unlock()
}

// Correct divides out the profile's vignetting. The database argument, when
// set, replaces the default database. Without a matching profile buf is
// returned as is.
func (v *Vignetting) Correct(buf *imaging.Buffer, exif imaging.Exif, database string) (*imaging.Buffer, error) {
	path := database
	if path == "" {
		path = v.DefaultDatabase
	}
	if path == "" || exif.Empty() || buf.Empty() {
		return buf, nil
	}

	db, err := v.load(path)
	if err != nil {
		return nil, err
	}
	p := db.Find(exif)
	if p == nil {
		return buf, nil
	}
	k, ok := p.Coeffs(exif.FocalLength, exif.Aperture)
	if !ok {
		return buf, nil
	}

	out := buf.Clone()
	Devignette(out, k)
	return out, nil
}

// Devignette applies the inverse falloff of k to buf in place.
func Devignette(buf *imaging.Buffer, k VignetteCoeffs) {
	cx, cy := float64(buf.Width-1)/2, float64(buf.Height-1)/2
	halfDiag := math.Hypot(float64(buf.Width), float64(buf.Height)) / 2
	if halfDiag == 0 {
		return
	}
	inv := 1 / (halfDiag * halfDiag)
	w := buf.Width
	pix := buf.Pix

	parallel.Line(buf.Height, func(start, end int) {
		for y := start; y < end; y++ {
			dy := float64(y) - cy
			for x := 0; x < w; x++ {
				dx := float64(x) - cx
				r2 := (dx*dx + dy*dy) * inv
				falloff := 1 + k.K1*r2 + k.K2*r2*r2 + k.K3*r2*r2*r2
				if falloff <= 0 {
					continue
				}
				g := float32(1 / falloff)
				i := (y*w + x) * 3
				pix[i] *= g
				pix[i+1] *= g
				pix[i+2] *= g
			}
		}
	})
}
