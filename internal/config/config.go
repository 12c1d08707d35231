// Package config loads the user settings file and persists per-image
// adjustments between sessions.
//
// The settings file is YAML. Every key is optional:
//
//	lut_folder: ~/LUTs
//	lens_database: ~/.config/raw-alchemy/lenses.yaml
//	preview_max_dim: 2048
//	histogram_bins: 100
//	histogram_stride: 4
//	idle_timeout: 2s
//	jpeg_quality: 95
//	lut_cache_size: 16
//	param_store: ~/.config/raw-alchemy/params.yaml
//	defaults:
//	  metering: matrix
//	  saturation: 1.25
//	  contrast: 1.1
//
// The file is found through RAW_ALCHEMY_CONFIG, then
// $XDG_CONFIG_HOME/raw-alchemy/config.yaml, then ~/.config/raw-alchemy/config.yaml.
// A missing file is not an error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ironsheep/raw-alchemy/internal/develop"
	"github.com/ironsheep/raw-alchemy/internal/export"
	"github.com/ironsheep/raw-alchemy/internal/histogram"
)

// EnvConfig names the environment variable that overrides the settings path.
const EnvConfig = "RAW_ALCHEMY_CONFIG"

// ErrInvalid is returned when a settings file parses but fails validation.
var ErrInvalid = errors.New("config: invalid settings")

// Settings is the parsed settings file.
type Settings struct {
	LUTFolder    string `yaml:"lut_folder"`
	LensDatabase string `yaml:"lens_database"`

	PreviewMaxDim   int           `yaml:"preview_max_dim"`
	HistogramBins   int           `yaml:"histogram_bins"`
	HistogramStride int           `yaml:"histogram_stride"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`

	JPEGQuality  int `yaml:"jpeg_quality"`
	LUTCacheSize int `yaml:"lut_cache_size"`

	// ParamStore is the sidecar file for per-image adjustments. Empty
	// disables persistence.
	ParamStore string `yaml:"param_store"`

	Defaults develop.Params `yaml:"defaults"`

	// Source is the file the settings came from, empty for built-in
	// defaults.
	Source string `yaml:"-"`
}

// NewSettings returns the built-in defaults.
func NewSettings() Settings {
	return Settings{
		PreviewMaxDim:   develop.DefaultPreviewMaxDim,
		HistogramBins:   histogram.DefaultBins,
		HistogramStride: histogram.DefaultStride,
		IdleTimeout:     develop.DefaultIdleTimeout,
		JPEGQuality:     export.DefaultJPEGQuality,
		LUTCacheSize:    16,
		Defaults:        develop.DefaultParams(),
	}
}

// Path returns the settings file location for the current environment.
func Path() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "raw-alchemy", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "raw-alchemy", "config.yaml")
}

// LoadDefault loads the settings file named by Path.
func LoadDefault() (Settings, error) {
	return Load(Path())
}

// Load reads filename over the built-in defaults and finalizes the result.
// A missing file yields the defaults.
func Load(filename string) (Settings, error) {
	s := NewSettings()
	if filename == "" {
		return s, s.Finalize()
	}

	contents, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return s, s.Finalize()
	}
	if err != nil {
		return s, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := yaml.Unmarshal(contents, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", filename, err)
	}
	s.Source = filename
	return s, s.Finalize()
}

// Finalize expands paths, fills zero values with defaults and checks ranges.
func (s *Settings) Finalize() error {
	def := NewSettings()
	if s.PreviewMaxDim <= 0 {
		s.PreviewMaxDim = def.PreviewMaxDim
	}
	if s.HistogramBins <= 0 {
		s.HistogramBins = def.HistogramBins
	}
	if s.HistogramStride <= 0 {
		s.HistogramStride = def.HistogramStride
	}
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = def.IdleTimeout
	}
	if s.JPEGQuality == 0 {
		s.JPEGQuality = def.JPEGQuality
	}
	if s.LUTCacheSize <= 0 {
		s.LUTCacheSize = def.LUTCacheSize
	}
	if s.Defaults.ExposureMode == "" {
		s.Defaults.ExposureMode = develop.ExposureAuto
	}

	s.LUTFolder = expandHome(s.LUTFolder)
	s.LensDatabase = expandHome(s.LensDatabase)
	s.ParamStore = expandHome(s.ParamStore)
	s.Defaults.LensDatabase = expandHome(s.Defaults.LensDatabase)
	s.Defaults.LUTPath = expandHome(s.Defaults.LUTPath)

	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg_quality %d outside 1..100", ErrInvalid, s.JPEGQuality)
	}
	if err := s.Defaults.Validate(); err != nil {
		return fmt.Errorf("%w: defaults: %v", ErrInvalid, err)
	}
	if s.LUTFolder != "" {
		info, err := os.Stat(s.LUTFolder)
		if err != nil {
			return fmt.Errorf("%w: lut_folder: %v", ErrInvalid, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%w: lut_folder %s is not a directory", ErrInvalid, s.LUTFolder)
		}
	}
	return nil
}

// ResolveLUT turns a bare LUT name into a path inside LUTFolder. Absolute
// and relative paths are returned unchanged.
func (s *Settings) ResolveLUT(name string) string {
	if name == "" || s.LUTFolder == "" || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	return filepath.Join(s.LUTFolder, name)
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
