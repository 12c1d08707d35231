package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/raw-alchemy/internal/develop"
	"github.com/ironsheep/raw-alchemy/internal/metering"
)

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Source != "" {
		t.Errorf("Source: got %q, want empty", s.Source)
	}
	if s.Defaults != develop.DefaultParams() {
		t.Errorf("Defaults: got %+v", s.Defaults)
	}
	if s.PreviewMaxDim != develop.DefaultPreviewMaxDim || s.IdleTimeout != develop.DefaultIdleTimeout {
		t.Errorf("got preview=%d idle=%v", s.PreviewMaxDim, s.IdleTimeout)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	luts := filepath.Join(dir, "luts")
	if err := os.Mkdir(luts, 0o755); err != nil {
		t.Fatal(err)
	}
	path := writeFile(t, dir, "config.yaml", `
lut_folder: `+luts+`
preview_max_dim: 1024
idle_timeout: 500ms
jpeg_quality: 80
defaults:
  metering: hybrid
  saturation: 1.0
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Source != path || s.LUTFolder != luts {
		t.Errorf("got source=%q luts=%q", s.Source, s.LUTFolder)
	}
	if s.PreviewMaxDim != 1024 || s.IdleTimeout != 500*time.Millisecond || s.JPEGQuality != 80 {
		t.Errorf("got preview=%d idle=%v quality=%d", s.PreviewMaxDim, s.IdleTimeout, s.JPEGQuality)
	}
	if s.Defaults.Metering != metering.Hybrid || s.Defaults.Saturation != 1 {
		t.Errorf("defaults: got %+v", s.Defaults)
	}
	if s.Defaults.Contrast != 1.1 || !s.Defaults.LensCorrect {
		t.Errorf("unspecified defaults should keep built-in values: %+v", s.Defaults)
	}
	if s.HistogramBins != 100 {
		t.Errorf("HistogramBins: got %d", s.HistogramBins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{"jpeg quality", "jpeg_quality: 101\n"},
		{"unknown metering", "defaults:\n  metering: spot\n"},
		{"unknown log space", "defaults:\n  log_space: Bogus-Log\n"},
		{"missing lut folder", "lut_folder: /definitely/not/here\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tt.contents)
			if _, err := Load(path); !errors.Is(err, ErrInvalid) {
				t.Errorf("got %v, want ErrInvalid", err)
			}
		})
	}

	path := writeFile(t, t.TempDir(), "config.yaml", "preview_max_dim: [1, 2\n")
	if _, err := Load(path); err == nil || errors.Is(err, ErrInvalid) {
		t.Errorf("malformed YAML should be a parse error: %v", err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/raw.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	if got := Path(); got != "/etc/raw.yaml" {
		t.Errorf("env override: got %q", got)
	}
	t.Setenv(EnvConfig, "")
	if got := Path(); got != filepath.Join("/xdg", "raw-alchemy", "config.yaml") {
		t.Errorf("xdg: got %q", got)
	}
}

func TestResolveLUT(t *testing.T) {
	s := Settings{LUTFolder: "/luts"}
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"film.cube", filepath.Join("/luts", "film.cube")},
		{"/abs/film.cube", "/abs/film.cube"},
		{"sub/film.cube", "sub/film.cube"},
	}
	for _, tt := range tests {
		if got := s.ResolveLUT(tt.in); got != tt.want {
			t.Errorf("ResolveLUT(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParamStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "params.yaml")
	store, err := OpenParamStore(path)
	if err != nil {
		t.Fatalf("OpenParamStore failed: %v", err)
	}
	if _, ok := store.Get("a.tif"); ok {
		t.Error("empty store returned params")
	}

	p := develop.DefaultParams()
	p.WBTemp = -35
	p.LogSpace = "V-Log"
	if err := store.Put("a.tif", p); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	reopened, err := OpenParamStore(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	got, ok := reopened.Get("a.tif")
	if !ok || got != p {
		t.Errorf("got %+v, %v; want %+v", got, ok, p)
	}
	if reopened.Len() != 1 {
		t.Errorf("Len: got %d", reopened.Len())
	}
}

func TestOpenParamStore_Corrupt(t *testing.T) {
	path := writeFile(t, t.TempDir(), "params.yaml", "- not\n- a map\n")
	if _, err := OpenParamStore(path); err == nil {
		t.Error("expected an error for a corrupt sidecar")
	}
}
