package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v2"

	"github.com/ironsheep/raw-alchemy/internal/develop"
)

// ParamStore keeps per-image adjustments in a YAML file keyed by image
// path. It implements develop.ParamStore and is safe for concurrent use.
type ParamStore struct {
	path string

	mu     sync.RWMutex
	params map[string]develop.Params
}

var _ develop.ParamStore = (*ParamStore)(nil)

// OpenParamStore reads the sidecar at path. A missing file starts an empty
// store that is created on the first Put.
func OpenParamStore(path string) (*ParamStore, error) {
	s := &ParamStore{path: path, params: make(map[string]develop.Params)}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read param store: %w", err)
	}
	if err := yaml.Unmarshal(data, &s.params); err != nil {
		return nil, fmt.Errorf("parse param store %s: %w", path, err)
	}
	if s.params == nil {
		s.params = make(map[string]develop.Params)
	}
	return s, nil
}

// Path returns the sidecar file location.
func (s *ParamStore) Path() string { return s.path }

// Get returns the adjustments stored for imageID.
func (s *ParamStore) Get(imageID string) (develop.Params, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.params[key(imageID)]
	return p, ok
}

// Put stores p for imageID and rewrites the sidecar file.
func (s *ParamStore) Put(imageID string, p develop.Params) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params[key(imageID)] = p
	return s.flush()
}

// Len returns the number of images with stored adjustments.
func (s *ParamStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.params)
}

// flush writes the whole map through a temporary file so a crash never
// leaves a truncated sidecar. Callers hold mu.
func (s *ParamStore) flush() error {
	data, err := yaml.Marshal(s.params)
	if err != nil {
		return fmt.Errorf("encode param store: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create param store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".params-*.yaml")
	if err != nil {
		return fmt.Errorf("create param store: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write param store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write param store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace param store: %w", err)
	}
	return nil
}

func key(imageID string) string {
	if abs, err := filepath.Abs(imageID); err == nil {
		return abs
	}
	return imageID
}
