// Package config handles on-disk configuration: the flat key/value file
// that holds the calibration profile, and the application settings file.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
)

// ErrConfigIO is wrapped by every error caused by reading or writing
// configuration files.
var ErrConfigIO = errors.New("config I/O error")

// Store is a flat JSON key/value file.
type Store struct {
	mu     sync.RWMutex
	values map[string]interface{}
	path   string
}

// NewStore creates an empty store bound to path without reading it.
func NewStore(path string) *Store {
	return &Store{values: make(map[string]interface{}), path: path}
}

// OpenStore reads path into a store. A missing file yields an empty store
// and no error.
func OpenStore(path string) (*Store, error) {
	s := NewStore(path)
	if err := s.Reload(); err != nil {
		return s, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces the in-memory values with the file contents. A missing
// file empties the store.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.values = make(map[string]interface{})
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return pkgerrors.Wrapf(ErrConfigIO, "read %s: %v", s.path, err)
	}

	values := make(map[string]interface{})
	if err := json.Unmarshal(data, &values); err != nil {
		return pkgerrors.Wrapf(ErrConfigIO, "parse %s: %v", s.path, err)
	}

	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Save writes the store to disk.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.values, "", "    ")
	s.mu.RUnlock()
	if err != nil {
		return pkgerrors.Wrap(ErrConfigIO, err.Error())
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return pkgerrors.Wrapf(ErrConfigIO, "create %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return pkgerrors.Wrapf(ErrConfigIO, "write %s: %v", s.path, err)
	}
	return nil
}

// Has reports whether key is set.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.values[key]
	return ok
}

// Float returns a numeric value and whether it was present and numeric.
func (s *Store) Float(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch n := s.values[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// FloatWithFallback returns a numeric value, or fallback if not set.
func (s *Store) FloatWithFallback(key string, fallback float64) float64 {
	if v, ok := s.Float(key); ok {
		return v
	}
	return fallback
}

// SetFloat stores a numeric value.
func (s *Store) SetFloat(key string, val float64) {
	s.mu.Lock()
	s.values[key] = val
	s.mu.Unlock()
}

// String returns a string value and whether it was present.
func (s *Store) String(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key].(string)
	return v, ok
}

// SetString stores a string value.
func (s *Store) SetString(key string, val string) {
	s.mu.Lock()
	s.values[key] = val
	s.mu.Unlock()
}
