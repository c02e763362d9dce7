package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600
)

// Store is a YAML-file backed string map.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Separate Store values over the same file are not coordinated.
type Store struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// Open loads the preferences file at path. A missing file is not an error;
// it is created on the first Set.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("reading preferences: %w", err)
	}

	if len(data) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

// Path returns the preferences file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key and persists the whole map.
// On write failure the in-memory value is rolled back.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flushLocked(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Delete removes key and persists the change. Deleting a missing key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	if !had {
		return nil
	}
	delete(s.values, key)
	if err := s.flushLocked(); err != nil {
		s.values[key] = prev
		return err
	}
	return nil
}

// flushLocked writes the map atomically. Caller holds s.mu.
func (s *Store) flushLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPermissions); err != nil {
		return fmt.Errorf("creating preferences directory: %w", err)
	}

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".prefs-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temp preferences file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // Gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing preferences: %w", err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("setting preferences permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing preferences: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing preferences: %w", err)
	}
	return nil
}
