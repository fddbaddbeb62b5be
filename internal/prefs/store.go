// Package prefs stores small user preferences such as the chosen voice.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	gap "github.com/muesli/go-app-paths"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Get for keys that have no value.
var ErrNotFound = errors.New("preference not found")

// DefaultFileName is the preference file created in the user data dir.
const DefaultFileName = "preferences.yml"

// DefaultPath returns the preference file location for app.
func DefaultPath(app string) (string, error) {
	scope := gap.NewScope(gap.User, app)
	path, err := scope.DataPath(DefaultFileName)
	if err != nil {
		return "", fmt.Errorf("unable to resolve data dir: %w", err)
	}
	return path, nil
}

// FileStore keeps preferences in a flat YAML map on disk. The file is read on
// first use and rewritten on every Set.
type FileStore struct {
	path string

	mu     sync.Mutex
	values map[string]string
	loaded bool
}

// NewFileStore returns a store backed by path. The file need not exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value stored under key.
func (s *FileStore) Get(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", err
	}
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key and writes the file.
func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		// a corrupt file is replaced rather than blocking new choices
		s.values = make(map[string]string)
		s.loaded = true
	}
	s.values[key] = value
	return s.save()
}

func (s *FileStore) load() error {
	if s.loaded {
		return nil
	}

	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.values = make(map[string]string)
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to read preferences: %w", err)
	}

	values := make(map[string]string)
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("unable to parse preferences %s: %w", s.path, err)
	}
	s.values = values
	s.loaded = true
	return nil
}

func (s *FileStore) save() error {
	b, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("unable to encode preferences: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("unable to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".preferences-*.yml")
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("unable to replace preferences: %w", err)
	}
	return nil
}

// MemoryStore keeps preferences for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}
