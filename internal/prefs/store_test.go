package prefs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope", DefaultFileName))

	if _, err := s.Get("ttsVoiceURI"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", DefaultFileName)

	s := NewFileStore(path)
	if err := s.Set("ttsVoiceURI", "piper:es_MX-claude-high"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Set("other", "value"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	reopened := NewFileStore(path)
	got, err := reopened.Get("ttsVoiceURI")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "piper:es_MX-claude-high" {
		t.Errorf("Expected stored uri, got %q", got)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "ttsVoiceURI: piper:es_MX-claude-high") {
		t.Errorf("Expected YAML map on disk, got:\n%s", b)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Expected only the preference file, found %d entries", len(entries))
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte("- not\n- a map\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewFileStore(path)
	if _, err := s.Get("ttsVoiceURI"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected parse error, got %v", err)
	}

	if err := s.Set("ttsVoiceURI", "gtts:es-MX"); err != nil {
		t.Fatalf("Expected Set to replace a corrupt file, got %v", err)
	}
	got, err := NewFileStore(path).Get("ttsVoiceURI")
	if err != nil || got != "gtts:es-MX" {
		t.Errorf("Expected recovered value, got %q, %v", got, err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	_ = s.Set("k", "v")
	if got, _ := s.Get("k"); got != "v" {
		t.Errorf("Expected v, got %q", got)
	}
}
