package audio

import (
	"errors"
	"testing"
)

func TestMockPlayerFinish(t *testing.T) {
	m := NewMockPlayer()
	finished := 0

	if err := m.Play([]byte{1, 2}, func() { finished++ }); err != nil {
		t.Fatal(err)
	}
	if !m.IsPlaying() {
		t.Fatal("Expected playing")
	}
	m.Finish()
	m.Finish()
	if finished != 1 {
		t.Errorf("Expected done once, got %d", finished)
	}
	if m.IsPlaying() {
		t.Error("Expected stopped after finish")
	}
}

func TestMockPlayerStopSuppressesDone(t *testing.T) {
	m := NewMockPlayer()
	finished := false

	_ = m.Play([]byte{1}, func() { finished = true })
	_ = m.Stop()
	m.Finish()

	if finished {
		t.Error("Expected Stop to suppress completion")
	}
	if m.Stops() != 1 {
		t.Errorf("Expected 1 stop, got %d", m.Stops())
	}
}

func TestMockPlayerErrors(t *testing.T) {
	m := NewMockPlayer()
	if err := m.Play(nil, nil); err == nil {
		t.Error("Expected error for empty audio")
	}

	m.PlayErr = errors.New("device busy")
	if err := m.Play([]byte{1}, nil); err == nil {
		t.Error("Expected PlayErr")
	}

	m.PlayErr = nil
	_ = m.Close()
	if err := m.Play([]byte{1}, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}
