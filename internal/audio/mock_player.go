package audio

import (
	"errors"
	"sync"
)

// MockPlayer records playback without an audio device. Tests finish the
// current buffer with Finish.
type MockPlayer struct {
	mu      sync.Mutex
	played  [][]byte
	done    func()
	playing bool
	stops   int
	closed  bool

	// PlayErr, when set, is returned by Play.
	PlayErr error
}

// NewMockPlayer creates a mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{}
}

// Play records pcm and marks the player as playing.
func (m *MockPlayer) Play(pcm []byte, done func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.PlayErr != nil {
		return m.PlayErr
	}
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}
	m.played = append(m.played, pcm)
	m.done = done
	m.playing = true
	return nil
}

// Finish completes the current buffer as if it played to the end.
func (m *MockPlayer) Finish() {
	m.mu.Lock()
	done := m.done
	wasPlaying := m.playing
	m.done = nil
	m.playing = false
	m.mu.Unlock()

	if wasPlaying && done != nil {
		done()
	}
}

// Stop halts playback without calling the completion callback.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.playing = false
	m.done = nil
	return nil
}

// IsPlaying reports whether a buffer is playing.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Close marks the player closed.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.playing = false
	return nil
}

// Played returns every buffer passed to Play.
func (m *MockPlayer) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.played...)
}

// Stops returns how many times Stop was called.
func (m *MockPlayer) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
