package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ErrClosed is returned by Play after Close.
var ErrClosed = errors.New("player is closed")

// pollInterval is how often playback completion is checked.
const pollInterval = 20 * time.Millisecond

// Config describes the PCM format the player expects.
type Config struct {
	SampleRate int
	Channels   int
}

// DefaultConfig matches the output of the Piper and ffmpeg pipelines.
func DefaultConfig() Config {
	return Config{SampleRate: 22050, Channels: 1}
}

// Player plays one buffer at a time. Starting a new buffer stops the current
// one without reporting its completion.
type Player struct {
	ctx *oto.Context

	mu      sync.Mutex
	current *oto.Player
	// data is held for the duration of playback; oto reads from it lazily.
	data   []byte
	gen    uint64
	closed bool
}

// NewPlayer opens the audio device. Only one oto context may exist per
// process, so callers should share the returned Player.
func NewPlayer(cfg Config) (*Player, error) {
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", cfg.Channels)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	return &Player{ctx: ctx}, nil
}

// Play starts playback of pcm and calls done when it finishes on its own.
// done is not called if playback is stopped or replaced.
func (p *Player) Play(pcm []byte, done func()) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.stopLocked()

	p.gen++
	gen := p.gen
	p.data = pcm
	p.current = p.ctx.NewPlayer(bytes.NewReader(p.data))
	p.current.Play()

	go p.watch(gen, p.current, done)
	return nil
}

func (p *Player) watch(gen uint64, pl *oto.Player, done func()) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for range ticker.C {
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		if pl.IsPlaying() {
			p.mu.Unlock()
			continue
		}
		_ = pl.Close()
		p.current = nil
		p.data = nil
		p.mu.Unlock()

		if done != nil {
			done()
		}
		return
	}
}

// Stop halts playback.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	p.gen++
	if p.current != nil {
		p.current.Pause()
		_ = p.current.Close()
		p.current = nil
	}
	p.data = nil
}

// IsPlaying reports whether a buffer is playing.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && p.current.IsPlaying()
}

// Close stops playback. The oto context itself lives until process exit.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
	return nil
}
