package synth

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/studynotes/internal/cache"
	"github.com/dgnsrekt/studynotes/internal/voice"
)

// Backend turns text into 16-bit mono PCM.
type Backend interface {
	// Voices lists the voices the backend can synthesize with.
	Voices() []voice.Voice

	// Synthesize renders text. v may be nil, in which case the backend picks a
	// voice for lang.
	Synthesize(ctx context.Context, text string, v *voice.Voice, lang string, rate float64) ([]byte, error)
}

// voiceWatcher is implemented by backends whose voice list can change.
type voiceWatcher interface {
	OnVoicesChanged(fn func())
}

// Player plays PCM. done is called only when playback ends on its own.
type Player interface {
	Play(pcm []byte, done func()) error
	Stop() error
}

// Cache stores synthesized PCM.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}

// Speaker adapts a Backend and a Player to voice.Engine. At most one
// utterance is in flight: Speak and Cancel abort the previous one, and an
// aborted utterance never reports its end.
type Speaker struct {
	backend Backend
	player  Player
	cache   Cache
	logger  *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	wg     sync.WaitGroup
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithCache caches synthesized audio.
func WithCache(c Cache) SpeakerOption {
	return func(s *Speaker) {
		s.cache = c
	}
}

// WithSpeakerLogger sets the logger.
func WithSpeakerLogger(l *log.Logger) SpeakerOption {
	return func(s *Speaker) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSpeaker creates a Speaker.
func NewSpeaker(b Backend, p Player, opts ...SpeakerOption) *Speaker {
	s := &Speaker{
		backend: b,
		player:  p,
		logger:  log.Default().WithPrefix("synth"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ voice.Engine = (*Speaker)(nil)

// Voices returns the backend's current voice list.
func (s *Speaker) Voices() []voice.Voice {
	return s.backend.Voices()
}

// OnVoicesChanged forwards to the backend when its voice list is dynamic.
func (s *Speaker) OnVoicesChanged(fn func()) {
	if w, ok := s.backend.(voiceWatcher); ok {
		w.OnVoicesChanged(fn)
	}
}

// Speak aborts any utterance in flight and starts u on a goroutine.
func (s *Speaker) Speak(u voice.Utterance, ev voice.Events) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	s.cancel = cancel
	s.mu.Unlock()

	_ = s.player.Stop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, gen, u, ev)
	}()
}

// Cancel aborts the utterance in flight, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.gen++
	s.mu.Unlock()

	if err := s.player.Stop(); err != nil {
		s.logger.Debug("Failed to stop playback", "err", err)
	}
}

// Wait blocks until every started utterance goroutine has returned. It does
// not wait for playback.
func (s *Speaker) Wait() {
	s.wg.Wait()
}

// Close cancels playback and releases the backend.
func (s *Speaker) Close() error {
	s.Cancel()
	s.Wait()
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (s *Speaker) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen == gen
}

func (s *Speaker) run(ctx context.Context, gen uint64, u voice.Utterance, ev voice.Events) {
	pcm, err := s.synthesize(ctx, u)
	if ctx.Err() != nil || !s.current(gen) {
		return
	}
	if err != nil {
		s.logger.Warn("Synthesis failed", "err", err)
		ev.Fail(err)
		return
	}

	ev.Start()

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	err = s.player.Play(pcm, func() {
		if s.current(gen) {
			ev.End()
		}
	})
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("Playback failed", "err", err)
		ev.Fail(newError(ErrorCodeAudio, "playback failed", err))
	}
}

func (s *Speaker) synthesize(ctx context.Context, u voice.Utterance) ([]byte, error) {
	if err := validateText(u.Text); err != nil {
		return nil, err
	}

	var uri string
	if u.Voice != nil {
		uri = u.Voice.URI
	}
	key := cache.Key(uri, u.Lang, u.Rate, u.Text)

	if s.cache != nil {
		if pcm, ok := s.cache.Get(key); ok {
			s.logger.Debug("Cache hit", "voice", uri, "bytes", len(pcm))
			return pcm, nil
		}
	}

	pcm, err := s.backend.Synthesize(ctx, u.Text, u.Voice, u.Lang, u.Rate)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(key, pcm); err != nil && !errors.Is(err, cache.ErrItemTooLarge) {
			s.logger.Debug("Failed to cache audio", "err", err)
		}
	}
	return pcm, nil
}
