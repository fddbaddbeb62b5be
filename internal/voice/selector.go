package voice

import (
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Selector owns the voice state of one user session.
//
// Engine and store calls are made without holding the Selector's lock, so
// engine callbacks may re-enter the Selector from any goroutine.
type Selector struct {
	engine Engine
	store  Store
	logger *log.Logger

	language  string
	preferred string
	fallback  string
	rate      float64
	hints     []string
	listener  func(State)

	mu       sync.Mutex
	voices   []Voice
	selected int
	speaking bool
	// utterance counts Speak and Cancel calls so that events from a
	// superseded utterance don't touch the speaking flag.
	utterance uint64
}

// Option configures a Selector.
type Option func(*Selector)

// WithLanguage sets the voice language prefix, the locale preferred by the
// default heuristic and the locale requested when no voice matches.
func WithLanguage(prefix, preferred, fallback string) Option {
	return func(s *Selector) {
		s.language = prefix
		s.preferred = preferred
		s.fallback = fallback
	}
}

// WithRate sets the speaking rate passed with every utterance.
func WithRate(rate float64) Option {
	return func(s *Selector) {
		if rate > 0 {
			s.rate = rate
		}
	}
}

// WithHints replaces the display-name fragments used to pick a default voice.
func WithHints(hints ...string) Option {
	return func(s *Selector) {
		s.hints = hints
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Selector) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStateListener registers fn to receive a snapshot after every change to
// the voice list, the selection or the speaking flag.
func WithStateListener(fn func(State)) Option {
	return func(s *Selector) {
		s.listener = fn
	}
}

// New creates a Selector and resolves the initial voice. A nil engine yields
// an unsupported Selector: it has no voices and Speak does nothing.
func New(engine Engine, store Store, opts ...Option) *Selector {
	s := &Selector{
		engine:    engine,
		store:     store,
		logger:    log.Default().WithPrefix("voice"),
		language:  DefaultLanguage,
		preferred: PreferredLocale,
		fallback:  FallbackLocale,
		rate:      DefaultRate,
		hints:     DefaultHints,
	}
	for _, opt := range opts {
		opt(s)
	}

	if engine == nil {
		s.logger.Debug("speech synthesis unsupported")
		return s
	}

	engine.OnVoicesChanged(s.refresh)
	s.refresh()
	return s
}

// Supported reports whether a synthesis engine is available.
func (s *Selector) Supported() bool {
	return s.engine != nil
}

// Voices returns the cached voices in the selector's language.
func (s *Selector) Voices() []Voice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Voice(nil), s.voices...)
}

// SelectedIndex returns the index of the chosen voice in Voices.
func (s *Selector) SelectedIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Selected returns the chosen voice, if the index points at one.
func (s *Selector) Selected() (Voice, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected < 0 || s.selected >= len(s.voices) {
		return Voice{}, false
	}
	return s.voices[s.selected], true
}

// Speaking reports whether an utterance is currently being spoken.
func (s *Selector) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// State returns a snapshot of the selector.
func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Selector) stateLocked() State {
	return State{
		Voices:        append([]Voice(nil), s.voices...),
		SelectedIndex: s.selected,
		Speaking:      s.speaking,
		Supported:     s.engine != nil,
	}
}

// SetSelectedIndex changes the chosen voice and, when i points at a known
// voice, persists its URI. Store failures are logged and not retried.
func (s *Selector) SetSelectedIndex(i int) {
	s.mu.Lock()
	s.selected = i
	var uri string
	if i >= 0 && i < len(s.voices) {
		uri = s.voices[i].URI
	}
	st := s.stateLocked()
	s.mu.Unlock()

	if uri != "" && s.store != nil {
		if err := s.store.Set(PreferenceKey, uri); err != nil {
			s.logger.Warn("Could not save voice preference", "uri", uri, "err", err)
		} else {
			s.logger.Debug("Saved voice preference", "uri", uri)
		}
	}
	s.notify(st)
}

// Speak cancels any utterance in flight and speaks text with the chosen
// voice. It returns immediately; progress is visible through Speaking.
//
// The voice is looked up in the engine's live list rather than the cached
// one, since some engines finish loading voices after the last refresh.
func (s *Selector) Speak(text string) {
	if s.engine == nil {
		return
	}

	s.engine.Cancel()
	live := s.filter(s.engine.Voices())

	s.mu.Lock()
	s.utterance++
	id := s.utterance
	s.speaking = false
	idx := s.selected
	s.mu.Unlock()

	u := Utterance{Text: text, Rate: s.rate}
	if len(live) > 0 {
		v := live[0]
		if idx >= 0 && idx < len(live) {
			v = live[idx]
		}
		u.Voice = &v
		u.Lang = v.Lang
	} else {
		u.Lang = s.fallback
	}

	s.logger.Debug("Speaking", "voice", voiceURI(u.Voice), "lang", u.Lang, "rate", u.Rate)
	s.engine.Speak(u, Events{
		OnStart: func() { s.setSpeaking(id, true) },
		OnEnd:   func() { s.setSpeaking(id, false) },
		OnError: func(err error) {
			s.logger.Debug("Utterance failed", "err", err)
			s.setSpeaking(id, false)
		},
	})
}

// Cancel stops the utterance in flight, if any.
func (s *Selector) Cancel() {
	if s.engine == nil {
		return
	}
	s.engine.Cancel()

	s.mu.Lock()
	s.utterance++
	changed := s.speaking
	s.speaking = false
	st := s.stateLocked()
	s.mu.Unlock()

	if changed {
		s.notify(st)
	}
}

func (s *Selector) setSpeaking(id uint64, speaking bool) {
	s.mu.Lock()
	if id != s.utterance || s.speaking == speaking {
		s.mu.Unlock()
		return
	}
	s.speaking = speaking
	st := s.stateLocked()
	s.mu.Unlock()
	s.notify(st)
}

// refresh reloads the voice list and re-resolves the selection. It runs at
// construction and on every voice-list change.
func (s *Selector) refresh() {
	voices := s.filter(s.engine.Voices())
	stored := s.storedURI()

	s.mu.Lock()
	s.voices = voices
	idx, reason := resolve(voices, stored, s.preferred, s.hints)
	if idx >= 0 {
		s.selected = idx
	}
	st := s.stateLocked()
	s.mu.Unlock()

	s.logger.Debug("Resolved voice", "voices", len(voices), "index", st.SelectedIndex, "by", reason)
	s.notify(st)
}

func (s *Selector) storedURI() string {
	if s.store == nil {
		return ""
	}
	uri, err := s.store.Get(PreferenceKey)
	if err != nil {
		s.logger.Debug("No stored voice preference", "err", err)
		return ""
	}
	return uri
}

// filter keeps voices whose tag starts with the language prefix, compared
// case-sensitively, preserving engine order.
func (s *Selector) filter(all []Voice) []Voice {
	out := make([]Voice, 0, len(all))
	for _, v := range all {
		if strings.HasPrefix(v.Lang, s.language) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Selector) notify(st State) {
	if s.listener != nil {
		s.listener(st)
	}
}

// resolve picks a voice index: the stored URI first, then the first voice
// whose name contains a hint or whose language is the preferred locale. It
// returns -1 when neither applies so the caller keeps its previous index.
func resolve(voices []Voice, stored, preferred string, hints []string) (int, string) {
	if stored != "" {
		for i, v := range voices {
			if v.URI == stored {
				return i, "preference"
			}
		}
	}
	for i, v := range voices {
		if v.Lang == preferred {
			return i, "locale"
		}
		for _, h := range hints {
			if h != "" && strings.Contains(v.Name, h) {
				return i, "name"
			}
		}
	}
	return -1, "default"
}

func voiceURI(v *Voice) string {
	if v == nil {
		return ""
	}
	return v.URI
}
