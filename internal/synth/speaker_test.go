package synth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/studynotes/internal/audio"
	"github.com/dgnsrekt/studynotes/internal/voice"
)

type fakeBackend struct {
	mu       sync.Mutex
	voices   []voice.Voice
	calls    []voice.Utterance
	block    chan struct{}
	err      error
	watchers []func()
}

func (f *fakeBackend) Voices() []voice.Voice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.voices
}

func (f *fakeBackend) Synthesize(ctx context.Context, text string, v *voice.Voice, lang string, rate float64) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, voice.Utterance{Text: text, Voice: v, Lang: lang, Rate: rate})
	block, err := f.block, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func (f *fakeBackend) OnVoicesChanged(fn func()) {
	f.watchers = append(f.watchers, fn)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type mapCache map[string][]byte

func (m mapCache) Get(key string) ([]byte, bool) {
	b, ok := m[key]
	return b, ok
}

func (m mapCache) Put(key string, data []byte) error {
	m[key] = data
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 8)}
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder) Events() voice.Events {
	return voice.Events{
		OnStart: func() { r.add("start") },
		OnEnd:   func() { r.add("end") },
		OnError: func(error) { r.add("error") },
	}
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for event")
	}
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestSpeakerPlaysAndEnds(t *testing.T) {
	b := &fakeBackend{}
	p := audio.NewMockPlayer()
	s := NewSpeaker(b, p)
	rec := newRecorder()

	s.Speak(voice.Utterance{Text: "hola", Lang: "es-ES", Rate: 0.9}, rec.Events())
	rec.wait(t)
	s.Wait()

	played := p.Played()
	if len(played) != 1 || string(played[0]) != "hola" {
		t.Fatalf("Expected one buffer \"hola\", got %q", played)
	}

	p.Finish()
	rec.wait(t)

	got := rec.list()
	if len(got) != 2 || got[0] != "start" || got[1] != "end" {
		t.Errorf("Expected [start end], got %v", got)
	}
}

func TestSpeakerAtMostOneUtterance(t *testing.T) {
	b := &fakeBackend{block: make(chan struct{})}
	p := audio.NewMockPlayer()
	s := NewSpeaker(b, p)

	first, second := newRecorder(), newRecorder()
	s.Speak(voice.Utterance{Text: "uno"}, first.Events())
	s.Speak(voice.Utterance{Text: "dos"}, second.Events())

	// Release whichever synthesis is still waiting.
	close(b.block)
	second.wait(t)
	s.Wait()

	played := p.Played()
	if len(played) != 1 || string(played[0]) != "dos" {
		t.Errorf("Expected only \"dos\" to play, got %q", played)
	}
	if got := first.list(); len(got) != 0 {
		t.Errorf("Expected no events for the superseded utterance, got %v", got)
	}
}

func TestSpeakerCancelSuppressesEnd(t *testing.T) {
	b := &fakeBackend{}
	p := audio.NewMockPlayer()
	s := NewSpeaker(b, p)
	rec := newRecorder()

	s.Speak(voice.Utterance{Text: "hola"}, rec.Events())
	rec.wait(t)
	s.Wait()

	s.Cancel()
	p.Finish()

	if p.IsPlaying() {
		t.Error("Expected playback stopped")
	}
	if got := rec.list(); len(got) != 1 || got[0] != "start" {
		t.Errorf("Expected only [start], got %v", got)
	}
}

func TestSpeakerReportsErrors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		backend error
		play    error
	}{
		{name: "empty text", text: ""},
		{name: "backend failure", text: "hola", backend: errors.New("boom")},
		{name: "playback failure", text: "hola", play: errors.New("device busy")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := audio.NewMockPlayer()
			p.PlayErr = tc.play
			s := NewSpeaker(&fakeBackend{err: tc.backend}, p)
			rec := newRecorder()

			s.Speak(voice.Utterance{Text: tc.text}, rec.Events())
			rec.wait(t)
			if tc.play != nil {
				rec.wait(t)
			}
			s.Wait()

			got := rec.list()
			if got[len(got)-1] != "error" {
				t.Errorf("Expected error event last, got %v", got)
			}
		})
	}
}

func TestSpeakerUsesCache(t *testing.T) {
	b := &fakeBackend{}
	p := audio.NewMockPlayer()
	s := NewSpeaker(b, p, WithCache(mapCache{}))
	v := &voice.Voice{URI: "gtts:es-MX", Lang: "es-MX"}

	for i := 0; i < 2; i++ {
		rec := newRecorder()
		s.Speak(voice.Utterance{Text: "hola", Voice: v, Lang: v.Lang, Rate: 0.9}, rec.Events())
		rec.wait(t)
		s.Wait()
	}

	if n := b.callCount(); n != 1 {
		t.Errorf("Expected 1 synthesis, got %d", n)
	}
	if n := len(p.Played()); n != 2 {
		t.Errorf("Expected 2 playbacks, got %d", n)
	}
}

func TestSpeakerForwardsVoiceChanges(t *testing.T) {
	b := &fakeBackend{}
	s := NewSpeaker(b, audio.NewMockPlayer())

	called := false
	s.OnVoicesChanged(func() { called = true })
	if len(b.watchers) != 1 {
		t.Fatalf("Expected watcher registered on backend, got %d", len(b.watchers))
	}
	b.watchers[0]()
	if !called {
		t.Error("Expected callback to run")
	}
}

func TestSpeakerWithSelector(t *testing.T) {
	b := &fakeBackend{voices: []voice.Voice{
		{URI: "gtts:es-ES", Name: "Google español (es-ES)", Lang: "es-ES"},
		{URI: "gtts:es-MX", Name: "Google español (es-MX)", Lang: "es-MX"},
	}}
	p := audio.NewMockPlayer()
	s := NewSpeaker(b, p)

	states := make(chan voice.State, 16)
	sel := voice.New(s, nil, voice.WithStateListener(func(st voice.State) { states <- st }))

	sel.Speak("buenos días")
	deadline := time.After(2 * time.Second)
	for !sel.Speaking() {
		select {
		case <-states:
		case <-deadline:
			t.Fatal("Timed out waiting for speaking state")
		}
	}
	s.Wait()

	if b.calls[0].Voice == nil || b.calls[0].Voice.URI != "gtts:es-ES" {
		t.Errorf("Expected first matching voice, got %+v", b.calls[0].Voice)
	}
	if b.calls[0].Rate != voice.DefaultRate {
		t.Errorf("Expected rate %v, got %v", voice.DefaultRate, b.calls[0].Rate)
	}

	p.Finish()
	for sel.Speaking() {
		select {
		case <-states:
		case <-deadline:
			t.Fatal("Timed out waiting for end")
		}
	}
}
