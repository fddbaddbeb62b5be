// Package voice resolves which synthesis voice speaks study notes and drives
// playback through an external synthesis engine.
//
// A Selector discovers the engine's Spanish voices, picks one using the
// stored preference, then a name/locale heuristic, then the first voice, and
// remembers explicit choices in a preference store.
package voice

// PreferenceKey is the store key holding the chosen voice URI.
const PreferenceKey = "ttsVoiceURI"

// Language defaults for Spanish study notes.
const (
	DefaultLanguage = "es"
	PreferredLocale = "es-MX"
	FallbackLocale  = "es-ES"

	// DefaultRate is slightly slower than normal speech.
	DefaultRate = 0.9
)

// DefaultHints are display-name fragments that mark a good default voice.
var DefaultHints = []string{"Monica", "Google"}

// Voice is a synthesis persona exposed by an engine.
type Voice struct {
	URI          string `json:"uri"`
	Name         string `json:"name"`
	Lang         string `json:"lang"`
	LocalService bool   `json:"local_service"`
}

// Utterance is one request to speak text. Voice is nil when the engine had
// no matching voice, in which case Lang carries the fallback locale.
type Utterance struct {
	Text  string
	Voice *Voice
	Lang  string
	Rate  float64
}

// Events receives utterance lifecycle notifications. Any field may be nil.
type Events struct {
	OnStart func()
	OnEnd   func()
	OnError func(error)
}

// Start fires OnStart if set.
func (e Events) Start() {
	if e.OnStart != nil {
		e.OnStart()
	}
}

// End fires OnEnd if set.
func (e Events) End() {
	if e.OnEnd != nil {
		e.OnEnd()
	}
}

// Fail fires OnError if set.
func (e Events) Fail(err error) {
	if e.OnError != nil {
		e.OnError(err)
	}
}

// Engine is the text-to-speech capability consumed by the Selector.
type Engine interface {
	// Voices returns the engine's current voice list. It may grow after
	// startup on engines that load voices lazily.
	Voices() []Voice

	// Speak starts an utterance and returns immediately. Lifecycle events
	// may arrive on any goroutine.
	Speak(u Utterance, ev Events)

	// Cancel stops any utterance in flight.
	Cancel()

	// OnVoicesChanged registers fn to be called whenever the voice list
	// changes.
	OnVoicesChanged(fn func())
}

// Store persists string preferences. Get returns an error for absent keys.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// State is a snapshot of the Selector.
type State struct {
	Voices        []Voice
	SelectedIndex int
	Speaking      bool
	Supported     bool
}
