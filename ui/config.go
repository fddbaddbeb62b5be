package ui

import "time"

// Config contains TUI-specific configuration.
type Config struct {
	// Path of the note, shown in the status bar. Empty for stdin.
	Path string

	// MaxWidth caps the rendering width. Zero uses the full terminal.
	MaxWidth    uint
	EnableMouse bool

	// InputTTY reads keys from the terminal rather than stdin.
	InputTTY bool

	// Marks prefixes speakable lines with a marker.
	Marks bool `env:"STUDYNOTES_MARKS" envDefault:"true"`

	// StatusMessageTimeout is how long messages like "copied" stay up.
	StatusMessageTimeout time.Duration `env:"STUDYNOTES_STATUS_TIMEOUT" envDefault:"3s"`

	// For debugging the UI
	AltScreen bool `env:"STUDYNOTES_ALT_SCREEN" envDefault:"true"`
}
