package synth

import (
	"fmt"
	"os/exec"

	"github.com/charmbracelet/log"
)

// Engine names accepted by Detect.
const (
	EnginePiper = "piper"
	EngineGTTS  = "gtts"
)

// Config selects and configures a backend.
type Config struct {
	// Engine is "piper", "gtts" or empty to use whichever is installed,
	// preferring Piper.
	Engine string

	Piper PiperConfig
	GTTS  GTTSConfig
}

var lookPath = exec.LookPath

// Detect builds the configured backend. It returns a nil Backend without
// error when the required programs are not installed, which callers treat
// as speech being unsupported.
func Detect(cfg Config) (Backend, error) {
	switch cfg.Engine {
	case EnginePiper:
		return detectPiper(cfg.Piper)
	case EngineGTTS:
		return detectGTTS(cfg.GTTS), nil
	case "":
		b, err := detectPiper(cfg.Piper)
		if err != nil {
			log.Debug("Piper unavailable", "err", err)
		}
		if b != nil {
			return b, nil
		}
		if g := detectGTTS(cfg.GTTS); g != nil {
			return g, nil
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
}

func detectPiper(cfg PiperConfig) (Backend, error) {
	bin := cfg.Binary
	if bin == "" {
		bin = "piper"
	}
	if _, err := lookPath(bin); err != nil {
		log.Debug("Program not found", "program", bin)
		return nil, nil
	}
	if cfg.ModelsDir == "" {
		return nil, nil
	}

	b, err := NewPiperBackend(cfg)
	if err != nil {
		return nil, newError(ErrorCodeUnavailable, "piper models unreadable", err)
	}
	if err := b.Watch(); err != nil {
		log.Warn("Not watching piper models", "err", err)
	}
	return b, nil
}

func detectGTTS(cfg GTTSConfig) Backend {
	for _, bin := range []string{orDefault(cfg.Binary, "gtts-cli"), orDefault(cfg.FFmpeg, "ffmpeg")} {
		if _, err := lookPath(bin); err != nil {
			log.Debug("Program not found", "program", bin)
			return nil
		}
	}
	return NewGTTSBackend(cfg)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
