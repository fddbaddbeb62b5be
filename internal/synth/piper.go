package synth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"golang.org/x/text/language"

	"github.com/dgnsrekt/studynotes/internal/voice"
)

const (
	piperScheme   = "piper:"
	modelExt      = ".onnx"
	piperTimeout  = 10 * time.Second
	piperMaxAudio = 10 * 1024 * 1024
)

// PiperConfig configures the Piper backend.
type PiperConfig struct {
	// Binary is the piper executable. Defaults to "piper".
	Binary string

	// ModelsDir holds *.onnx voice models with their .onnx.json configs.
	ModelsDir string

	// Timeout bounds a single synthesis. Defaults to 10s.
	Timeout time.Duration
}

// PiperBackend synthesizes offline with Piper. Every model file in the
// models directory is one voice.
type PiperBackend struct {
	cfg    PiperConfig
	run    runner
	logger *log.Logger

	mu        sync.RWMutex
	voices    []voice.Voice
	models    map[string]string
	listeners []func()
	watcher   *fsnotify.Watcher
}

// NewPiperBackend scans cfg.ModelsDir for voices.
func NewPiperBackend(cfg PiperConfig) (*PiperBackend, error) {
	if cfg.ModelsDir == "" {
		return nil, errors.New("piper models directory is required")
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = piperTimeout
	}

	b := &PiperBackend{
		cfg:    cfg,
		run:    runCommand,
		logger: log.Default().WithPrefix("piper"),
	}
	if err := b.scan(); err != nil {
		return nil, err
	}
	return b, nil
}

// Voices returns one voice per model, ordered by file name.
func (b *PiperBackend) Voices() []voice.Voice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]voice.Voice(nil), b.voices...)
}

// OnVoicesChanged registers fn to run after models are added or removed.
func (b *PiperBackend) OnVoicesChanged(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

// Watch rescans the models directory whenever a model appears or goes away.
// It returns once the watch is established.
func (b *PiperBackend) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(b.cfg.ModelsDir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", b.cfg.ModelsDir, err)
	}

	b.mu.Lock()
	b.watcher = w
	b.mu.Unlock()

	go b.watch(w)
	return nil
}

func (b *PiperBackend) watch(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, modelExt) {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			b.logger.Debug("Model directory changed", "file", filepath.Base(ev.Name), "op", ev.Op.String())
			if err := b.scan(); err != nil {
				b.logger.Warn("Failed to rescan models", "err", err)
				continue
			}
			b.notify()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			b.logger.Warn("Model watcher error", "err", err)
		}
	}
}

func (b *PiperBackend) notify() {
	b.mu.RLock()
	listeners := append([]func(){}, b.listeners...)
	b.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Close stops watching the models directory.
func (b *PiperBackend) Close() error {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.mu.Unlock()

	if w != nil {
		return w.Close()
	}
	return nil
}

func (b *PiperBackend) scan() error {
	entries, err := os.ReadDir(b.cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("failed to read models directory: %w", err)
	}

	var voices []voice.Voice
	models := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), modelExt) {
			continue
		}
		v, ok := voiceFromModel(e.Name())
		if !ok {
			b.logger.Debug("Skipping model with unknown language", "file", e.Name())
			continue
		}
		voices = append(voices, v)
		models[v.URI] = filepath.Join(b.cfg.ModelsDir, e.Name())
	}

	b.mu.Lock()
	b.voices = voices
	b.models = models
	b.mu.Unlock()
	return nil
}

// voiceFromModel derives a voice from a Piper model file name of the form
// <locale>-<name>-<quality>.onnx, e.g. es_MX-claude-high.onnx.
func voiceFromModel(file string) (voice.Voice, bool) {
	id := strings.TrimSuffix(file, modelExt)
	parts := strings.SplitN(id, "-", 3)

	tag, err := language.Parse(parts[0])
	if err != nil {
		return voice.Voice{}, false
	}

	name := id
	if len(parts) > 1 {
		name = fmt.Sprintf("%s (%s)", parts[1], tag)
		if len(parts) > 2 {
			name = fmt.Sprintf("%s (%s, %s)", parts[1], tag, parts[2])
		}
	}

	return voice.Voice{
		URI:          piperScheme + id,
		Name:         name,
		Lang:         tag.String(),
		LocalService: true,
	}, true
}

// model finds the model for v, or the first model whose language matches
// lang when no voice was chosen.
func (b *PiperBackend) model(v *voice.Voice, lang string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if v != nil {
		if path, ok := b.models[v.URI]; ok {
			return path, nil
		}
		return "", fmt.Errorf("%w: %s", ErrNoVoice, v.URI)
	}

	want, err := language.Parse(lang)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", lang, err)
	}
	wantBase, _ := want.Base()
	for _, cand := range b.voices {
		tag, err := language.Parse(cand.Lang)
		if err != nil {
			continue
		}
		if base, _ := tag.Base(); base == wantBase {
			return b.models[cand.URI], nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoVoice, lang)
}

// Synthesize runs piper once for text. Speaking rate maps to Piper's
// length scale, its inverse.
func (b *PiperBackend) Synthesize(ctx context.Context, text string, v *voice.Voice, lang string, rate float64) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	modelPath, err := b.model(v, lang)
	if err != nil {
		return nil, newError(ErrorCodeSynthesis, "no piper model", err)
	}
	if rate <= 0 {
		rate = 1
	}

	args := []string{
		"--model", modelPath,
		"--config", modelPath + ".json",
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1/rate),
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	b.logger.Debug("Running piper", "model", filepath.Base(modelPath), "rate", rate)
	pcm, err := b.run(ctx, b.cfg.Binary, args, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	if len(pcm) > piperMaxAudio {
		return nil, newError(ErrorCodeSynthesis,
			fmt.Sprintf("piper output too large: %d bytes (max %d)", len(pcm), piperMaxAudio), nil)
	}
	return pcm, nil
}
