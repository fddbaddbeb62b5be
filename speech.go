package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/studynotes/internal/audio"
	"github.com/dgnsrekt/studynotes/internal/cache"
	"github.com/dgnsrekt/studynotes/internal/prefs"
	"github.com/dgnsrekt/studynotes/internal/synth"
	"github.com/dgnsrekt/studynotes/internal/voice"
	"github.com/dgnsrekt/studynotes/utils"
)

// speech wires the voice selector to whatever engine this machine has.
type speech struct {
	selector *voice.Selector
	speaker  *synth.Speaker
	player   *audio.Player
	cache    *cache.AudioCache
}

// newSpeech builds the selector. wrap, if set, decorates the engine before
// the selector sees it.
func newSpeech(wrap func(voice.Engine) voice.Engine, opts ...voice.Option) (*speech, error) {
	sp := &speech{}

	store, err := preferenceStore()
	if err != nil {
		return nil, err
	}

	backend, err := synth.Detect(synthConfig())
	if err != nil {
		if errors.Is(err, synth.ErrUnknownEngine) {
			return nil, err
		}
		log.Warn("Speech engine unavailable", "err", err)
	}

	var engine voice.Engine
	if backend != nil {
		engine = sp.startSpeaker(backend)
	}
	if engine == nil {
		log.Debug("Speech synthesis unsupported on this machine")
	} else if wrap != nil {
		engine = wrap(engine)
	}

	opts = append([]voice.Option{voice.WithRate(viper.GetFloat64("tts.rate"))}, opts...)
	sp.selector = voice.New(engine, store, opts...)
	return sp, nil
}

// startSpeaker opens the audio device and cache for backend. It returns nil
// when there is no audio device.
func (sp *speech) startSpeaker(backend synth.Backend) voice.Engine {
	player, err := audio.NewPlayer(audio.DefaultConfig())
	if err != nil {
		log.Warn("Audio device unavailable", "err", err)
		if c, ok := backend.(interface{ Close() error }); ok {
			_ = c.Close()
		}
		return nil
	}
	sp.player = player

	var speakerOpts []synth.SpeakerOption
	if c, err := audioCache(); err != nil {
		log.Warn("Audio cache disabled", "err", err)
	} else {
		sp.cache = c
		speakerOpts = append(speakerOpts, synth.WithCache(c))
	}

	sp.speaker = synth.NewSpeaker(backend, player, speakerOpts...)
	return sp.speaker
}

// Close stops speech and releases the audio device and cache.
func (sp *speech) Close() error {
	var errs []error
	if sp.speaker != nil {
		errs = append(errs, sp.speaker.Close())
	}
	if sp.player != nil {
		errs = append(errs, sp.player.Close())
	}
	if sp.cache != nil {
		errs = append(errs, sp.cache.Close())
	}
	return errors.Join(errs...)
}

func preferenceStore() (voice.Store, error) {
	if viper.GetBool("prefs.no_persist") {
		return prefs.NewMemoryStore(), nil
	}
	path := viper.GetString("prefs.file")
	if path == "" {
		var err error
		if path, err = prefs.DefaultPath(appName); err != nil {
			return nil, err
		}
	}
	return prefs.NewFileStore(utils.ExpandPath(path)), nil
}

func synthConfig() synth.Config {
	return synth.Config{
		Engine: viper.GetString("tts.engine"),
		Piper: synth.PiperConfig{
			Binary:    viper.GetString("tts.piper.binary"),
			ModelsDir: utils.ExpandPath(viper.GetString("tts.piper.models")),
		},
		GTTS: synth.GTTSConfig{
			RequestsPerMinute: viper.GetInt("tts.gtts.requests_per_minute"),
		},
	}
}

func cacheDir() (string, error) {
	if dir := viper.GetString("tts.cache.dir"); dir != "" {
		return utils.ExpandPath(dir), nil
	}
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "audio"), nil
}

func audioCache() (*cache.AudioCache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	cfg := cache.DefaultConfig(dir)
	cfg.DiskCapacity = int64(viper.GetInt("tts.cache.max_size")) * 1024 * 1024
	return cache.New(cfg) //nolint:wrapcheck
}
