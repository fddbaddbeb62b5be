package synth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/studynotes/internal/voice"
)

const (
	gttsScheme       = "gtts:"
	gttsTimeout      = 30 * time.Second
	ffmpegTimeout    = 15 * time.Second
	gttsSampleRate   = 22050
	gttsMaxPCM       = 20 * 1024 * 1024
	defaultPerMinute = 50
)

// gttsVoice is a Google Translate accent, selected by top-level domain.
type gttsVoice struct {
	lang string
	tld  string
}

// gttsCatalog lists the Spanish accents Google Translate offers.
var gttsCatalog = []gttsVoice{
	{lang: "es-ES", tld: "es"},
	{lang: "es-MX", tld: "com.mx"},
	{lang: "es-US", tld: "us"},
}

// GTTSConfig configures the gTTS backend.
type GTTSConfig struct {
	// Binary is the gtts-cli executable. Defaults to "gtts-cli".
	Binary string

	// FFmpeg is the ffmpeg executable. Defaults to "ffmpeg".
	FFmpeg string

	// RequestsPerMinute keeps us under Google's throttling. Defaults to 50.
	RequestsPerMinute int

	// TempDir holds intermediate MP3 files. Defaults to the system temp dir.
	TempDir string
}

// GTTSBackend synthesizes with Google Translate through gtts-cli and
// converts the MP3 it returns to PCM with ffmpeg.
type GTTSBackend struct {
	cfg     GTTSConfig
	run     runner
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewGTTSBackend creates a gTTS backend.
func NewGTTSBackend(cfg GTTSConfig) *GTTSBackend {
	if cfg.Binary == "" {
		cfg.Binary = "gtts-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = defaultPerMinute
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}

	return &GTTSBackend{
		cfg:     cfg,
		run:     runCommand,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		logger:  log.Default().WithPrefix("gtts"),
	}
}

// Voices returns the fixed accent catalog.
func (b *GTTSBackend) Voices() []voice.Voice {
	voices := make([]voice.Voice, 0, len(gttsCatalog))
	for _, g := range gttsCatalog {
		voices = append(voices, voice.Voice{
			URI:  gttsScheme + g.lang,
			Name: fmt.Sprintf("Google español (%s)", g.lang),
			Lang: g.lang,
		})
	}
	return voices
}

// lookup maps a voice, or a bare language when v is nil, to a catalog entry.
// Unknown Spanish locales fall back to the Spain accent.
func lookup(v *voice.Voice, lang string) (gttsVoice, error) {
	if v != nil {
		for _, g := range gttsCatalog {
			if v.URI == gttsScheme+g.lang {
				return g, nil
			}
		}
		return gttsVoice{}, fmt.Errorf("%w: %s", ErrNoVoice, v.URI)
	}
	for _, g := range gttsCatalog {
		if strings.EqualFold(g.lang, lang) {
			return g, nil
		}
	}
	if strings.HasPrefix(strings.ToLower(lang), "es") {
		return gttsCatalog[0], nil
	}
	return gttsVoice{}, fmt.Errorf("%w: %s", ErrNoVoice, lang)
}

// Synthesize fetches MP3 from gtts-cli and converts it to PCM.
func (b *GTTSBackend) Synthesize(ctx context.Context, text string, v *voice.Voice, lang string, speed float64) ([]byte, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	g, err := lookup(v, lang)
	if err != nil {
		return nil, newError(ErrorCodeSynthesis, "no gTTS accent", err)
	}

	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	mp3, err := b.fetch(ctx, text, g)
	if err != nil {
		return nil, err
	}
	return b.decode(ctx, mp3, speed)
}

func (b *GTTSBackend) fetch(ctx context.Context, text string, g gttsVoice) ([]byte, error) {
	lang, _, _ := strings.Cut(g.lang, "-")
	args := []string{text, "-l", lang, "--tld", g.tld, "-o", "-"}

	ctx, cancel := context.WithTimeout(ctx, gttsTimeout)
	defer cancel()

	b.logger.Debug("Running gtts-cli", "lang", g.lang, "tld", g.tld)
	return b.run(ctx, b.cfg.Binary, args, nil)
}

func (b *GTTSBackend) decode(ctx context.Context, mp3 []byte, speed float64) ([]byte, error) {
	f, err := os.CreateTemp(b.cfg.TempDir, "gtts-*.mp3")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp MP3 file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(mp3); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write MP3 data: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to write MP3 data: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ffmpegTimeout)
	defer cancel()

	pcm, err := b.run(ctx, b.cfg.FFmpeg, ffmpegArgs(f.Name(), speed), nil)
	if err != nil {
		return nil, err
	}
	if len(pcm) > gttsMaxPCM {
		return nil, newError(ErrorCodeSynthesis,
			fmt.Sprintf("ffmpeg output too large: %d bytes (max %d)", len(pcm), gttsMaxPCM), nil)
	}
	return pcm, nil
}

// ffmpegArgs converts input to mono s16le at the player's sample rate. The
// atempo filter only accepts 0.5 to 2.0.
func ffmpegArgs(input string, speed float64) []string {
	args := []string{
		"-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ar", fmt.Sprint(gttsSampleRate),
		"-ac", "1",
	}
	if speed > 0 && speed != 1 {
		speed = min(max(speed, 0.5), 2.0)
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", speed))
	}
	return append(args, "-")
}
