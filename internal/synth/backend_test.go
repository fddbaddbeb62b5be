package synth

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/studynotes/internal/voice"
)

type call struct {
	name  string
	args  []string
	stdin string
}

func stubRunner(calls *[]call, out []byte, err error) runner {
	return func(_ context.Context, name string, args []string, stdin io.Reader) ([]byte, error) {
		c := call{name: name, args: args}
		if stdin != nil {
			b, _ := io.ReadAll(stdin)
			c.stdin = string(b)
		}
		*calls = append(*calls, c)
		return out, err
	}
}

func touch(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte{0}, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVoiceFromModel(t *testing.T) {
	tests := []struct {
		file string
		ok   bool
		want voice.Voice
	}{
		{
			file: "es_MX-claude-high.onnx",
			ok:   true,
			want: voice.Voice{URI: "piper:es_MX-claude-high", Name: "claude (es-MX, high)", Lang: "es-MX", LocalService: true},
		},
		{
			file: "es_ES-davefx-medium.onnx",
			ok:   true,
			want: voice.Voice{URI: "piper:es_ES-davefx-medium", Name: "davefx (es-ES, medium)", Lang: "es-ES", LocalService: true},
		},
		{
			file: "en_US-amy.onnx",
			ok:   true,
			want: voice.Voice{URI: "piper:en_US-amy", Name: "amy (en-US)", Lang: "en-US", LocalService: true},
		},
		{file: "1234.onnx", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.file, func(t *testing.T) {
			got, ok := voiceFromModel(tc.file)
			if ok != tc.ok {
				t.Fatalf("Expected ok=%v, got %v", tc.ok, ok)
			}
			if ok && got != tc.want {
				t.Errorf("Expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestPiperBackendScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "es_MX-claude-high.onnx")
	touch(t, dir, "es_MX-claude-high.onnx.json")
	touch(t, dir, "en_US-amy-low.onnx")
	touch(t, dir, "README.md")

	b, err := NewPiperBackend(PiperConfig{ModelsDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	voices := b.Voices()
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d: %+v", len(voices), voices)
	}
	if voices[0].URI != "piper:en_US-amy-low" || voices[1].URI != "piper:es_MX-claude-high" {
		t.Errorf("Expected voices ordered by file name, got %+v", voices)
	}
}

func TestPiperBackendMissingDir(t *testing.T) {
	if _, err := NewPiperBackend(PiperConfig{ModelsDir: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("Expected error for missing directory")
	}
	if _, err := NewPiperBackend(PiperConfig{}); err == nil {
		t.Error("Expected error for empty directory path")
	}
}

func TestPiperBackendSynthesize(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "es_MX-claude-high.onnx")
	touch(t, dir, "es_ES-davefx-medium.onnx")

	b, err := NewPiperBackend(PiperConfig{ModelsDir: dir, Binary: "/opt/piper/piper"})
	if err != nil {
		t.Fatal(err)
	}

	var calls []call
	b.run = stubRunner(&calls, []byte{1, 2, 3, 4}, nil)

	v := &voice.Voice{URI: "piper:es_MX-claude-high"}
	pcm, err := b.Synthesize(context.Background(), "¿Qué tal?", v, "es-MX", 0.8)
	if err != nil {
		t.Fatal(err)
	}
	if len(pcm) != 4 {
		t.Errorf("Expected 4 bytes, got %d", len(pcm))
	}

	c := calls[0]
	if c.name != "/opt/piper/piper" {
		t.Errorf("Expected configured binary, got %s", c.name)
	}
	if c.stdin != "¿Qué tal?" {
		t.Errorf("Expected text on stdin, got %q", c.stdin)
	}
	args := strings.Join(c.args, " ")
	model := filepath.Join(dir, "es_MX-claude-high.onnx")
	for _, want := range []string{"--model " + model, "--config " + model + ".json", "--output-raw", "--length-scale 1.25"} {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %q", want, args)
		}
	}
}

func TestPiperBackendModelSelection(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "en_US-amy-low.onnx")
	touch(t, dir, "es_ES-davefx-medium.onnx")

	b, err := NewPiperBackend(PiperConfig{ModelsDir: dir})
	if err != nil {
		t.Fatal(err)
	}

	path, err := b.model(nil, "es-ES")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "es_ES-davefx-medium.onnx" {
		t.Errorf("Expected Spanish model for bare language, got %s", path)
	}

	if _, err := b.model(nil, "fr-FR"); !errors.Is(err, ErrNoVoice) {
		t.Errorf("Expected ErrNoVoice, got %v", err)
	}
	if _, err := b.model(&voice.Voice{URI: "piper:gone"}, "es-ES"); !errors.Is(err, ErrNoVoice) {
		t.Errorf("Expected ErrNoVoice for unknown URI, got %v", err)
	}
}

func TestPiperBackendWatch(t *testing.T) {
	dir := t.TempDir()
	b, err := NewPiperBackend(PiperConfig{ModelsDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	changed := make(chan struct{}, 4)
	b.OnVoicesChanged(func() { changed <- struct{}{} })
	if err := b.Watch(); err != nil {
		t.Fatal(err)
	}

	touch(t, dir, "es_MX-claude-high.onnx")

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for voices changed")
	}
	if n := len(b.Voices()); n != 1 {
		t.Errorf("Expected 1 voice after adding a model, got %d", n)
	}
}

func TestGTTSBackendVoices(t *testing.T) {
	voices := NewGTTSBackend(GTTSConfig{}).Voices()
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %d", len(voices))
	}
	for _, v := range voices {
		if !strings.HasPrefix(v.Lang, "es-") {
			t.Errorf("Expected Spanish voice, got %+v", v)
		}
		if !strings.Contains(v.Name, "Google") {
			t.Errorf("Expected Google in name, got %q", v.Name)
		}
		if v.LocalService {
			t.Errorf("Expected network voice, got %+v", v)
		}
	}
}

func TestGTTSLookup(t *testing.T) {
	tests := []struct {
		name    string
		voice   *voice.Voice
		lang    string
		wantTLD string
		wantErr bool
	}{
		{name: "voice", voice: &voice.Voice{URI: "gtts:es-MX"}, wantTLD: "com.mx"},
		{name: "fallback language", lang: "es-ES", wantTLD: "es"},
		{name: "other spanish locale", lang: "es-AR", wantTLD: "es"},
		{name: "unknown voice", voice: &voice.Voice{URI: "piper:x"}, wantErr: true},
		{name: "not spanish", lang: "fr-FR", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g, err := lookup(tc.voice, tc.lang)
			if tc.wantErr {
				if !errors.Is(err, ErrNoVoice) {
					t.Errorf("Expected ErrNoVoice, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if g.tld != tc.wantTLD {
				t.Errorf("Expected tld %s, got %s", tc.wantTLD, g.tld)
			}
		})
	}
}

func TestGTTSBackendSynthesize(t *testing.T) {
	b := NewGTTSBackend(GTTSConfig{TempDir: t.TempDir()})
	var calls []call
	b.run = stubRunner(&calls, []byte{9, 9}, nil)

	v := &voice.Voice{URI: "gtts:es-MX"}
	if _, err := b.Synthesize(context.Background(), "hola", v, "es-MX", 0.9); err != nil {
		t.Fatal(err)
	}

	if len(calls) != 2 {
		t.Fatalf("Expected gtts-cli and ffmpeg calls, got %d", len(calls))
	}
	if got := strings.Join(calls[0].args, " "); got != "hola -l es --tld com.mx -o -" {
		t.Errorf("Unexpected gtts-cli args: %q", got)
	}
	if calls[1].name != "ffmpeg" {
		t.Errorf("Expected ffmpeg, got %s", calls[1].name)
	}
}

func TestFFmpegArgsTempo(t *testing.T) {
	tests := []struct {
		speed float64
		want  string
	}{
		{speed: 1, want: ""},
		{speed: 0.9, want: "atempo=0.90"},
		{speed: 0.2, want: "atempo=0.50"},
		{speed: 3, want: "atempo=2.00"},
	}

	for _, tc := range tests {
		args := strings.Join(ffmpegArgs("in.mp3", tc.speed), " ")
		if tc.want == "" {
			if strings.Contains(args, "atempo") {
				t.Errorf("speed %v: expected no tempo filter, got %q", tc.speed, args)
			}
			continue
		}
		if !strings.Contains(args, tc.want) {
			t.Errorf("speed %v: expected %q in %q", tc.speed, tc.want, args)
		}
	}
}

func TestGTTSRateLimitHonorsContext(t *testing.T) {
	b := NewGTTSBackend(GTTSConfig{RequestsPerMinute: 1, TempDir: t.TempDir()})
	var calls []call
	b.run = stubRunner(&calls, []byte{1}, nil)

	if _, err := b.Synthesize(context.Background(), "uno", nil, "es-ES", 1); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := b.Synthesize(ctx, "dos", nil, "es-ES", 1); err == nil {
		t.Error("Expected rate limiter to give up when the context ends")
	}
}

func TestDetect(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "es_MX-claude-high.onnx")

	orig := lookPath
	defer func() { lookPath = orig }()

	tests := []struct {
		name      string
		installed map[string]bool
		cfg       Config
		want      string
		wantErr   error
	}{
		{name: "nothing installed", installed: map[string]bool{}, cfg: Config{}, want: ""},
		{name: "auto prefers piper", installed: map[string]bool{"piper": true, "gtts-cli": true, "ffmpeg": true},
			cfg: Config{Piper: PiperConfig{ModelsDir: dir}}, want: "piper"},
		{name: "auto falls back to gtts", installed: map[string]bool{"gtts-cli": true, "ffmpeg": true},
			cfg: Config{Piper: PiperConfig{ModelsDir: dir}}, want: "gtts"},
		{name: "gtts needs ffmpeg", installed: map[string]bool{"gtts-cli": true},
			cfg: Config{Engine: EngineGTTS}, want: ""},
		{name: "piper without models", installed: map[string]bool{"piper": true},
			cfg: Config{Engine: EnginePiper}, want: ""},
		{name: "unknown engine", installed: map[string]bool{}, cfg: Config{Engine: "espeak"}, wantErr: ErrUnknownEngine},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lookPath = func(file string) (string, error) {
				if tc.installed[file] {
					return "/usr/bin/" + file, nil
				}
				return "", errors.New("not found")
			}

			b, err := Detect(tc.cfg)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c, ok := b.(io.Closer); ok {
				defer c.Close()
			}

			var got string
			switch b.(type) {
			case *PiperBackend:
				got = "piper"
			case *GTTSBackend:
				got = "gtts"
			}
			if got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := newError(ErrorCodeInvalidInput, "nothing to say", ErrEmptyText)
	if !errors.Is(err, ErrEmptyText) {
		t.Error("Expected error to unwrap to ErrEmptyText")
	}
	var se *Error
	if !errors.As(validateText(strings.Repeat("a", maxTextSize+1)), &se) || se.Code != ErrorCodeInvalidInput {
		t.Errorf("Expected invalid input error, got %v", se)
	}
}
