package audio

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"pronunciation-practice-service/internal/models"
)

// Preprocessor normalizes an uploaded recording into a canonical Waveform.
type Preprocessor interface {
	// Decode decodes raw container bytes. formatHint is a file extension or
	// MIME type and may be empty. Fails with models.ErrUnsupportedFormat when
	// the input cannot be decoded.
	Decode(ctx context.Context, raw []byte, formatHint string) (*Waveform, error)
}

// Config holds preprocessor settings.
type Config struct {
	FFmpegPath string // ffmpeg binary, looked up on PATH when bare
	SampleRate int    // canonical output rate
	TempDir    string // parent for per-call scratch directories; os.TempDir() when empty
}

// DefaultConfig returns the default preprocessor configuration.
func DefaultConfig() Config {
	return Config{
		FFmpegPath: "ffmpeg",
		SampleRate: DefaultSampleRate,
	}
}

// commandRunner runs an external command and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpegPreprocessor decodes WAV input in-process and re-encodes every other
// container (browser WebM/Opus, Ogg, MP3, M4A) through ffmpeg.
type FFmpegPreprocessor struct {
	cfg Config
	run commandRunner
}

// NewFFmpegPreprocessor creates a preprocessor with the given configuration.
func NewFFmpegPreprocessor(cfg Config) *FFmpegPreprocessor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	return &FFmpegPreprocessor{cfg: cfg, run: execRunner}
}

// Decode implements Preprocessor.
func (p *FFmpegPreprocessor) Decode(ctx context.Context, raw []byte, formatHint string) (*Waveform, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", models.ErrUnsupportedFormat)
	}
	if IsWAV(raw) {
		wf, err := DecodeWAV(raw, p.cfg.SampleRate)
		if err == nil {
			return wf, nil
		}
		// float, A-law and other encodings beep cannot read go through ffmpeg
		log.Debug().
			Str("component", "preprocessor").
			Err(err).
			Msg("In-process WAV decode failed, re-encoding with ffmpeg")
		if extensionFor(formatHint) == ".bin" {
			formatHint = "wav"
		}
	}

	workdir, err := os.MkdirTemp(p.cfg.TempDir, "practice-decode-*")
	if err != nil {
		return nil, fmt.Errorf("create decode dir: %w", err)
	}
	defer os.RemoveAll(workdir)

	in := filepath.Join(workdir, "input"+extensionFor(formatHint))
	out := filepath.Join(workdir, "canonical.wav")
	if err := os.WriteFile(in, raw, 0o600); err != nil {
		return nil, fmt.Errorf("write decode input: %w", err)
	}

	output, err := p.run(ctx, p.cfg.FFmpegPath,
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-ac", "1", "-ar", strconv.Itoa(p.cfg.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "wav",
		out,
	)
	if err != nil {
		switch {
		case errors.Is(err, exec.ErrNotFound):
			return nil, fmt.Errorf("ffmpeg not available: %w", err)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("decode interrupted: %w", ctx.Err())
		}
		log.Debug().
			Str("component", "preprocessor").
			Str("formatHint", formatHint).
			Str("ffmpegOutput", strings.TrimSpace(string(output))).
			Msg("ffmpeg could not decode input")
		return nil, fmt.Errorf("%w: ffmpeg could not decode input", models.ErrUnsupportedFormat)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("%w: no decoded output", models.ErrUnsupportedFormat)
	}
	return DecodeWAV(data, p.cfg.SampleRate)
}

// extensionFor maps a format hint (".webm", "webm", "audio/webm;codecs=opus")
// to a file extension ffmpeg can probe with.
func extensionFor(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return ".bin"
	}
	if mt, _, err := mime.ParseMediaType(hint); err == nil && strings.Contains(mt, "/") {
		hint = mt[strings.Index(mt, "/")+1:]
	}
	hint = strings.TrimPrefix(hint, ".")
	switch hint {
	case "webm", "ogg", "opus", "mp3", "wav", "m4a", "mp4", "flac", "aac":
		return "." + hint
	case "mpeg":
		return ".mp3"
	case "x-wav", "wave":
		return ".wav"
	default:
		return ".bin"
	}
}
