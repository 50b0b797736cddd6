// Package align computes word intervals for an expected word sequence within
// a recording. Back-ends shell out to external forced-alignment tools.
package align

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
)

// Aligner produces time-ordered word intervals for the expected words.
//
// Implementations must return at most len(words) intervals (merges are
// allowed, splits are not), strictly ordered, non-overlapping and contained
// in [0, wf.Seconds()]. When the underlying tool cannot run they fail with
// models.ErrAlignmentUnavailable.
type Aligner interface {
	Align(ctx context.Context, wf *audio.Waveform, words []string) ([]models.WordInterval, error)

	// Name identifies the back-end in logs and metrics.
	Name() string
}

// Config selects and configures an alignment back-end.
type Config struct {
	Backend          string // mfa, aeneas or none
	MFABinary        string
	MFADictionary    string
	MFAAcousticModel string
	AeneasPython     string
	AeneasLanguage   string
	TempDir          string
}

// DefaultConfig returns the default alignment configuration.
func DefaultConfig() Config {
	return Config{
		Backend:          "mfa",
		MFABinary:        "mfa",
		MFADictionary:    "english_us_arpa",
		MFAAcousticModel: "english_us_arpa",
		AeneasPython:     "python3",
		AeneasLanguage:   "eng",
	}
}

// New returns the configured back-end. It returns a nil Aligner for the
// "none" back-end; transcript-bearing requests then fail with
// models.ErrAlignmentUnavailable.
func New(cfg Config) (Aligner, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "mfa":
		return NewMFA(cfg), nil
	case "aeneas":
		return NewAeneas(cfg), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown alignment backend %q", cfg.Backend)
	}
}

// Tokenize splits a prompt transcript into expected words on whitespace.
func Tokenize(transcript string) []string {
	return strings.Fields(transcript)
}

// DropSilence removes intervals whose label is empty after trimming.
func DropSilence(intervals []models.WordInterval) []models.WordInterval {
	out := make([]models.WordInterval, 0, len(intervals))
	for _, iv := range intervals {
		if iv.IsSilence() {
			continue
		}
		iv.Label = strings.TrimSpace(iv.Label)
		out = append(out, iv)
	}
	return out
}

// tolerance absorbs float noise from tool output printed with limited precision.
const tolerance = 1e-6

// Validate checks the aligner contract: count, ordering, overlap and bounds.
func Validate(intervals []models.WordInterval, tokenCount int, duration float64) error {
	if len(intervals) > tokenCount {
		return fmt.Errorf("%w: %d intervals for %d expected words", models.ErrInvalidInterval, len(intervals), tokenCount)
	}
	for i, iv := range intervals {
		if iv.Start < 0 || iv.End <= iv.Start || iv.End > duration+tolerance {
			return fmt.Errorf("%w: interval %d [%.3f, %.3f) outside [0, %.3f]",
				models.ErrInvalidInterval, i, iv.Start, iv.End, duration)
		}
		if i == 0 {
			continue
		}
		prev := intervals[i-1]
		if iv.Start <= prev.Start || iv.Start < prev.End-tolerance {
			return fmt.Errorf("%w: interval %d [%.3f, %.3f) overlaps or precedes [%.3f, %.3f)",
				models.ErrInvalidInterval, i, iv.Start, iv.End, prev.Start, prev.End)
		}
	}
	return nil
}

// clampToDuration trims interval ends that run past the waveform, which
// happens when a tool rounds the file length up.
func clampToDuration(intervals []models.WordInterval, duration float64) []models.WordInterval {
	for i := range intervals {
		if intervals[i].End > duration {
			intervals[i].End = duration
		}
		if intervals[i].Start > duration {
			intervals[i].Start = duration
		}
	}
	return intervals
}

// commandRunner runs an external command and returns its combined output.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// toolError classifies a failed tool invocation as ErrAlignmentUnavailable.
// Tool output stays in the debug log and never reaches callers.
func toolError(ctx context.Context, tool string, output []byte, err error) error {
	log.Debug().
		Str("component", "aligner").
		Str("tool", tool).
		Str("output", strings.TrimSpace(string(output))).
		Err(err).
		Msg("Alignment tool failed")

	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %s is not installed", models.ErrAlignmentUnavailable, tool)
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %s timed out", models.ErrAlignmentUnavailable, tool)
	case ctx.Err() != nil:
		return fmt.Errorf("%w: %s interrupted", models.ErrAlignmentUnavailable, tool)
	default:
		return fmt.Errorf("%w: %s failed", models.ErrAlignmentUnavailable, tool)
	}
}
