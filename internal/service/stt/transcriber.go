// Package stt defines the speech-recognition capabilities used by the
// transcription pipeline.
package stt

import (
	"context"
	"fmt"
	"strings"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
)

// ClipTranscriber recognizes a single word clip.
type ClipTranscriber interface {
	TranscribeClip(ctx context.Context, clip segment.Clip) (models.WordResult, error)
}

// UtteranceTranscriber recognizes a whole recording and returns one result
// per recognized word, with word timestamps.
type UtteranceTranscriber interface {
	TranscribeUtterance(ctx context.Context, wf *audio.Waveform) ([]models.WordResult, error)
}

// Transcriber is implemented by every back-end (mock, openai, google).
type Transcriber interface {
	ClipTranscriber
	UtteranceTranscriber

	// Name identifies the provider in logs and metrics.
	Name() string
}

// Unavailable wraps a back-end failure as models.ErrRecognitionUnavailable.
func Unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrRecognitionUnavailable, provider, err)
}

// ClipResult builds the result for a recognized clip. Recognizers sometimes
// return several words or stray whitespace for one clip; the text is kept
// as recognized with whitespace collapsed.
func ClipResult(text string, confidence *float64, clip segment.Clip) models.WordResult {
	surface := strings.Join(strings.Fields(text), " ")
	return models.NewWordResult(surface, confidence).WithSpan(clip.Interval.Start, clip.Interval.End)
}

// BaseLanguage returns the ISO-639-1 part of a BCP-47 code ("en-US" -> "en").
func BaseLanguage(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.IndexAny(code, "-_"); i > 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}
