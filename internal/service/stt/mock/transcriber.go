// Package mock provides a recognizer for local development without
// credentials. Clips are "recognized" as their expected label; whole
// utterances cycle through canned practice sentences.
package mock

import (
	"context"
	"strings"
	"sync"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
	"pronunciation-practice-service/internal/service/stt"
)

// DefaultConfidence is reported for every mock word.
const DefaultConfidence = 0.9

// DefaultUtterances are returned in turn by TranscribeUtterance.
var DefaultUtterances = []string{
	"The quick brown fox jumps over the lazy dog.",
	"She sells sea shells by the sea shore.",
	"I'd like a cup of coffee, please.",
	"How much wood would a woodchuck chuck?",
}

// Transcriber implements stt.Transcriber with canned responses.
type Transcriber struct {
	mu         sync.Mutex
	next       int
	utterances []string
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a mock transcriber cycling DefaultUtterances.
func New() *Transcriber {
	return &Transcriber{utterances: DefaultUtterances}
}

// NewWithUtterances creates a mock transcriber cycling the given sentences.
func NewWithUtterances(utterances ...string) *Transcriber {
	return &Transcriber{utterances: utterances}
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "mock" }

// TranscribeClip echoes the clip label.
func (t *Transcriber) TranscribeClip(ctx context.Context, clip segment.Clip) (models.WordResult, error) {
	if err := ctx.Err(); err != nil {
		return models.WordResult{}, stt.Unavailable("mock", err)
	}
	return stt.ClipResult(clip.Label, models.Confidence(DefaultConfidence), clip), nil
}

// TranscribeUtterance returns the next canned sentence, with words spread
// evenly over the recording.
func (t *Transcriber) TranscribeUtterance(ctx context.Context, wf *audio.Waveform) ([]models.WordResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, stt.Unavailable("mock", err)
	}

	t.mu.Lock()
	var sentence string
	if len(t.utterances) > 0 {
		sentence = t.utterances[t.next%len(t.utterances)]
		t.next++
	}
	t.mu.Unlock()

	words := strings.Fields(sentence)
	if len(words) == 0 {
		return []models.WordResult{}, nil
	}

	step := wf.Seconds() / float64(len(words))
	out := make([]models.WordResult, len(words))
	for i, w := range words {
		start := float64(i) * step
		out[i] = models.NewWordResult(w, models.Confidence(DefaultConfidence)).WithSpan(start, start+step)
	}
	return out, nil
}
