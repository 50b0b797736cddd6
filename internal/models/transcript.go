// Package models defines the data structures shared by the transcription
// pipeline, the sentence queue and the published events.
package models

import (
	"strings"
	"unicode"
)

// WordInterval is a timestamped span of the recording associated with one word.
// Start and End are seconds from the beginning of the waveform.
type WordInterval struct {
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns the length of the interval in seconds.
func (w WordInterval) Duration() float64 {
	return w.End - w.Start
}

// IsSilence reports whether the interval carries no lexical label.
func (w WordInterval) IsSilence() bool {
	return strings.TrimSpace(w.Label) == ""
}

// WordResult is the recognition result for a single word.
type WordResult struct {
	SurfaceText    string   `json:"surfaceText"`
	NormalizedText string   `json:"normalizedText"`
	Confidence     *float64 `json:"confidence"` // nil when the recognizer gives no per-word probability
	Start          float64  `json:"start"`
	End            float64  `json:"end"`
}

// NewWordResult builds a WordResult, deriving NormalizedText from the surface text.
func NewWordResult(surface string, confidence *float64) WordResult {
	surface = strings.TrimSpace(surface)
	return WordResult{
		SurfaceText:    surface,
		NormalizedText: Normalize(surface),
		Confidence:     confidence,
	}
}

// WithSpan returns a copy of r carrying the given interval bounds.
func (r WordResult) WithSpan(start, end float64) WordResult {
	r.Start = start
	r.End = end
	return r
}

// Normalize strips leading and trailing non-word runes and lowercases.
// Internal punctuation such as the apostrophe in "don't" is kept.
func Normalize(s string) string {
	trimmed := strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return strings.ToLower(trimmed)
}

// Confidence returns a pointer to c, for building WordResults.
func Confidence(c float64) *float64 {
	return &c
}

// TranscriptionResult is the outcome of one pipeline run.
// FullText is always the space-joined SurfaceText of Words, in order.
type TranscriptionResult struct {
	FullText string       `json:"fullText"`
	Words    []WordResult `json:"words"`
}

// NewTranscriptionResult assembles a result from ordered word results.
func NewTranscriptionResult(words []WordResult) TranscriptionResult {
	if words == nil {
		words = []WordResult{}
	}
	return TranscriptionResult{
		FullText: JoinSurface(words),
		Words:    words,
	}
}

// JoinSurface space-joins the surface text of words.
func JoinSurface(words []WordResult) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.SurfaceText
	}
	return strings.Join(parts, " ")
}

// IsConsistent reports whether FullText matches the joined words.
func (r TranscriptionResult) IsConsistent() bool {
	return r.FullText == JoinSurface(r.Words)
}
