// Package google provides a Google Cloud Speech-to-Text recognizer.
package google

import (
	"context"
	"errors"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
	"pronunciation-practice-service/internal/service/stt"
)

// Config holds the recognition settings.
type Config struct {
	LanguageCode string
	Model        string // empty uses the API default
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{LanguageCode: "en-US"}
}

// recognizer is the subset of speech.Client used here.
type recognizer interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Transcriber implements stt.Transcriber with synchronous recognition.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
type Transcriber struct {
	cfg    Config
	client recognizer
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates a Google transcriber.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return newWithClient(c, cfg), nil
}

func newWithClient(c recognizer, cfg Config) *Transcriber {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = DefaultConfig().LanguageCode
	}
	return &Transcriber{cfg: cfg, client: c}
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "google" }

// Close releases the underlying client.
func (t *Transcriber) Close() error {
	return t.client.Close()
}

// TranscribeClip implements stt.ClipTranscriber. The clip confidence is the
// top alternative's; a zero confidence means the API did not set one.
func (t *Transcriber) TranscribeClip(ctx context.Context, clip segment.Clip) (models.WordResult, error) {
	resp, err := t.recognize(ctx, clip.Audio, false)
	if err != nil {
		return models.WordResult{}, err
	}

	var (
		parts []string
		conf  *float64
	)
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		parts = append(parts, alt.Transcript)
		if conf == nil {
			conf = confidence(alt.Confidence)
		}
	}
	return stt.ClipResult(strings.Join(parts, " "), conf, clip), nil
}

// TranscribeUtterance implements stt.UtteranceTranscriber from word time offsets.
func (t *Transcriber) TranscribeUtterance(ctx context.Context, wf *audio.Waveform) ([]models.WordResult, error) {
	resp, err := t.recognize(ctx, wf, true)
	if err != nil {
		return nil, err
	}

	words := []models.WordResult{}
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if len(alt.Words) == 0 && strings.TrimSpace(alt.Transcript) != "" {
			return nil, stt.Unavailable("google", errors.New("response has no word time offsets"))
		}
		for _, w := range alt.Words {
			wr := models.NewWordResult(w.Word, confidence(w.Confidence))
			words = append(words, wr.WithSpan(
				w.GetStartTime().AsDuration().Seconds(),
				w.GetEndTime().AsDuration().Seconds(),
			))
		}
	}
	return words, nil
}

func (t *Transcriber) recognize(ctx context.Context, wf *audio.Waveform, wordOffsets bool) (*speechpb.RecognizeResponse, error) {
	req := &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:              speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:       int32(wf.SampleRate()),
			LanguageCode:          t.cfg.LanguageCode,
			Model:                 t.cfg.Model,
			EnableWordConfidence:  true,
			EnableWordTimeOffsets: wordOffsets,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: wf.PCM16()},
		},
	}

	resp, err := t.client.Recognize(ctx, req)
	if err != nil {
		return nil, stt.Unavailable("google", err)
	}
	return resp, nil
}

func confidence(c float32) *float64 {
	if c == 0 {
		return nil
	}
	return models.Confidence(float64(c))
}
