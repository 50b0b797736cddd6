package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/protobuf/types/known/durationpb"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
)

// testRecognizer implements recognizer for testing
type testRecognizer struct {
	resp *speechpb.RecognizeResponse
	err  error
	reqs []*speechpb.RecognizeRequest
}

func (r *testRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	r.reqs = append(r.reqs, req)
	return r.resp, r.err
}

func (r *testRecognizer) Close() error { return nil }

func word(w string, start, end time.Duration, conf float32) *speechpb.WordInfo {
	return &speechpb.WordInfo{
		Word:       w,
		StartTime:  durationpb.New(start),
		EndTime:    durationpb.New(end),
		Confidence: conf,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LanguageCode != "en-US" {
		t.Errorf("expected default language 'en-US', got %s", cfg.LanguageCode)
	}
}

func TestTranscribeClip(t *testing.T) {
	rec := &testRecognizer{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "Hello", Confidence: 0.82}},
		}},
	}}
	tr := newWithClient(rec, Config{})

	clip := segment.Clip{
		Label:    "hello",
		Interval: models.WordInterval{Label: "hello", Start: 0.1, End: 0.5},
		Audio:    audio.NewWaveform(16000, make([]float64, 2400)),
	}
	r, err := tr.TranscribeClip(context.Background(), clip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SurfaceText != "Hello" || r.NormalizedText != "hello" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Confidence == nil || float32(*r.Confidence) != 0.82 {
		t.Errorf("expected confidence 0.82, got %v", r.Confidence)
	}

	cfg := rec.reqs[0].GetConfig()
	if cfg.GetEncoding() != speechpb.RecognitionConfig_LINEAR16 {
		t.Errorf("expected LINEAR16, got %v", cfg.GetEncoding())
	}
	if cfg.GetSampleRateHertz() != 16000 {
		t.Errorf("expected 16000 Hz, got %d", cfg.GetSampleRateHertz())
	}
	if cfg.GetLanguageCode() != "en-US" {
		t.Errorf("expected en-US, got %s", cfg.GetLanguageCode())
	}
	if got := len(rec.reqs[0].GetAudio().GetContent()); got != 4800 {
		t.Errorf("expected 4800 bytes of PCM, got %d", got)
	}
}

func TestTranscribeClip_NoSpeech(t *testing.T) {
	tr := newWithClient(&testRecognizer{resp: &speechpb.RecognizeResponse{}}, Config{})
	clip := segment.Clip{Audio: audio.NewWaveform(16000, make([]float64, 2400))}

	r, err := tr.TranscribeClip(context.Background(), clip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SurfaceText != "" || r.Confidence != nil {
		t.Errorf("expected empty result, got %+v", r)
	}
}

func TestTranscribeUtterance(t *testing.T) {
	rec := &testRecognizer{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{{
			Alternatives: []*speechpb.SpeechRecognitionAlternative{{
				Transcript: "hello world",
				Words: []*speechpb.WordInfo{
					word("hello", 100*time.Millisecond, 400*time.Millisecond, 0.9),
					word("world", 500*time.Millisecond, 900*time.Millisecond, 0),
				},
			}},
		}},
	}}
	tr := newWithClient(rec, Config{LanguageCode: "en-GB"})

	words, err := tr.TranscribeUtterance(context.Background(), audio.NewWaveform(16000, make([]float64, 16000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[0].Start != 0.1 || words[0].End != 0.4 {
		t.Errorf("unexpected span [%v, %v]", words[0].Start, words[0].End)
	}
	if words[1].Confidence != nil {
		t.Errorf("expected unset confidence to be nil, got %v", *words[1].Confidence)
	}
	if !rec.reqs[0].GetConfig().GetEnableWordTimeOffsets() {
		t.Error("expected word time offsets enabled")
	}
	if rec.reqs[0].GetConfig().GetLanguageCode() != "en-GB" {
		t.Errorf("expected en-GB, got %s", rec.reqs[0].GetConfig().GetLanguageCode())
	}
}

func TestTranscribe_Error(t *testing.T) {
	tr := newWithClient(&testRecognizer{err: errors.New("permission denied")}, Config{})

	_, err := tr.TranscribeUtterance(context.Background(), audio.NewWaveform(16000, make([]float64, 1600)))
	if !errors.Is(err, models.ErrRecognitionUnavailable) {
		t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
	}
}
