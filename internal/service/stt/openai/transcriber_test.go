package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
)

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Transcriber {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)

	tr, err := New(Config{APIKey: "test-key", BaseURL: srv.URL + "/", Language: "en-US"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return tr
}

func testClip() segment.Clip {
	return segment.Clip{
		Label:    "hello",
		Interval: models.WordInterval{Label: "hello", Start: 0.1, End: 0.5},
		Audio:    audio.NewWaveform(16000, make([]float64, 2400)),
	}
}

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error without API key")
	}
}

func TestTranscribeClip(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("unexpected model %q", r.FormValue("model"))
		}
		if r.FormValue("response_format") != "json" {
			t.Errorf("unexpected response_format %q", r.FormValue("response_format"))
		}
		if r.FormValue("language") != "en" {
			t.Errorf("unexpected language %q", r.FormValue("language"))
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file: %v", err)
			return
		}
		f.Close()

		_ = json.NewEncoder(w).Encode(map[string]string{"text": " Hello. "})
	})

	r, err := tr.TranscribeClip(context.Background(), testClip())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.SurfaceText != "Hello." || r.NormalizedText != "hello" {
		t.Errorf("unexpected result: %+v", r)
	}
	if r.Confidence != nil {
		t.Errorf("expected nil confidence, got %v", *r.Confidence)
	}
	if r.Start != 0.1 || r.End != 0.5 {
		t.Errorf("unexpected span [%v, %v]", r.Start, r.End)
	}
}

func TestTranscribeUtterance(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
			return
		}
		if r.FormValue("response_format") != "verbose_json" {
			t.Errorf("unexpected response_format %q", r.FormValue("response_format"))
		}
		if r.FormValue("timestamp_granularities[]") != "word" {
			t.Errorf("missing word granularity")
		}
		_, _ = w.Write([]byte(`{"text":"Hello world","words":[
			{"word":"Hello","start":0.1,"end":0.4},
			{"word":"world","start":0.5,"end":0.9}]}`))
	})

	words, err := tr.TranscribeUtterance(context.Background(), audio.NewWaveform(16000, make([]float64, 16000)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(words) != 2 {
		t.Fatalf("expected 2 words, got %d", len(words))
	}
	if words[0].SurfaceText != "Hello" || words[1].Start != 0.5 {
		t.Errorf("unexpected words: %+v", words)
	}
}

func TestTranscribeUtterance_NoTimestamps(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"Hello world"}`))
	})

	_, err := tr.TranscribeUtterance(context.Background(), audio.NewWaveform(16000, make([]float64, 1600)))
	if !errors.Is(err, models.ErrRecognitionUnavailable) {
		t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
	}
}

func TestTranscribeUtterance_Silence(t *testing.T) {
	tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":""}`))
	})

	words, err := tr.TranscribeUtterance(context.Background(), audio.NewWaveform(16000, make([]float64, 1600)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if words == nil || len(words) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", words)
	}
}

func TestTranscribe_HTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
		{"server error", http.StatusInternalServerError, "oops"},
		{"malformed body", http.StatusOK, "not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := tr.TranscribeClip(context.Background(), testClip())
			if !errors.Is(err, models.ErrRecognitionUnavailable) {
				t.Errorf("expected ErrRecognitionUnavailable, got %v", err)
			}
		})
	}
}
