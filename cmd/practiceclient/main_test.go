package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"pronunciation-practice-service/internal/models"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.webm")
	if err := os.WriteFile(path, []byte("fake-webm"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribe_PostsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcribe" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio part: %v", err)
			return
		}
		defer file.Close()
		if header.Filename != "take.webm" {
			t.Errorf("unexpected filename %s", header.Filename)
		}
		if got := r.FormValue("sentence"); got != "hello world" {
			t.Errorf("unexpected sentence %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hello world","fullText":"hello world","words":[{"surfaceText":"hello","normalizedText":"hello","confidence":0.9,"start":0,"end":0.4},{"surfaceText":"world","normalizedText":"world","confidence":null,"start":0.5,"end":0.9}]}`))
	}))
	defer srv.Close()

	_, res, err := transcribe(context.Background(), srv.Client(), srv.URL+"/", writeAudio(t), "hello world")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.FullText != "hello world" || len(res.Words) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}

	var out bytes.Buffer
	printResult(&out, res)
	if !strings.Contains(out.String(), "0.90") || !strings.Contains(out.String(), "   -") {
		t.Errorf("unexpected table:\n%s", out.String())
	}
}

func TestTranscribe_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"AlignmentUnavailable","message":"word alignment is unavailable"}`))
	}))
	defer srv.Close()

	_, _, err := transcribe(context.Background(), srv.Client(), srv.URL, writeAudio(t), "hi")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "503 AlignmentUnavailable") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestTranscribe_MissingFile(t *testing.T) {
	_, _, err := transcribe(context.Background(), http.DefaultClient, "http://unused", filepath.Join(t.TempDir(), "nope.wav"), "")
	if err == nil {
		t.Fatal("expected read error")
	}
}

func TestNextSentence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sentences/next" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(sentenceResult{Sentence: "The cat sat.", Source: "fallback"})
	}))
	defer srv.Close()

	s, err := nextSentence(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("nextSentence: %v", err)
	}
	if s.Sentence != "The cat sat." || s.Source != "fallback" {
		t.Errorf("unexpected sentence %+v", s)
	}
}

func TestFormatEvent(t *testing.T) {
	transcription, _ := json.Marshal(models.TranscriptionCompleted{
		EventType:  models.EventTranscriptionCompleted,
		RequestID:  "req-1",
		Mode:       "aligned",
		Expected:   "Hello world",
		FullText:   "hello world",
		Words:      []models.WordResult{{SurfaceText: "hello"}, {SurfaceText: "world"}},
		DurationMs: 120,
	})
	batch, _ := json.Marshal(models.SentenceBatchGenerated{
		EventType: models.EventSentenceBatchGenerated,
		EventID:   "ev-1",
		Sentences: []string{"One.", "Two."},
		Rounds:    2,
	})

	tests := []struct {
		name    string
		payload []byte
		want    string
		wantErr bool
	}{
		{"transcription", transcription, `transcription req-1 [aligned] "hello world" (2 words, 120ms) expected "Hello world"`, false},
		{"sentence batch", batch, "sentences ev-1: 2 generated in 2 rounds", false},
		{"unknown type", []byte(`{"eventType":"other"}`), "", true},
		{"not json", []byte("nope"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatEvent(tt.payload)
			if (err != nil) != tt.wantErr {
				t.Fatalf("formatEvent error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("formatEvent = %q, want %q", got, tt.want)
			}
		})
	}
}

type testReader struct {
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *testReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	if m.Value == nil {
		return kafka.Message{}, errors.New("transient")
	}
	return m, nil
}

func TestTailTopic_PrintsEventsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batch, _ := json.Marshal(models.SentenceBatchGenerated{
		EventType: models.EventSentenceBatchGenerated,
		EventID:   "ev-2",
		Sentences: []string{"One."},
		Rounds:    1,
	})
	reader := &testReader{
		msgs: []kafka.Message{
			{Value: []byte("garbage")},
			{Value: batch},
		},
		cancel: cancel,
	}

	var out bytes.Buffer
	tailTopic(ctx, reader, "practice.sentence.generated", &out)

	if got := strings.TrimSpace(out.String()); got != "sentences ev-2: 1 generated in 1 rounds" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"transcribe", "sentence", "health", "events"} {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("missing subcommand %s", name)
		}
	}
}
