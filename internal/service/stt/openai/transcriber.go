// Package openai recognizes speech with an OpenAI-compatible
// /audio/transcriptions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/service/audio"
	"pronunciation-practice-service/internal/service/segment"
	"pronunciation-practice-service/internal/service/stt"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "whisper-1"
)

// Config holds OpenAI transcription settings.
type Config struct {
	APIKey   string
	BaseURL  string
	Model    string
	Language string // BCP-47 code, sent as its base language
	Timeout  time.Duration
}

// Transcriber implements stt.Transcriber against the transcription API.
// Whisper reports no per-word probability, so confidence is always nil.
type Transcriber struct {
	cfg    Config
	client *http.Client
}

var _ stt.Transcriber = (*Transcriber)(nil)

// New creates an OpenAI transcriber.
func New(cfg Config) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key required (set OPENAI_API_KEY)")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcriber{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}, nil
}

// Name implements stt.Transcriber.
func (t *Transcriber) Name() string { return "openai" }

type transcriptionResponse struct {
	Text  string `json:"text"`
	Words []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// TranscribeClip implements stt.ClipTranscriber.
func (t *Transcriber) TranscribeClip(ctx context.Context, clip segment.Clip) (models.WordResult, error) {
	resp, err := t.transcribe(ctx, clip.Audio.WAV(), map[string]string{
		"response_format": "json",
	})
	if err != nil {
		return models.WordResult{}, err
	}
	return stt.ClipResult(resp.Text, nil, clip), nil
}

// TranscribeUtterance implements stt.UtteranceTranscriber using word-level
// timestamps from verbose_json.
func (t *Transcriber) TranscribeUtterance(ctx context.Context, wf *audio.Waveform) ([]models.WordResult, error) {
	resp, err := t.transcribe(ctx, wf.WAV(), map[string]string{
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Words) == 0 {
		if strings.TrimSpace(resp.Text) != "" {
			return nil, stt.Unavailable("openai", errors.New("response has no word timestamps"))
		}
		return []models.WordResult{}, nil
	}

	words := make([]models.WordResult, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, models.NewWordResult(w.Word, nil).WithSpan(w.Start, w.End))
	}
	return words, nil
}

func (t *Transcriber) transcribe(ctx context.Context, wav []byte, fields map[string]string) (*transcriptionResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("openai: create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("openai: write form file: %w", err)
	}
	_ = mw.WriteField("model", t.cfg.Model)
	if lang := stt.BaseLanguage(t.cfg.Language); lang != "" {
		_ = mw.WriteField("language", lang)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("openai: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, stt.Unavailable("openai", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, stt.Unavailable("openai", fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	var out transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, stt.Unavailable("openai", fmt.Errorf("decode response: %w", err))
	}
	return &out, nil
}
