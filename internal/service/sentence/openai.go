package sentence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultOpenAIModel   = "gpt-4o-mini"
)

// OpenAIConfig configures the chat-completions sentence generator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // any OpenAI-compatible endpoint
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAISource generates sentences with an OpenAI-compatible
// /chat/completions endpoint.
type OpenAISource struct {
	cfg OpenAIConfig
	url string
	do  func(*http.Request) (*http.Response, error)
}

// NewOpenAISource creates a generator. An API key is required.
func NewOpenAISource(cfg OpenAIConfig) (*OpenAISource, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sentence generator: missing api key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 1.0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	hc := &http.Client{Timeout: cfg.Timeout}
	return &OpenAISource{
		cfg: cfg,
		url: strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		do:  hc.Do,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = "You write short, natural English sentences for pronunciation practice."

func userPrompt(n int, nonce string) string {
	return fmt.Sprintf("Write %d different English sentences of 6 to 14 words that are pleasant to read aloud. "+
		"Vary the topics, vocabulary and sentence structure. "+
		"Return one sentence per line, each ending with a period, question mark or exclamation mark, "+
		"with no numbering and no other text. Variation seed: %s", n, nonce)
}

// Fetch implements Source.
func (s *OpenAISource) Fetch(ctx context.Context, n int, nonce string) ([]string, error) {
	body, err := json.Marshal(chatRequest{
		Model: s.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(n, nonce)},
		},
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.do(req)
	if err != nil {
		// A client timeout also wraps DeadlineExceeded; only the caller's own
		// cancellation is reported as ctx.Err().
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("sentence generator request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("sentence generator upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, nil
	}
	return ParseLines(cr.Choices[0].Message.Content), nil
}
