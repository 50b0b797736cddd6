package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type transcribeResult struct {
	Text     string `json:"text"`
	FullText string `json:"fullText"`
	Words    []struct {
		SurfaceText    string   `json:"surfaceText"`
		NormalizedText string   `json:"normalizedText"`
		Confidence     *float64 `json:"confidence"`
		Start          float64  `json:"start"`
		End            float64  `json:"end"`
	} `json:"words"`
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func newTranscribeCmd() *cobra.Command {
	var (
		server   string
		sentence string
		timeout  time.Duration
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Upload a recording and print per-word results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			start := time.Now()
			raw, res, err := transcribe(ctx, http.DefaultClient, server, args[0], sentence)
			if err != nil {
				return err
			}
			log.Debug().Dur("elapsed", time.Since(start)).Msg("Transcription received")

			if asJSON {
				_, err := cmd.OutOrStdout().Write(raw)
				return err
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8000", "service base URL")
	cmd.Flags().StringVarP(&sentence, "sentence", "s", "", "prompt the recording reads; empty transcribes the whole utterance")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw JSON response")
	return cmd
}

// transcribe posts path to {server}/v1/transcribe and returns the raw body
// with its decoded form.
func transcribe(ctx context.Context, client *http.Client, server, path, sentence string) ([]byte, transcribeResult, error) {
	var res transcribeResult

	audio, err := os.ReadFile(path)
	if err != nil {
		return nil, res, fmt.Errorf("read audio: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return nil, res, err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, res, err
	}
	if sentence != "" {
		if err := mw.WriteField("sentence", sentence); err != nil {
			return nil, res, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, res, err
	}

	url := strings.TrimRight(server, "/") + "/v1/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, res, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	log.Info().
		Str("file", path).
		Int("bytes", len(audio)).
		Bool("aligned", sentence != "").
		Msg("Uploading recording")

	resp, err := client.Do(req)
	if err != nil {
		return nil, res, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, res, err
	}
	if resp.StatusCode != http.StatusOK {
		return raw, res, responseError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return raw, res, fmt.Errorf("decode response: %w", err)
	}
	return raw, res, nil
}

func responseError(status int, raw []byte) error {
	var e apiError
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d %s: %s", status, e.Error, e.Message)
	}
	return fmt.Errorf("server returned %d", status)
}

func printResult(w io.Writer, res transcribeResult) {
	fmt.Fprintf(w, "%s\n\n", res.FullText)
	for i, word := range res.Words {
		conf := "   -"
		if word.Confidence != nil {
			conf = fmt.Sprintf("%.2f", *word.Confidence)
		}
		fmt.Fprintf(w, "%3d  %-20s %s  %6.2fs-%6.2fs\n", i+1, word.SurfaceText, conf, word.Start, word.End)
	}
}
