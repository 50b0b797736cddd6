package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type sentenceResult struct {
	Sentence string `json:"sentence"`
	Source   string `json:"source"`
}

func newSentenceCmd() *cobra.Command {
	var (
		server string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "sentence",
		Short: "Fetch practice sentences",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			for i := 0; i < count; i++ {
				s, err := nextSentence(ctx, http.DefaultClient, server)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", s.Source, s.Sentence)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8000", "service base URL")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of sentences")
	return cmd
}

func nextSentence(ctx context.Context, client *http.Client, server string) (sentenceResult, error) {
	var s sentenceResult

	url := strings.TrimRight(server, "/") + "/v1/sentences/next"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return s, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return s, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return s, err
	}
	if resp.StatusCode != http.StatusOK {
		return s, responseError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("decode response: %w", err)
	}
	return s, nil
}
