package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"pronunciation-practice-service/internal/models"
)

// messageReader is the subset of kafka.Reader used by tailTopic.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

func newEventsCmd() *cobra.Command {
	var (
		brokers             string
		topicTranscriptions string
		topicSentences      string
		since               time.Duration
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail published transcription and sentence events",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := &syncWriter{w: cmd.OutOrStdout()}

			var wg sync.WaitGroup
			for _, topic := range []string{topicTranscriptions, topicSentences} {
				// Partition reader without a consumer group, so no offsets are committed.
				reader := kafka.NewReader(kafka.ReaderConfig{
					Brokers:   strings.Split(brokers, ","),
					Topic:     topic,
					Partition: 0,
					MinBytes:  1,
					MaxBytes:  10e6,
				})
				if err := reader.SetOffsetAt(ctx, time.Now().Add(-since)); err != nil {
					log.Warn().Err(err).Str("topic", topic).Msg("Could not seek, reading from the start")
				}

				wg.Add(1)
				go func(topic string, reader *kafka.Reader) {
					defer wg.Done()
					defer reader.Close()
					log.Info().Str("topic", topic).Dur("since", since).Msg("Consuming topic")
					tailTopic(ctx, reader, topic, out)
				}(topic, reader)
			}
			wg.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&brokers, "brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	cmd.Flags().StringVar(&topicTranscriptions, "topic-transcriptions", models.EventTranscriptionCompleted, "completed transcription topic")
	cmd.Flags().StringVar(&topicSentences, "topic-sentences", models.EventSentenceBatchGenerated, "generated sentence topic")
	cmd.Flags().DurationVar(&since, "since", time.Hour, "replay events newer than this")
	return cmd
}

// tailTopic prints one line per event until ctx is done.
func tailTopic(ctx context.Context, reader messageReader, topic string, out io.Writer) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		line, err := formatEvent(msg.Value)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Skipping undecodable event")
			continue
		}
		fmt.Fprintln(out, line)
	}
}

// formatEvent renders an event payload as a single line.
func formatEvent(payload []byte) (string, error) {
	var head struct {
		EventType string `json:"eventType"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", err
	}

	switch head.EventType {
	case models.EventTranscriptionCompleted:
		var ev models.TranscriptionCompleted
		if err := json.Unmarshal(payload, &ev); err != nil {
			return "", err
		}
		line := fmt.Sprintf("transcription %s [%s] %q (%d words, %dms)", ev.RequestID, ev.Mode, ev.FullText, len(ev.Words), ev.DurationMs)
		if ev.Expected != "" {
			line += fmt.Sprintf(" expected %q", ev.Expected)
		}
		return line, nil
	case models.EventSentenceBatchGenerated:
		var ev models.SentenceBatchGenerated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return "", err
		}
		return fmt.Sprintf("sentences %s: %d generated in %d rounds", ev.EventID, len(ev.Sentences), ev.Rounds), nil
	default:
		return "", fmt.Errorf("unknown event type %q", head.EventType)
	}
}

type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
