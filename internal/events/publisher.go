// Package events provides event publishing functionality.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"pronunciation-practice-service/internal/models"
	"pronunciation-practice-service/internal/observability/metrics"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher publishes practice events to separate Kafka topics.
type Publisher struct {
	writerTranscriptions messageWriter
	writerSentences      messageWriter
	principal            string
	topicTranscriptions  string
	topicSentences       string
	enabled              bool
	metrics              *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers             []string
	TopicTranscriptions string
	TopicSentences      string
	Principal           string
	Enabled             bool
}

// New creates a new Kafka event publisher with separate topics for
// completed transcriptions and generated sentence batches.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			enabled: false,
			metrics: m,
		}
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return &Publisher{
			principal:           cfg.Principal,
			topicTranscriptions: cfg.TopicTranscriptions,
			topicSentences:      cfg.TopicSentences,
			enabled:             false,
			metrics:             m,
		}
	}

	// longer dial timeout for DNS resolution in Kubernetes
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		Dial: dialer.DialFunc,
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicTranscriptions", cfg.TopicTranscriptions).
		Str("topicSentences", cfg.TopicSentences).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return &Publisher{
		writerTranscriptions: newWriter(cfg.Brokers, cfg.TopicTranscriptions, transport),
		writerSentences:      newWriter(cfg.Brokers, cfg.TopicSentences, transport),
		principal:            cfg.Principal,
		topicTranscriptions:  cfg.TopicTranscriptions,
		topicSentences:       cfg.TopicSentences,
		enabled:              true,
		metrics:              m,
	}
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events go to Kafka rather than only the log.
func (p *Publisher) Enabled() bool { return p.enabled }

// PublishTranscription publishes a completed transcription, keyed by request ID.
func (p *Publisher) PublishTranscription(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerTranscriptions, p.topicTranscriptions, models.EventTranscriptionCompleted, key, event)
}

// PublishSentenceBatch publishes a generated sentence batch.
func (p *Publisher) PublishSentenceBatch(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerSentences, p.topicSentences, models.EventSentenceBatchGenerated, key, event)
}

// publish is the internal method that writes to a specific Kafka writer.
func (p *Publisher) publish(ctx context.Context, writer messageWriter, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	// log-only mode
	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerTranscriptions != nil {
		if e := p.writerTranscriptions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing transcription writer")
			err = e
		}
	}
	if p.writerSentences != nil {
		if e := p.writerSentences.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing sentence writer")
			err = e
		}
	}
	return err
}
