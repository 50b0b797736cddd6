// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "pronunciation_practice"

// Metrics holds all Prometheus metrics for the service.
// Recorder methods are no-ops on a nil *Metrics.
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestsActive  prometheus.Gauge
	RequestDuration *prometheus.HistogramVec

	// Pipeline stage metrics
	StageDuration *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived prometheus.Counter
	AudioSeconds       prometheus.Histogram

	// Alignment metrics
	AlignLatency *prometheus.HistogramVec
	AlignErrors  *prometheus.CounterVec

	// Clip metrics
	ClipsExtracted prometheus.Counter
	ClipsPadded    prometheus.Counter

	// STT metrics
	STTLatency      *prometheus.HistogramVec
	STTErrors       *prometheus.CounterVec
	WordsRecognized prometheus.Counter

	// Sentence queue metrics
	SentencesServed    *prometheus.CounterVec
	SentencesRejected  *prometheus.CounterVec
	SentenceRefills    *prometheus.CounterVec
	SentenceRefillSize prometheus.Histogram

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// gRPC metrics
	GRPCRequests *prometheus.CounterVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics(prometheus.DefaultRegisterer)

// NewMetrics creates and registers all Prometheus metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// Request metrics
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Total number of transcription requests by mode and outcome",
		}, []string{"mode", "outcome"}),
		RequestsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcriptions_active",
			Help:      "Number of transcription requests in flight",
		}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_duration_seconds",
			Help:      "End-to-end transcription pipeline duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"mode"}),

		// Pipeline stage metrics
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Total number of pipeline failures by stage and error kind",
		}, []string{"stage", "kind"}),

		// Audio metrics
		AudioBytesReceived: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total uploaded audio bytes received",
		}),
		AudioSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_duration_seconds",
			Help:      "Duration of decoded recordings in seconds",
			Buckets:   []float64{0.5, 1, 2, 3, 5, 8, 13, 20, 30},
		}),

		// Alignment metrics
		AlignLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "align_latency_seconds",
			Help:      "Forced alignment latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"backend"}),
		AlignErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "align_errors_total",
			Help:      "Total number of alignment errors",
		}, []string{"backend", "error_type"}),

		// Clip metrics
		ClipsExtracted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clips_extracted_total",
			Help:      "Total number of word clips extracted",
		}),
		ClipsPadded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clips_padded_total",
			Help:      "Total number of word clips padded to the minimum duration",
		}),

		// STT metrics
		STTLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stt_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider", "type"}),
		STTErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stt_errors_total",
			Help:      "Total number of STT errors",
		}, []string{"provider", "error_type"}),
		WordsRecognized: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "words_recognized_total",
			Help:      "Total number of word results returned",
		}),

		// Sentence queue metrics
		SentencesServed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_served_total",
			Help:      "Total number of practice sentences served by source",
		}, []string{"source"}),
		SentencesRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentences_rejected_total",
			Help:      "Total number of generated sentences rejected by the refill filter",
		}, []string{"reason"}),
		SentenceRefills: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sentence_refills_total",
			Help:      "Total number of sentence queue refills by outcome",
		}, []string{"outcome"}),
		SentenceRefillSize: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sentence_refill_size",
			Help:      "Number of sentences accepted per refill",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		}),

		// Kafka publish metrics
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),

		// gRPC metrics
		GRPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),
	}
}

// RecordRequestStart records a transcription request starting.
func (m *Metrics) RecordRequestStart(audioBytes int) {
	if m == nil {
		return
	}
	m.RequestsActive.Inc()
	m.AudioBytesReceived.Add(float64(audioBytes))
}

// RecordRequestEnd records a transcription request ending. outcome is "ok"
// or the error kind.
func (m *Metrics) RecordRequestEnd(mode, outcome string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestsActive.Dec()
	m.RequestsTotal.WithLabelValues(mode, outcome).Inc()
	m.RequestDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordStage records the duration of a completed pipeline stage.
func (m *Metrics) RecordStage(stage string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a pipeline failure in stage.
func (m *Metrics) RecordStageFailure(stage, kind string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage, kind).Inc()
}

// RecordAudioDecoded records the duration of a decoded recording.
func (m *Metrics) RecordAudioDecoded(seconds float64) {
	if m == nil {
		return
	}
	m.AudioSeconds.Observe(seconds)
}

// RecordAlign records an alignment attempt.
func (m *Metrics) RecordAlign(backend string, err error, latencySeconds float64, errorType string) {
	if m == nil {
		return
	}
	m.AlignLatency.WithLabelValues(backend).Observe(latencySeconds)
	if err != nil {
		m.AlignErrors.WithLabelValues(backend, errorType).Inc()
	}
}

// RecordClip records an extracted clip.
func (m *Metrics) RecordClip(padded bool) {
	if m == nil {
		return
	}
	m.ClipsExtracted.Inc()
	if padded {
		m.ClipsPadded.Inc()
	}
}

// RecordSTT records a recognition call. callType is "clip" or "utterance".
func (m *Metrics) RecordSTT(provider, callType string, latencySeconds float64) {
	if m == nil {
		return
	}
	m.STTLatency.WithLabelValues(provider, callType).Observe(latencySeconds)
}

// RecordSTTError records an STT error.
func (m *Metrics) RecordSTTError(provider, errorType string) {
	if m == nil {
		return
	}
	m.STTErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordWords records the number of word results returned.
func (m *Metrics) RecordWords(n int) {
	if m == nil {
		return
	}
	m.WordsRecognized.Add(float64(n))
}

// RecordSentenceServed records a sentence served. source is "generated" or "fallback".
func (m *Metrics) RecordSentenceServed(source string) {
	if m == nil {
		return
	}
	m.SentencesServed.WithLabelValues(source).Inc()
}

// RecordSentenceRejected records a candidate rejected by the refill filter.
func (m *Metrics) RecordSentenceRejected(reason string) {
	if m == nil {
		return
	}
	m.SentencesRejected.WithLabelValues(reason).Inc()
}

// RecordRefill records a completed refill.
func (m *Metrics) RecordRefill(outcome string, accepted int) {
	if m == nil {
		return
	}
	m.SentenceRefills.WithLabelValues(outcome).Inc()
	m.SentenceRefillSize.Observe(float64(accepted))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	if m == nil {
		return
	}
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}

// RecordGRPC records a completed gRPC call.
func (m *Metrics) RecordGRPC(method, code string) {
	if m == nil {
		return
	}
	m.GRPCRequests.WithLabelValues(method, code).Inc()
}
