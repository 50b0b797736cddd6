package sentence

import (
	"context"

	"pronunciation-practice-service/internal/observability/metrics"
)

// Where a served sentence came from.
const (
	SourceGenerated = "generated"
	SourceFallback  = "fallback"
)

// Sentence is a practice prompt and its origin.
type Sentence struct {
	Text   string `json:"sentence"`
	Source string `json:"source"`
}

// Supplier serves generated sentences, falling back to the corpus when the
// queue comes back empty.
type Supplier struct {
	queue   *Queue
	corpus  *Corpus
	metrics *metrics.Metrics
}

// NewSupplier creates a supplier. Either queue or corpus may be nil.
func NewSupplier(queue *Queue, corpus *Corpus, m *metrics.Metrics) *Supplier {
	return &Supplier{queue: queue, corpus: corpus, metrics: m}
}

// Next returns a sentence, or false when neither the queue nor the corpus
// has one.
func (s *Supplier) Next(ctx context.Context) (Sentence, bool) {
	if s.queue != nil {
		if text, ok := s.queue.Next(ctx); ok {
			s.metrics.RecordSentenceServed(SourceGenerated)
			return Sentence{Text: text, Source: SourceGenerated}, true
		}
	}
	if s.corpus != nil {
		if text, ok := s.corpus.Random(); ok {
			s.metrics.RecordSentenceServed(SourceFallback)
			return Sentence{Text: text, Source: SourceFallback}, true
		}
	}
	return Sentence{}, false
}
