// Package sentence supplies practice sentences: a queue refilled from a
// generator without recent repeats, and a static fallback corpus.
package sentence

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pronunciation-practice-service/internal/observability/metrics"
)

// Config holds queue limits.
type Config struct {
	BatchSize    int
	MaxRounds    int
	HistoryLimit int
	RoundTimeout time.Duration
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		MaxRounds:    3,
		HistoryLimit: DefaultHistoryLimit,
		RoundTimeout: 20 * time.Second,
	}
}

// RefillResult describes one completed refill.
type RefillResult struct {
	Sentences []string
	Rounds    int
	Err       error // transport error that ended the refill early, if any
}

// Option configures a Queue.
type Option func(*Queue)

// WithOnRefill registers a hook called after every refill, outside the
// queue lock.
func WithOnRefill(fn func(RefillResult)) Option {
	return func(q *Queue) { q.onRefill = fn }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) { q.metrics = m }
}

// Queue hands out generated sentences in order, refilling on demand.
// One mutex guards the pending list and the history, and refills run while
// holding it, so concurrent callers never trigger parallel refills.
type Queue struct {
	cfg      Config
	source   Source
	metrics  *metrics.Metrics
	onRefill func(RefillResult)
	nonce    func() string

	mu      sync.Mutex
	pending []string
	history *History
}

// NewQueue creates a queue over source. A nil source makes every refill empty.
func NewQueue(cfg Config, source Source, opts ...Option) *Queue {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = def.RoundTimeout
	}

	q := &Queue{
		cfg:     cfg,
		source:  source,
		nonce:   uuid.NewString,
		history: NewHistory(cfg.HistoryLimit),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Next returns the next pending sentence, refilling first when none is
// pending. It returns false when the refill produced nothing.
func (q *Queue) Next(ctx context.Context) (string, bool) {
	q.mu.Lock()

	var refilled *RefillResult
	if len(q.pending) == 0 {
		res := q.refill(ctx)
		q.pending = append(q.pending, res.Sentences...)
		refilled = &res
	}

	var (
		s  string
		ok bool
	)
	if len(q.pending) > 0 {
		s, ok = q.pending[0], true
		q.pending = q.pending[1:]
	}
	q.mu.Unlock()

	if refilled != nil && q.onRefill != nil {
		q.onRefill(*refilled)
	}
	return s, ok
}

// Pending returns the number of sentences waiting to be served.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// refill runs up to MaxRounds fetches, keeping terminated sentences not in
// history and not already accepted, until BatchSize are accepted. Every
// accepted sentence enters the history immediately. A transport error ends
// the refill with whatever was accepted. Must be called with q.mu held.
func (q *Queue) refill(ctx context.Context) RefillResult {
	res := RefillResult{Sentences: []string{}}
	if q.source == nil {
		q.metrics.RecordRefill("empty", 0)
		return res
	}

	logger := log.With().Str("component", "sentence-queue").Logger()
	seen := make(map[string]struct{}, q.cfg.BatchSize)

	for res.Rounds < q.cfg.MaxRounds && len(res.Sentences) < q.cfg.BatchSize {
		res.Rounds++

		rctx, cancel := context.WithTimeout(ctx, q.cfg.RoundTimeout)
		batch, err := q.source.Fetch(rctx, q.cfg.BatchSize, q.nonce())
		cancel()
		if err != nil {
			logger.Warn().
				Err(err).
				Int("round", res.Rounds).
				Int("accepted", len(res.Sentences)).
				Msg("Sentence fetch failed, ending refill")
			res.Err = err
			break
		}

		for _, s := range batch {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if !HasTerminalPunctuation(s) {
				q.metrics.RecordSentenceRejected("unterminated")
				continue
			}
			if q.history.Contains(s) {
				q.metrics.RecordSentenceRejected("recent")
				continue
			}
			k := Key(s)
			if _, dup := seen[k]; dup {
				q.metrics.RecordSentenceRejected("duplicate")
				continue
			}

			seen[k] = struct{}{}
			q.history.Add(s)
			res.Sentences = append(res.Sentences, s)
			if len(res.Sentences) == q.cfg.BatchSize {
				break
			}
		}
	}

	outcome := "full"
	switch {
	case len(res.Sentences) == 0:
		outcome = "empty"
	case len(res.Sentences) < q.cfg.BatchSize:
		outcome = "partial"
	}
	q.metrics.RecordRefill(outcome, len(res.Sentences))
	logger.Debug().
		Int("rounds", res.Rounds).
		Int("accepted", len(res.Sentences)).
		Str("outcome", outcome).
		Msg("Sentence queue refilled")
	return res
}
