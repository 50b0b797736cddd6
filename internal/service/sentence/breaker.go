package sentence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures BreakerSource.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before a trial request.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the default breaker configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 3, OpenTimeout: 30 * time.Second}
}

// BreakerSource wraps a Source with a circuit breaker so a dead upstream
// fails fast instead of costing every refill a full timeout.
type BreakerSource struct {
	next Source
	cb   *gobreaker.CircuitBreaker[[]string]
}

// NewBreakerSource wraps next.
func NewBreakerSource(next Source, cfg BreakerConfig) *BreakerSource {
	def := DefaultBreakerConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	st := gobreaker.Settings{
		Name:        "sentence-source",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("component", "sentence-queue").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Sentence source breaker changed state")
		},
		// a caller hanging up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	return &BreakerSource{next: next, cb: gobreaker.NewCircuitBreaker[[]string](st)}
}

// Fetch implements Source. While the breaker is open it returns
// gobreaker.ErrOpenState without calling the wrapped source.
func (b *BreakerSource) Fetch(ctx context.Context, n int, nonce string) ([]string, error) {
	return b.cb.Execute(func() ([]string, error) {
		return b.next.Fetch(ctx, n, nonce)
	})
}

// State returns the breaker state name (closed, half-open, open).
func (b *BreakerSource) State() string {
	return b.cb.State().String()
}
