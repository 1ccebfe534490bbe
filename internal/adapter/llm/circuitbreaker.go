package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"noelle/internal/domain"
	"noelle/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

type streamBreaker = gobreaker.CircuitBreaker[<-chan domain.StreamChunk]

// newStreamBreaker builds the breaker guarding stream initiation for one
// provider name. Zero-valued settings fall back to defaults.
func newStreamBreaker(name string, cfg config.CircuitBreakerConfig, logger *slog.Logger) *streamBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	return gobreaker.NewCircuitBreaker[<-chan domain.StreamChunk](gobreaker.Settings{
		Name:        "llm:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		// Cancellation by the caller says nothing about vendor health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// CircuitBreakerProvider wraps a ChatProvider with circuit breaker protection.
// When the wrapped provider fails repeatedly to open a stream, the circuit
// opens and subsequent calls fail fast without reaching the vendor.
type CircuitBreakerProvider struct {
	inner   domain.ChatProvider
	breaker *streamBreaker
}

// NewCircuitBreakerProvider wraps inner with a shared breaker.
func NewCircuitBreakerProvider(inner domain.ChatProvider, breaker *streamBreaker) *CircuitBreakerProvider {
	return &CircuitBreakerProvider{inner: inner, breaker: breaker}
}

// ChatStream implements domain.ChatProvider. The breaker protects the
// initial connection; errors after the stream opened travel through the
// channel and do not trip it.
func (p *CircuitBreakerProvider) ChatStream(ctx context.Context, turns []domain.Turn, model string) (<-chan domain.StreamChunk, error) {
	ch, err := p.breaker.Execute(func() (<-chan domain.StreamChunk, error) {
		return p.inner.ChatStream(ctx, turns, model)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q circuit open: %w: %w", p.inner.Name(), domain.ErrProviderError, err)
		}
		return nil, err
	}
	return ch, nil
}

// Name implements domain.ChatProvider.
func (p *CircuitBreakerProvider) Name() string { return p.inner.Name() }

// State returns the current circuit breaker state for monitoring.
func (p *CircuitBreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}

// Counts returns the current circuit breaker failure/success counts.
func (p *CircuitBreakerProvider) Counts() gobreaker.Counts {
	return p.breaker.Counts()
}
