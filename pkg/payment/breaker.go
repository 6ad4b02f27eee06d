package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSettings configures the circuit breaker in front of a Gateway.
type BreakerSettings struct {
	Name        string
	MaxFailures uint32        // consecutive failures that open the circuit
	OpenTimeout time.Duration // how long the circuit stays open before probing
}

// BreakerGateway fails fast with ErrUnavailable while the provider is known to be down.
// Webhook verification is local and bypasses the breaker.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker[*Session]
}

// NewBreakerGateway wraps next with a consecutive-failure circuit breaker.
func NewBreakerGateway(next Gateway, s BreakerSettings) *BreakerGateway {
	if s.Name == "" {
		s.Name = "payment-gateway"
	}
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	maxFailures := s.MaxFailures
	cb := gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// Only outages count against the circuit; a rejected request is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &BreakerGateway{next: next, cb: cb}
}

// CreateSession delegates through the breaker.
func (g *BreakerGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return g.execute(func() (*Session, error) {
		return g.next.CreateSession(ctx, req)
	})
}

// RetrieveSession delegates through the breaker.
func (g *BreakerGateway) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	return g.execute(func() (*Session, error) {
		return g.next.RetrieveSession(ctx, id)
	})
}

// VerifyEvent delegates directly.
func (g *BreakerGateway) VerifyEvent(payload []byte, signatureHeader string) (*Event, error) {
	return g.next.VerifyEvent(payload, signatureHeader)
}

// State exposes the breaker state for health reporting.
func (g *BreakerGateway) State() gobreaker.State {
	return g.cb.State()
}

func (g *BreakerGateway) execute(fn func() (*Session, error)) (*Session, error) {
	s, err := g.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s, err
}
