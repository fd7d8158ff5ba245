// Package breaker implements the CircuitBreaker of spec.md §4.3 over
// sony/gobreaker, the only breaker library carried by any repo in the
// example corpus (wyfcoding-financialTrading).
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is the sentinel spec.md §4.3/§7 names "breaker_open". It behaves
// like any other delivery error: it contributes to a message's attempts.
var ErrOpen = errors.New("breaker_open")

// Breaker wraps one external integration's fallible call.
type Breaker struct {
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

// Settings mirrors spec.md §4.3's parameters.
type Settings struct {
	Name              string
	Timeout           time.Duration // call timeout, default 10s
	ErrorThreshold    float64       // error rate (since the last state change) to trip open, default 0.6
	Cooldown          time.Duration // reset timeout before half-open probe, default 30s
	MinRequestsToTrip uint32        // minimum requests since the last state change before the threshold applies
}

// New builds a Breaker with the given settings, defaulting any zero value
// to spec.md §4.3's defaults.
func New(s Settings) *Breaker {
	if s.Timeout <= 0 {
		s.Timeout = 10 * time.Second
	}
	if s.ErrorThreshold <= 0 {
		s.ErrorThreshold = 0.6
	}
	if s.Cooldown <= 0 {
		s.Cooldown = 30 * time.Second
	}
	if s.MinRequestsToTrip == 0 {
		s.MinRequestsToTrip = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1, // a single probe request while half-open
		Interval:    0, // never reset the closed-state counters on a timer; only on state change
		Timeout:     s.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequestsToTrip {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.ErrorThreshold
		},
	})

	return &Breaker{cb: cb, timeout: s.Timeout}
}

// Fire invokes f under the breaker. When the breaker is open, f is never
// called and ErrOpen is returned immediately (spec.md §4.3). Otherwise f
// runs with an enforced call timeout; a timeout counts as a failure.
func (b *Breaker) Fire(ctx context.Context, f func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, b.timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() { done <- f(callCtx) }()

		select {
		case err := <-done:
			return nil, err
		case <-callCtx.Done():
			return nil, callCtx.Err()
		}
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}

	return err
}
