package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardOptions tune the protection wrapped around a remote source.
type GuardOptions struct {
	Name        string
	Timeout     time.Duration
	RPS         float64
	Burst       int
	MaxFailures uint32
	OpenFor     time.Duration
}

// Guard applies rate limiting, a per-call timeout and a circuit breaker to
// calls against one remote host.
type Guard struct {
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuard builds a Guard, filling unset options with conservative defaults.
func NewGuard(opts GuardOptions) *Guard {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RPS <= 0 {
		opts.RPS = 5
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenFor <= 0 {
		opts.OpenFor = 60 * time.Second
	}

	maxFailures := opts.MaxFailures
	st := gobreaker.Settings{
		Name:    opts.Name,
		Timeout: opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// a missing player is an answer, not a fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPlayerNotFound)
		},
	}

	return &Guard{
		timeout: opts.Timeout,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Do runs fn under the guard. Breaker and limiter refusals surface as ErrUnavailable.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limiter: %v", ErrUnavailable, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s: %v", ErrUnavailable, g.breaker.Name(), err)
	}
	return err
}
