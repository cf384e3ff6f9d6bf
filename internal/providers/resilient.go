package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ResilienceOptions configures the call guards around a model service. Zero
// values disable the matching guard.
type ResilienceOptions struct {
	// MaxRetries is the number of retries after the first failed call.
	MaxRetries int
	// InitialBackoff is the first retry delay; it grows exponentially.
	InitialBackoff time.Duration
	// RequestsPerSecond caps the call rate.
	RequestsPerSecond float64
	// BreakerFailures opens the circuit after this many consecutive failures.
	BreakerFailures int
	// BreakerCooldown is how long an open circuit rejects calls.
	BreakerCooldown time.Duration
}

// Enabled reports whether any guard is on.
func (o ResilienceOptions) Enabled() bool {
	return o.MaxRetries > 0 || o.RequestsPerSecond > 0 || o.BreakerFailures > 0
}

type resilientService struct {
	inner   ModelService
	opts    ResilienceOptions
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// WithResilience wraps svc with rate limiting, a circuit breaker and
// exponential-backoff retries. Missing credentials and caller cancellation
// are never retried.
func WithResilience(svc ModelService, opts ResilienceOptions) ModelService {
	if !opts.Enabled() {
		return svc
	}
	r := &resilientService{inner: svc, opts: opts}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	if opts.BreakerFailures > 0 {
		cooldown := opts.BreakerCooldown
		if cooldown <= 0 {
			cooldown = 30 * time.Second
		}
		threshold := uint32(opts.BreakerFailures)
		name := svc.GetProviderName()
		r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("[ResilientProvider] Circuit state changed")
			},
		})
	}
	return r
}

func (r *resilientService) GetProviderName() string {
	return r.inner.GetProviderName()
}

func (r *resilientService) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var resp *ChatResponse
	attempt := 0
	op := func() error {
		attempt++
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}
		out, err := r.call(ctx, req)
		if err == nil {
			resp = out
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	if r.opts.InitialBackoff > 0 {
		b.InitialInterval = r.opts.InitialBackoff
	}
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.opts.MaxRetries)), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		log.Warn().
			Err(err).
			Str("provider", r.inner.GetProviderName()).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("[ResilientProvider] Model call failed, retrying")
	})
	if err != nil {
		if attempt > 1 {
			return nil, fmt.Errorf("model call failed after %d attempts: %w", attempt, err)
		}
		return nil, err
	}
	return resp, nil
}

func (r *resilientService) call(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if r.breaker == nil {
		return r.inner.Complete(ctx, req)
	}
	out, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Complete(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.(*ChatResponse), nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	switch {
	case errors.Is(err, ErrMissingCredentials),
		errors.Is(err, context.Canceled),
		errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return false
	}
	return true
}
