package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/fabrichq/fabric/internal/clock"
)

// Policy defines retry behavior. It is immutable after construction and a
// single Retryer built from it may be shared across concurrent calls.
type Policy struct {
	// MaxAttempts bounds the total number of tries; attempt 0 is the
	// first try, not a retry.
	MaxAttempts int
	// InitialDelay is the wait before the first retry.
	InitialDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// JitterFraction in [0,1] adds up to delay*JitterFraction of random
	// extra wait, de-synchronizing retry storms across callers.
	JitterFraction float64
}

// DefaultPolicy returns a conservative retry policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		InitialDelay:   100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
	}
}

// Validate reports configuration errors.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("retry policy: max attempts must be >= 1, got %d", p.MaxAttempts)
	}
	if p.InitialDelay < 0 || p.MaxDelay < 0 {
		return fmt.Errorf("retry policy: delays must be non-negative")
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("retry policy: multiplier must be >= 1, got %g", p.Multiplier)
	}
	if p.JitterFraction < 0 || p.JitterFraction > 1 {
		return fmt.Errorf("retry policy: jitter fraction must be in [0,1], got %g", p.JitterFraction)
	}
	return nil
}

// ExhaustedError reports that every attempt failed. It wraps the last
// underlying error so the root cause stays inspectable via errors.Is/As.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Retryer re-attempts failed operations with exponential backoff and
// jitter. It holds no cross-call state.
type Retryer struct {
	policy Policy
	clock  clock.Clock
}

// NewRetryer builds a Retryer from a validated policy.
func NewRetryer(policy Policy, clk clock.Clock) (*Retryer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Retryer{policy: policy, clock: clk}, nil
}

// Policy returns the retryer's policy.
func (r *Retryer) Policy() Policy {
	return r.policy
}

// Do runs op until it succeeds, returns a non-retryable error, the attempt
// budget is spent, or ctx is done.
//
//   - A non-retryable error is returned as-is after the failing attempt,
//     never wrapped.
//   - Cancellation during the inter-attempt wait returns ctx.Err()
//     immediately, not an exhaustion error.
//   - After the final failed attempt the last error is wrapped in
//     *ExhaustedError together with the attempt count.
//
// A nil retryable predicate treats every error as retryable.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error, retryable func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if attempt == r.policy.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clock.After(r.delay(attempt)):
		}
	}

	return &ExhaustedError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

// delay computes the backoff before the retry following zero-based
// attempt n: min(MaxDelay, InitialDelay*Multiplier^n) plus jitter.
func (r *Retryer) delay(n int) time.Duration {
	d := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(n))
	if max := float64(r.policy.MaxDelay); d > max {
		d = max
	}
	if r.policy.JitterFraction > 0 {
		d += rand.Float64() * d * r.policy.JitterFraction
	}
	return time.Duration(d)
}
