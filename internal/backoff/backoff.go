package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy holds the parameters of a backoff sequence.
type Policy struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultPolicy doubles from one second up to thirty seconds.
func DefaultPolicy() Policy {
	return Policy{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
}

// Strategy computes the delay before retry number attempt (zero based).
type Strategy interface {
	Delay(attempt int, p Policy) time.Duration
}

// ExponentialJitter grows the delay by Multiplier per attempt and adds up to
// Jitter*delay of uniform noise, capped at Max.
type ExponentialJitter struct{}

// Delay implements Strategy.
func (ExponentialJitter) Delay(attempt int, p Policy) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	// Prevent overflow by limiting attempt
	if attempt > 30 {
		attempt = 30
	}

	d := time.Duration(float64(p.Initial) * pow(p.Multiplier, attempt))
	if d < 0 || d > p.Max {
		d = p.Max
	}

	jitter := clampJitter(p.Jitter)
	if jitter > 0 {
		extra := time.Duration(float64(d) * jitter * rand.Float64())
		if d+extra > p.Max {
			return p.Max
		}
		d += extra
	}
	return d
}

// Constant always waits Initial.
type Constant struct{}

// Delay implements Strategy.
func (Constant) Delay(_ int, p Policy) time.Duration {
	return p.Initial
}

// Backoff pairs a Strategy with a Policy.
type Backoff struct {
	strategy Strategy
	policy   Policy
}

// New returns a Backoff. A nil strategy means ExponentialJitter.
func New(strategy Strategy, policy Policy) *Backoff {
	if strategy == nil {
		strategy = ExponentialJitter{}
	}
	return &Backoff{strategy: strategy, policy: policy}
}

// Delay returns the wait before retry number attempt.
func (b *Backoff) Delay(attempt int) time.Duration {
	return b.strategy.Delay(attempt, b.policy)
}

// Policy returns the configured policy.
func (b *Backoff) Policy() Policy {
	return b.policy
}

// Wait sleeps for the delay of attempt or until ctx is done.
func (b *Backoff) Wait(ctx context.Context, attempt int) error {
	return Sleep(ctx, b.Delay(attempt))
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
