package classify

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	// BaseDelay is the backoff unit multiplied by 2^attempt
	BaseDelay = 2000 * time.Millisecond
	// MaxDelay caps every computed delay
	MaxDelay = 5 * time.Minute
	// JitterFraction is the symmetric random spread applied to the exponential delay
	JitterFraction = 0.10
)

// BackoffDelay returns BaseDelay·2^attempt with ±10% jitter, capped at MaxDelay
func BackoffDelay(attempt int) time.Duration {
	return backoffDelay(attempt, rand.Float64)
}

// backoffDelay takes the random source as a func returning values in [0,1)
func backoffDelay(attempt int, random func() float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	exp := float64(BaseDelay) * math.Pow(2, float64(attempt))
	if exp >= float64(MaxDelay)*(1+JitterFraction) {
		return MaxDelay
	}

	jitter := exp * JitterFraction * (2*random() - 1) //nolint:gosec // jitter does not need crypto rand
	d := time.Duration(math.Round(exp + jitter))
	if d > MaxDelay {
		return MaxDelay
	}
	return d
}
