package embed

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig holds the circuit breaker settings for the embedding backend.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures required to trip.
	MaxFailures uint32

	// Timeout is how long the circuit stays open before allowing probes.
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successful probes required to
	// close the circuit again.
	HalfOpenMaxSuccesses uint32
}

// DefaultBreakerConfig trips after 3 consecutive failures, stays open 30
// seconds, and needs 2 probe successes to recover.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:          3,
		Timeout:              30 * time.Second,
		HalfOpenMaxSuccesses: 2,
	}
}

func newBreaker(config BreakerConfig) *gobreaker.CircuitBreaker {
	if config.MaxFailures == 0 {
		config = DefaultBreakerConfig()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "embedder",
		MaxRequests: config.HalfOpenMaxSuccesses,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
	})
}

// isCircuitOpen reports whether an error came from the breaker rejecting the
// call rather than from the call itself failing.
func isCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
