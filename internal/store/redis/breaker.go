package redis

import (
	"log"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned while the breaker rejects calls.
var ErrCircuitOpen = gobreaker.ErrOpenState

// BreakerSettings configures the breaker in front of Redis writes.
type BreakerSettings struct {
	MaxFailures  uint32        // consecutive failures before opening
	ResetTimeout time.Duration // open -> half-open delay
}

// DefaultBreakerSettings trips after 5 consecutive failures and probes again
// after 10s.
func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{MaxFailures: 5, ResetTimeout: 10 * time.Second}
}

func newBreaker(name string, s BreakerSettings, onChange func(from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	if s.MaxFailures == 0 {
		s.MaxFailures = 5
	}
	limit := s.MaxFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     s.ResetTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= limit
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[redis] circuit breaker %s: %s -> %s", name, from, to)
			if onChange != nil {
				onChange(from, to)
			}
		},
	})
}
