package hookscript

import (
	"fmt"
	"time"
)

// Limits bound script execution so a misbehaving rule cannot wedge the host.
type Limits struct {
	// MaxLoopIterations caps every while and for loop; a loop that hits the
	// ceiling stops with a warning instead of failing the rule.
	MaxLoopIterations int
	// MaxCallDepth caps user-function recursion.
	MaxCallDepth int
	// DeferredInterval is how often the deferred-action queue drains.
	DeferredInterval time.Duration
}

// DefaultLimits returns the limits applied when a zero Config is used.
func DefaultLimits() Limits {
	return Limits{
		MaxLoopIterations: 10000,
		MaxCallDepth:      64,
		DeferredInterval:  10 * time.Millisecond,
	}
}

// withDefaults fills any unset field from DefaultLimits.
func (l Limits) withDefaults() Limits {
	def := DefaultLimits()
	if l.MaxLoopIterations <= 0 {
		l.MaxLoopIterations = def.MaxLoopIterations
	}
	if l.MaxCallDepth <= 0 {
		l.MaxCallDepth = def.MaxCallDepth
	}
	if l.DeferredInterval <= 0 {
		l.DeferredInterval = def.DeferredInterval
	}
	return l
}

// LimitError reports a script exceeding one of the execution limits.
type LimitError struct {
	Resource string
	Current  int
	Limit    int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s limit exceeded: current=%d, limit=%d", e.Resource, e.Current, e.Limit)
}

// IsLimitError checks whether an error is a limit violation.
func IsLimitError(err error) bool {
	_, ok := err.(*LimitError)
	return ok
}
