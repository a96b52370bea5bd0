package pending

import (
	"math"
	"time"
)

// Policy bounds one delivery cycle. A cycle makes up to MaxAttempts attempts,
// sleeping between them; a manual retry starts a new cycle.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 3 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   1.5,
	}
}

// Delay is the wait after the given number of consecutive failures.
func (p Policy) Delay(failures int) time.Duration {
	if failures < 1 {
		return 0
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(p.InitialDelay) * math.Pow(mult, float64(failures-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}

	return time.Duration(d)
}

func (p Policy) attempts() int {
	return max(p.MaxAttempts, 1)
}
