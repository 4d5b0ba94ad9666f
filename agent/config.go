package agent

import (
	"time"
)

// Config bounds the operator loop.
type Config struct {
	// MaxIterations is the number of observe-decide-act rounds allowed per instruction.
	MaxIterations int
	// TimeLimit bounds a whole instruction.
	TimeLimit time.Duration
	// SettleDelay is waited after every action before observing again.
	SettleDelay time.Duration
}

// DefaultConfig returns the operator defaults.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 8,
		TimeLimit:     2 * time.Minute,
		SettleDelay:   time.Second,
	}
}
