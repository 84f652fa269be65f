package utils

import "time"

// BackoffStrategy paces repeated dial attempts before a connection has
// ever been established. It is not used for reconnection: a closed
// connection stays closed.
type BackoffStrategy interface {
	NextDelay() time.Duration
	Reset()
}

type ExponentialBackoff struct {
	initialDelay time.Duration
	currentDelay time.Duration
	maxDelay     time.Duration
}

func NewExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		initialDelay: 1 * time.Second,
		currentDelay: 1 * time.Second,
		maxDelay:     30 * time.Second,
	}
}

func (e *ExponentialBackoff) NextDelay() time.Duration {
	delay := e.currentDelay
	e.currentDelay *= 2
	if e.currentDelay > e.maxDelay {
		e.currentDelay = e.maxDelay
	}
	return delay
}

func (e *ExponentialBackoff) Reset() {
	e.currentDelay = e.initialDelay
}
