package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffProgression(t *testing.T) {
	backoff := NewExponentialBackoff()

	assert.Equal(t, 1*time.Second, backoff.NextDelay())
	assert.Equal(t, 2*time.Second, backoff.NextDelay())
	assert.Equal(t, 4*time.Second, backoff.NextDelay())
	assert.Equal(t, 8*time.Second, backoff.NextDelay())
	assert.Equal(t, 16*time.Second, backoff.NextDelay())
	assert.Equal(t, 30*time.Second, backoff.NextDelay())
	assert.Equal(t, 30*time.Second, backoff.NextDelay(), "delay is capped")
}

func TestExponentialBackoffReset(t *testing.T) {
	backoff := NewExponentialBackoff()

	backoff.NextDelay()
	backoff.NextDelay()
	backoff.Reset()

	assert.Equal(t, 1*time.Second, backoff.NextDelay())
}
