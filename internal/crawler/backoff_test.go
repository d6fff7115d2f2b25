package crawler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryControllerDecide(t *testing.T) {
	t.Parallel()

	c := NewRetryController(3, 10*time.Millisecond, 100*time.Millisecond)

	ok := c.Decide(ClassOK, 0)
	assert.Equal(t, ActionProceed, ok.Action)
	assert.Zero(t, ok.Delay)

	first := c.Decide(ClassHardBlock, 0)
	require.Equal(t, ActionRetry, first.Action)
	assert.Greater(t, first.Delay, time.Duration(0))

	second := c.Decide(ClassTransportError, 1)
	require.Equal(t, ActionRetry, second.Action)

	// Attempt index 2 is the third and final attempt.
	last := c.Decide(ClassSoftBlock, 2)
	assert.Equal(t, ActionAbandon, last.Action)
	assert.Zero(t, last.Delay)
}

func TestRetryControllerBackoffBoundedByCap(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	maxDelay := 2 * time.Second
	c := NewRetryController(10, base, maxDelay)

	for attempt := 0; attempt < 12; attempt++ {
		for i := 0; i < 20; i++ {
			d := c.Backoff(attempt)
			assert.LessOrEqual(t, d, maxDelay, "attempt %d exceeded cap", attempt)
			assert.Greater(t, d, time.Duration(0))
		}
	}
}

func TestRetryControllerBackoffGrowsExponentially(t *testing.T) {
	t.Parallel()

	c := NewRetryController(10, time.Second, time.Hour)

	// Jitter spans [0.5, 1.3), so attempt k is bounded by base*2^k*1.3 and
	// attempt k+2 starts at base*2^(k+2)*0.5; consecutive attempts overlap
	// but two steps apart never do.
	low := c.Backoff(0)
	high := c.Backoff(2)
	assert.Greater(t, high, low)
}

func TestRetryControllerDefaults(t *testing.T) {
	t.Parallel()

	c := NewRetryController(0, 0, 0)
	assert.Equal(t, 4, c.MaxAttempts())

	d := c.Backoff(100)
	assert.LessOrEqual(t, d, 30*time.Second)
}

func TestRetryControllerNegativeAttempt(t *testing.T) {
	t.Parallel()

	c := NewRetryController(4, time.Second, time.Minute)
	d := c.Backoff(-3)
	assert.Greater(t, d, time.Duration(0))
	assert.LessOrEqual(t, d, time.Duration(float64(time.Second)*1.3))
}
