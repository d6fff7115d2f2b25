package crawler

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// Jitter is uniform in [0.5, 1.3) so concurrent retries spread out instead
// of stampeding in lockstep.
const (
	jitterMin   = 0.5
	jitterSpan  = 0.8
	jitterSteps = 1 << 16
)

// RetryController decides the fate of a task after each classified attempt.
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryController builds a controller; zero arguments take defaults of
// 4 attempts, 1s base, 30s cap.
func NewRetryController(maxAttempts int, baseDelay, maxDelay time.Duration) *RetryController {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &RetryController{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts exposes the retry ceiling for reporting.
func (c *RetryController) MaxAttempts() int {
	return c.maxAttempts
}

// Decide maps a classification and the 0-based index of the attempt just
// completed to a verdict. Ok proceeds; anything else retries with jittered
// exponential backoff while total attempts stay under the ceiling, then
// abandons. Abandon and Proceed are terminal.
func (c *RetryController) Decide(class Classification, attempt int) Decision {
	if class == ClassOK {
		return Decision{Action: ActionProceed}
	}
	if attempt+1 >= c.maxAttempts {
		return Decision{Action: ActionAbandon}
	}
	return Decision{Action: ActionRetry, Delay: c.Backoff(attempt)}
}

// Backoff returns min(cap, base * 2^attempt * jitter).
func (c *RetryController) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt)) * randomJitter()
	if capped := float64(c.maxDelay); delay > capped {
		delay = capped
	}
	return time.Duration(delay)
}

func randomJitter() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(jitterSteps))
	if err != nil {
		return 1
	}
	return jitterMin + jitterSpan*float64(n.Int64())/jitterSteps
}
