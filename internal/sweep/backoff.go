package sweep

import (
	"math"
	"math/rand"
	"time"
)

// Backoff returns the retry delay after `attempt` consecutive failures:
// 2s, 4s, 8s ... capped at ceiling (or 5m when ceiling is unset), plus up to 250ms jitter.
func Backoff(attempt int, ceiling time.Duration) time.Duration {
	base := 2 * time.Second

	capDelay := ceiling
	if capDelay <= 0 {
		capDelay = 5 * time.Minute
	}

	multiple := math.Pow(2, float64(attempt))
	delay := time.Duration(float64(base) * multiple)

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
