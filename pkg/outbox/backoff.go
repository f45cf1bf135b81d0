package outbox

import (
	"math/rand"
	"time"
)

// retryDelay schedules the next dispatch attempt: one second doubled per
// prior attempt, capped at maxBackoff, plus random jitter so concurrent
// relays do not wake in lockstep.
func retryDelay(r *rand.Rand, attempts int, maxBackoff, maxJitter time.Duration) time.Duration {
	if attempts <= 0 {
		return randomJitter(r, maxJitter)
	}
	step := time.Second
	for i := 1; i < attempts && step < maxBackoff; i++ {
		step *= 2
	}
	if step > maxBackoff {
		step = maxBackoff
	}
	return step + randomJitter(r, maxJitter)
}

// randomJitter draws from [0, maxJitter]. A nil source yields zero jitter,
// which keeps tests deterministic.
func randomJitter(r *rand.Rand, maxJitter time.Duration) time.Duration {
	if r == nil || maxJitter <= 0 {
		return 0
	}
	return time.Duration(r.Int63n(int64(maxJitter) + 1)) //nolint:gosec
}
