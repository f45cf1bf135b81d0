package outbox

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// RelayOptions tunes the polling dispatcher. Zero values fall back to the
// defaults below, which mirror the OUTBOX_RELAY_* environment defaults.
type RelayOptions struct {
	// PollInterval is how long the relay sleeps between empty polls.
	PollInterval time.Duration
	// BatchSize caps how many messages a single poll claims.
	BatchSize int
	// LockTTL is the claim lease; expired claims become visible again.
	LockTTL time.Duration
	// MaxAttempts marks a message dead once exceeded.
	MaxAttempts int
	// SingleActive serializes relays behind a Postgres advisory lock.
	SingleActive bool

	// MaxBackoff and JitterMax bound the retry schedule, see retryDelay.
	MaxBackoff time.Duration
	JitterMax  time.Duration

	// LastErrorMaxLen bounds the stored last_error column, in bytes.
	LastErrorMaxLen int

	// DispatchTimeout bounds each handler invocation.
	DispatchTimeout time.Duration

	Logger *logrus.Entry
	Rand   *rand.Rand

	// ObserveQueueDepthEvery throttles the queue depth gauge query.
	ObserveQueueDepthEvery time.Duration
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = 1 * time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 60 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 25
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.JitterMax <= 0 {
		o.JitterMax = 200 * time.Millisecond
	}
	if o.LastErrorMaxLen <= 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = 30 * time.Second
	}
	if o.ObserveQueueDepthEvery <= 0 {
		o.ObserveQueueDepthEvery = 10 * time.Second
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}

// CleanerOptions tunes retention for delivered and dead messages.
type CleanerOptions struct {
	Enabled bool
	// Interval is how often the cleaner sweeps.
	Interval time.Duration
	// Retention keeps delivered messages around for auditing before purge.
	Retention time.Duration
	// DeadRetention, when positive, also purges dead messages past the cutoff.
	DeadRetention time.Duration

	// DeadAttemptsThreshold selects which rows count as dead for purging.
	DeadAttemptsThreshold int

	Logger *logrus.Entry
}

func (o *CleanerOptions) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = 1 * time.Minute
	}
	if o.Retention <= 0 {
		o.Retention = 7 * 24 * time.Hour
	}
}
