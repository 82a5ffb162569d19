package apiclient

import "time"

// RetryPolicy bounds the transient-failure retry loop. It applies only to
// server errors (5xx) and transport failures; definitive client errors are
// returned immediately so the caller sees the rejection without wasted
// latency.
type RetryPolicy struct {
	// MaxAttempts is the physical attempt budget per retry generation.
	MaxAttempts int

	// Delays is the per-attempt backoff table. Delays[0] is slept between
	// attempts 1 and 2. When attempts outnumber entries the last entry
	// repeats.
	Delays []time.Duration
}

// DefaultRetryPolicy returns the production policy: three attempts with
// exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delays: []time.Duration{
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
		},
	}
}

// Retryable reports whether a classification is transient.
func (p RetryPolicy) Retryable(k Kind) bool {
	return k == KindServerError || k == KindNetworkError
}

// DelayFor returns the backoff before the given zero-based retry (the delay
// slept after attempt index attempt fails).
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if len(p.Delays) == 0 {
		return 0
	}
	if attempt >= len(p.Delays) {
		return p.Delays[len(p.Delays)-1]
	}
	if attempt < 0 {
		return p.Delays[0]
	}
	return p.Delays[attempt]
}
