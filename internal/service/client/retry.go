package client

import "time"

// RetryPolicy is the fixed-backoff reconnection policy.
type RetryPolicy struct {
	// Delay is the pause between failed handshakes.
	Delay time.Duration
	// MaxAttempts is the number of consecutive failed handshakes tolerated.
	MaxAttempts int
}

// RetryState counts consecutive failed handshakes against a policy.
// It is owned by a single supervisor and is not safe for concurrent use.
type RetryState struct {
	attempts int
	policy   RetryPolicy
}

// NewRetryState creates a zeroed counter for policy.
func NewRetryState(policy RetryPolicy) *RetryState {
	return &RetryState{policy: policy}
}

// Fail records a failed handshake and reports whether the policy is exhausted.
func (r *RetryState) Fail() bool {
	r.attempts++

	return r.attempts >= r.policy.MaxAttempts
}

// Reset zeroes the counter after a successful handshake.
func (r *RetryState) Reset() {
	r.attempts = 0
}

// Attempts returns the number of consecutive failed handshakes.
func (r *RetryState) Attempts() int {
	return r.attempts
}

// Delay returns the pause before the next attempt.
func (r *RetryState) Delay() time.Duration {
	return r.policy.Delay
}
