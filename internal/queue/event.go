// Package queue defines message payloads exchanged over the message broker.
package queue

// Event kinds published on the auth.events queue.
const (
	EventUserRegistered  = "user.registered"
	EventUserDeleted     = "user.deleted"
	EventSessionRevoked  = "session.revoked"
	EventRateLimitDenied = "ratelimit.denied"
)

// SecurityEvent is published for audit-relevant moments in the
// credential lifecycle. It carries enough for downstream consumers to
// log or alert without querying the primary database; it never contains
// secrets or hashes.
type SecurityEvent struct {
	Kind       string `json:"kind"`
	UserID     string `json:"user_id"`
	Tool       string `json:"tool,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
