// Package queue defines message payloads exchanged over the message broker.
package queue

// AuthEventsQueue is the durable queue every auth event is published to.
const AuthEventsQueue = "auth.events"

// Event types.
const (
	EventLogin         = "auth.login"
	EventLogout        = "auth.logout"
	EventRefreshReuse  = "auth.refresh_reuse"
	EventCodeRequested = "auth.code_requested"
	EventPasswordReset = "auth.password_reset"
)

// AuthEvent is published after a session state change. Code is set only for
// EventCodeRequested: the consumer is the delivery channel for
// verification codes.
type AuthEvent struct {
	Type       string `json:"type"`
	UserID     uint64 `json:"user_id"`
	Email      string `json:"email,omitempty"`
	Code       string `json:"code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	OccurredAt string `json:"occurred_at"`
}
