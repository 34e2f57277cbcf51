package domain

import "time"

// AccountEventType names a completed account lifecycle transaction.
type AccountEventType string

const (
	EventRegistered   AccountEventType = "registered"
	EventLoggedIn     AccountEventType = "logged_in"
	EventUpdated      AccountEventType = "updated"
	EventRoleAssigned AccountEventType = "role_assigned"
	EventDeleted      AccountEventType = "deleted"
)

// AccountEvent is an audit record of a change to a user account.
type AccountEvent struct {
	Type       AccountEventType
	UserID     string // account the event is about
	ActorID    string // caller that caused it; equals UserID for self-service operations
	Detail     string // optional, e.g. the granted role
	OccurredAt time.Time
}
