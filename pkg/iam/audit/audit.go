package audit

import (
	"context"
	"time"

	"github.com/aibles/iam/pkg/kernel"
)

// EventType identifies a domain event worth auditing.
type EventType string

const (
	EventUserCreated       EventType = "USER_CREATED"
	EventUserStatusChanged EventType = "USER_STATUS_CHANGED"
	EventUserDeleted       EventType = "USER_DELETED"
	EventPasskeyRegistered EventType = "PASSKEY_REGISTERED"
	EventPasskeyDeleted    EventType = "PASSKEY_DELETED"
	EventLoginSucceeded    EventType = "LOGIN_SUCCEEDED"
	EventAccountLinked     EventType = "ACCOUNT_LINKED"
	EventTokenRefreshed    EventType = "TOKEN_REFRESHED"
	EventTokenRevoked      EventType = "TOKEN_REVOKED"
)

// Event is a fire-and-forget audit record. Publishing one must never fail
// the operation that produced it.
type Event struct {
	Type       EventType
	UserID     kernel.UserID
	Method     string
	OccurredAt time.Time
	Metadata   map[string]any
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType EventType, userID kernel.UserID) Event {
	return Event{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now(),
	}
}

// WithMethod annotates the authentication method (passkey, google, refresh).
func (e Event) WithMethod(method string) Event {
	e.Method = method
	return e
}

// WithMetadata attaches an extra key/value pair.
func (e Event) WithMetadata(key string, value any) Event {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// Publisher is the best-effort audit sink.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}
