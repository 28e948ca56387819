package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/course-platform/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventContentAccessed        EventType = "content_accessed"
	EventContentAccessDenied    EventType = "content_access_denied"
	EventPasswordResetRequested EventType = "password_reset_requested"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	UserID int64       `json:"user_id,omitempty"`
	Email  string      `json:"email,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// ActorFromPrincipal builds an Actor; a nil principal yields an anonymous actor.
func ActorFromPrincipal(p *domain.Principal) Actor {
	if p == nil {
		return Actor{}
	}
	return Actor{UserID: p.ID, Email: p.Email, Role: p.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ContentAccessPayload describes an access attempt on a course asset.
type ContentAccessPayload struct {
	Kind       domain.ResourceKind `json:"kind"`
	ResourceID int64               `json:"resource_id"`
	CourseID   int64               `json:"course_id"`
	Reason     domain.DenyReason   `json:"reason,omitempty"`
}

// PasswordResetRequestedPayload carries the one-time code to deliver.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
