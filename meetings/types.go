package meetings

import (
	"context"
	"time"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
)

type EventStatus = constants.EventStatus

// EventService is the server side event lifecycle authority. Every status
// change re-validates that actorID is the event host.
type EventService interface {
	CreateEvent(ctx context.Context, hostID, title string, scheduledAt time.Time) (*EventRecord, error)
	GetEvent(ctx context.Context, eventID string) (*EventRecord, error)
	SetEventStatus(ctx context.Context, eventID, actorID string, status EventStatus) (*EventRecord, error)
	IssueToken(ctx context.Context, eventID, displayName string) (*ParticipantToken, error)
}

type EventStore interface {
	CreateEvent(ctx context.Context, ev *EventRecord) (*EventRecord, error)
	GetEvent(ctx context.Context, eventID string) (*EventRecord, error)
	UpdateEvent(ctx context.Context, ev *EventRecord) error
}

// EventRecord is the persisted scheduling record. Only Status is mutated by
// the session coordinator, through the lifecycle operations.
type EventRecord struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	HostID      string      `json:"hostId"`
	Status      EventStatus `json:"status"`
	ScheduledAt time.Time   `json:"scheduledAt,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`

	// Revision is the store revision the record was read at. Updates only
	// apply if the record has not changed since.
	Revision int64 `json:"-"`
}

func (e *EventRecord) GetStatus() EventStatus {
	if e == nil {
		return ""
	}
	return e.Status
}

func (e *EventRecord) GetHostID() string {
	if e == nil {
		return ""
	}
	return e.HostID
}

// IsHost reports whether userID owns the event.
func (e *EventRecord) IsHost(userID string) bool {
	return e != nil && userID != "" && e.HostID == userID
}

type ParticipantToken struct {
	UserID  string `json:"userId"`
	EventID string `json:"eventId"`
	Token   string `json:"token"`
}

const (
	ErrEventNotFound      errors.Code = "event not found"
	ErrUnauthorized       errors.Code = "unauthorized transition"
	ErrInvalidTransition  errors.Code = "invalid status transition"
	ErrInvalidEventStatus errors.Code = "invalid event status"
	ErrConflict           errors.Code = "event changed concurrently"
)

// CanTransition reports whether an event may move from one status to another.
// Re-applying the current status is accepted so retried requests stay harmless.
func CanTransition(from, to EventStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case constants.EventStatusNotStarted:
		return to == constants.EventStatusLive || to == constants.EventStatusCompleted
	case constants.EventStatusLive:
		return to == constants.EventStatusCompleted
	}
	return false
}
