package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	intotel "github.com/imtaco/meeting-coordinator/internal/otel"
	"github.com/imtaco/meeting-coordinator/meetings"
)

// attempts at a status update before a concurrent change is reported
const maxStatusAttempts = 3

type eventSvcImpl struct {
	store  meetings.EventStore
	auth   jwt.Auth
	tracer trace.Tracer
	logger *log.Logger
}

func NewEventService(
	store meetings.EventStore,
	auth jwt.Auth,
	logger *log.Logger,
) meetings.EventService {
	return &eventSvcImpl{
		store:  store,
		auth:   auth,
		tracer: otel.Tracer("meetings.service"),
		logger: logger,
	}
}

func (es *eventSvcImpl) CreateEvent(ctx context.Context, hostID, title string, scheduledAt time.Time) (*meetings.EventRecord, error) {
	ev, err := es.store.CreateEvent(ctx, &meetings.EventRecord{
		ID:          uuid.NewString(),
		Title:       title,
		HostID:      hostID,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	eventsCreated.Add(ctx, 1)
	return ev, nil
}

func (es *eventSvcImpl) GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error) {
	return es.store.GetEvent(ctx, eventID)
}

// SetEventStatus applies a lifecycle transition on behalf of actorID. The host
// check happens here regardless of what the caller believes its role is.
func (es *eventSvcImpl) SetEventStatus(ctx context.Context, eventID, actorID string, status meetings.EventStatus) (*meetings.EventRecord, error) {
	ctx, span := intotel.StartSpan(ctx, es.tracer, "SetEventStatus",
		attribute.String("event.id", eventID),
		attribute.String("event.status", string(status)))
	defer span.End()

	if !status.Valid() {
		return nil, errors.Newf(meetings.ErrInvalidEventStatus, "unknown status %q", status)
	}

	for attempt := 1; ; attempt++ {
		ev, from, err := es.applyStatus(ctx, eventID, actorID, status)
		if errors.Is(err, meetings.ErrConflict) && attempt < maxStatusAttempts {
			statusConflicts.Add(ctx, 1)
			es.logger.Debug("Event changed during status update, retrying",
				log.EventID(eventID),
				log.Int("attempt", attempt))
			continue
		}
		if err != nil {
			intotel.RecordError(span, err)
			return nil, err
		}
		if from == status {
			return ev, nil
		}

		statusTransitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(status))))
		es.logger.Info("Event status changed",
			log.EventID(eventID),
			log.String("from", string(from)),
			log.String("to", string(status)))
		return ev, nil
	}
}

// applyStatus re-reads the event and checks the transition against what is
// stored now, so a concurrent change is never overwritten.
func (es *eventSvcImpl) applyStatus(ctx context.Context, eventID, actorID string, status meetings.EventStatus) (*meetings.EventRecord, meetings.EventStatus, error) {
	ev, err := es.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, "", err
	}

	if !ev.IsHost(actorID) {
		unauthorizedAttempts.Add(ctx, 1)
		es.logger.Warn("Rejected status change from non-host",
			log.EventID(eventID),
			log.String("actorId", actorID))
		return nil, "", errors.Newf(meetings.ErrUnauthorized, "user %s is not the host of event %s", actorID, eventID)
	}

	if !meetings.CanTransition(ev.Status, status) {
		rejectedTransitions.Add(ctx, 1)
		return nil, "", errors.Newf(meetings.ErrInvalidTransition, "cannot move event from %s to %s", ev.Status, status)
	}

	from := ev.Status
	if from == status {
		return ev, from, nil
	}

	ev.Status = status
	if err := es.store.UpdateEvent(ctx, ev); err != nil {
		if errors.Is(err, meetings.ErrConflict) {
			return nil, from, err
		}
		return nil, from, fmt.Errorf("failed to update event status: %w", err)
	}
	return ev, from, nil
}

// IssueToken mints a participant identity for an existing event.
func (es *eventSvcImpl) IssueToken(ctx context.Context, eventID, displayName string) (*meetings.ParticipantToken, error) {
	if _, err := es.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}

	userID := uuid.NewString()
	token, err := es.auth.Sign(userID, eventID, displayName)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	tokensIssued.Add(ctx, 1)
	return &meetings.ParticipantToken{
		UserID:  userID,
		EventID: eventID,
		Token:   token,
	}, nil
}
