package session

import (
	"context"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

// StartEvent persists the event as live and moves the host's own session to
// Live. Attendees are not notified; they converge when they observe the status.
func (s *Session) StartEvent(ctx context.Context) error {
	reply := make(chan error, 1)
	if !s.post(func(actx context.Context) {
		s.startEvent(actx, ctx, reply)
	}) {
		return errors.New(ErrSessionClosed, "session is not running")
	}
	return s.await(ctx, reply)
}

// EndEvent ends the room for everyone, then persists the completed status,
// then tears down this session. A persistence failure after the broadcast is
// reported and leaves the session in place; nothing is rolled back.
func (s *Session) EndEvent(ctx context.Context) error {
	reply := make(chan error, 1)
	if !s.post(func(actx context.Context) {
		s.endEvent(actx, ctx, reply)
	}) {
		return errors.New(ErrSessionClosed, "session is not running")
	}
	return s.await(ctx, reply)
}

func (s *Session) await(ctx context.Context, reply <-chan error) error {
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		select {
		case err := <-reply:
			return err
		default:
			return errors.New(ErrSessionClosed, "session stopped")
		}
	}
}

func (s *Session) authorizeHost(op string) error {
	if s.event == nil {
		return errors.Newf(ErrLifecycleTransition, "%s: event record not resolved", op)
	}
	if s.role != constants.UserRoleHost {
		return errors.Newf(ErrUnauthorizedTransition, "%s: only the host may change the event status", op)
	}
	return nil
}

func closedErr() error {
	return errors.New(ErrSessionClosed, "session terminated")
}

func (s *Session) startEvent(ctx, callerCtx context.Context, reply chan<- error) {
	if err := s.authorizeHost("start event"); err != nil {
		s.report(err)
		reply <- err
		return
	}
	if s.phase.ended() {
		reply <- closedErr()
		return
	}
	if s.hasStartedEvent {
		reply <- nil
		return
	}

	eventID := s.eventID
	s.async(callerCtx, func(ctx context.Context) (action, func()) {
		rec, err := s.events.SetEventStatus(ctx, eventID, constants.EventStatusLive)
		return func(ctx context.Context) {
			s.onEventStarted(ctx, rec, err, reply)
		}, func() { reply <- closedErr() }
	})
}

func (s *Session) onEventStarted(ctx context.Context, rec *meetings.EventRecord, err error, reply chan<- error) {
	if s.phase.ended() {
		s.discardLate(ctx, "startEvent")
		reply <- closedErr()
		return
	}
	if err != nil {
		err = errors.Wrap(ErrLifecycleTransition, err, "persist live status")
		s.report(err)
		reply <- err
		return
	}

	s.applyRecord(rec, constants.EventStatusLive)
	s.logger.Info("Event started", log.EventID(s.eventID))
	s.hasStartedEvent = true
	s.advance(ctx)
	reply <- nil
}

func (s *Session) endEvent(ctx, callerCtx context.Context, reply chan<- error) {
	if err := s.authorizeHost("end event"); err != nil {
		s.report(err)
		reply <- err
		return
	}
	if s.phase.ended() {
		reply <- closedErr()
		return
	}
	if s.ending {
		reply <- errors.New(ErrLifecycleTransition, "end event already in progress")
		return
	}
	s.ending = true

	s.async(callerCtx, func(ctx context.Context) (action, func()) {
		err := s.transport.EndRoom(ctx)
		return func(ctx context.Context) {
			s.onRoomEndBroadcast(ctx, err, reply)
		}, func() { reply <- closedErr() }
	})
}

func (s *Session) onRoomEndBroadcast(ctx context.Context, err error, reply chan<- error) {
	if err != nil {
		s.ending = false
		err = errors.Wrap(ErrLifecycleTransition, err, "broadcast room end")
		s.report(err)
		reply <- err
		return
	}
	s.logger.Info("Room ended for all participants", log.EventID(s.eventID))

	// attendees are already out, so the status is persisted even if this
	// session was torn down meanwhile
	eventID := s.eventID
	s.async(ctx, func(ctx context.Context) (action, func()) {
		rec, err := s.events.SetEventStatus(ctx, eventID, constants.EventStatusCompleted)
		return func(ctx context.Context) {
			s.onEventCompleted(ctx, rec, err, reply)
		}, func() { reply <- closedErr() }
	})
}

func (s *Session) onEventCompleted(ctx context.Context, rec *meetings.EventRecord, err error, reply chan<- error) {
	s.ending = false
	if err != nil {
		err = errors.Wrap(ErrLifecycleTransition, err, "persist completed status")
		s.report(err)
		reply <- err
		return
	}

	s.applyRecord(rec, constants.EventStatusCompleted)
	if s.phase.ended() {
		reply <- nil
		return
	}
	s.terminate(ctx, "event ended", func() { reply <- nil })
}

func (s *Session) applyRecord(rec *meetings.EventRecord, status constants.EventStatus) {
	if rec != nil {
		s.event = rec
		return
	}
	s.event.Status = status
}
