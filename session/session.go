package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

const (
	actionQueueSize = 32
	abortLeaveTime  = 5 * time.Second
)

// Config holds per-session settings. ID and EventID are assigned per session
// and never read from configuration.
type Config struct {
	ID              string        `mapstructure:"-"`
	EventID         string        `mapstructure:"-"`
	CallSettleDelay time.Duration `mapstructure:"call_settle_delay"`
}

func Setup(v *viper.Viper, prefix string) {
	v.SetDefault(prefix+".call_settle_delay", defaultCallSettleDelay.String())
}

type action func(ctx context.Context)

// queued is an action waiting for the session goroutine. discard, when set,
// runs instead if the session stops before the action is applied.
type queued struct {
	run     action
	discard func()
}

// Session is one participant's attendance of an event. All state below the
// marker is owned by the goroutine running Run; every other method posts an
// action to it.
type Session struct {
	id      string
	eventID string

	transport Transport
	events    EventStatusClient
	presenter Presenter
	media     *mediaGate
	call      *callGate
	logger    *log.Logger

	actions chan queued
	done    chan struct{}
	stopped chan struct{}

	// guards closed; posters hold it shared while sending
	postMu sync.RWMutex
	closed bool

	phaseView      atomic.Int32
	hostView       atomic.Bool
	callActiveView atomic.Bool
	callArmedView  atomic.Bool

	// session goroutine only
	phase           Phase
	role            constants.UserRole
	userID          string
	displayName     string
	event           *meetings.EventRecord
	hasStartedEvent bool
	connectionID    string
	ending          bool
	inflight        int
	onTerminated    []func()
}

func New(
	cfg Config,
	media MediaSource,
	transport Transport,
	events EventStatusClient,
	presenter Presenter,
	logger *log.Logger,
) *Session {
	return NewWithClock(cfg, media, transport, events, presenter, clockwork.NewRealClock(), logger)
}

// NewWithClock is New with the call gate driven by clock.
func NewWithClock(
	cfg Config,
	media MediaSource,
	transport Transport,
	events EventStatusClient,
	presenter Presenter,
	clock clockwork.Clock,
	logger *log.Logger,
) *Session {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	delay := cfg.CallSettleDelay
	if delay <= 0 {
		delay = defaultCallSettleDelay
	}

	s := &Session{
		id:        cfg.ID,
		eventID:   cfg.EventID,
		transport: transport,
		events:    events,
		presenter: presenter,
		media:     newMediaGate(media, logger),
		call:      newCallGate(clock, delay),
		logger:    logger,
		actions:   make(chan queued, actionQueueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	transport.SetListener(&listener{s: s})
	return s
}

func (s *Session) ID() string      { return s.id }
func (s *Session) EventID() string { return s.eventID }

func (s *Session) Phase() Phase {
	return Phase(s.phaseView.Load())
}

func (s *Session) IsHost() bool {
	return s.hostView.Load()
}

// CallActive reports whether the call gate has started the call.
func (s *Session) CallActive() bool {
	return s.callActiveView.Load()
}

// CallScheduled reports whether the call gate guard has been set.
func (s *Session) CallScheduled() bool {
	return s.callArmedView.Load()
}

// Done is closed once the session reaches Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run drives the session until it terminates and no operation is in flight,
// or until ctx is cancelled.
func (s *Session) Run(ctx context.Context) {
	defer s.stop()

	activeSessions.Add(ctx, 1)
	defer activeSessions.Add(context.WithoutCancel(ctx), -1)

	for {
		select {
		case <-ctx.Done():
			s.abort()
			return
		case q := <-s.actions:
			q.run(ctx)
			if s.phase == PhaseTerminated && s.inflight == 0 {
				return
			}
		}
	}
}

// Evaluate offers the entry preconditions. Only the first satisfied
// evaluation while Idle starts the session; later ones are no-ops.
func (s *Session) Evaluate(pre Preconditions) {
	s.post(func(ctx context.Context) {
		s.evaluate(ctx, pre)
	})
}

// ObserveStatus feeds an externally observed event status to the session.
func (s *Session) ObserveStatus(status constants.EventStatus) {
	s.post(func(ctx context.Context) {
		s.observeStatus(ctx, status)
	})
}

// Leave tears the session down and waits for it to terminate.
func (s *Session) Leave(ctx context.Context) error {
	if !s.post(func(ctx context.Context) {
		s.terminate(ctx, "left")
	}) {
		return nil
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) post(act action) bool {
	return s.enqueue(queued{run: act})
}

func (s *Session) enqueue(q queued) bool {
	s.postMu.RLock()
	defer s.postMu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.actions <- q:
		return true
	case <-s.stopped:
		return false
	}
}

// stop refuses further posts, then discards whatever is still queued so
// results carrying resources get released.
func (s *Session) stop() {
	close(s.stopped)

	s.postMu.Lock()
	s.closed = true
	s.postMu.Unlock()

	for {
		select {
		case q := <-s.actions:
			if q.discard != nil {
				// may leave the room; keep it off the exiting goroutine
				go q.discard()
			}
		default:
			return
		}
	}
}

// async runs op off the session goroutine. The action it returns is applied
// on the session goroutine; if the session has stopped, discard runs instead.
func (s *Session) async(ctx context.Context, op func(ctx context.Context) (action, func())) {
	s.inflight++
	ctx = context.WithoutCancel(ctx)
	go func() {
		apply, discard := op(ctx)
		posted := s.enqueue(queued{
			run: func(ctx context.Context) {
				s.inflight--
				apply(ctx)
			},
			discard: discard,
		})
		if !posted && discard != nil {
			discard()
		}
	}()
}

func (s *Session) setPhase(ctx context.Context, to Phase) {
	from := s.phase
	if from == to {
		return
	}
	s.phase = to
	s.phaseView.Store(int32(to))

	phaseTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String())))
	s.logger.Info("Phase changed",
		log.String("from", from.String()),
		log.String("to", to.String()))
	s.presenter.PhaseChanged(from, to)
}

func (s *Session) report(err error) {
	s.logger.Error("Session error",
		log.String("phase", s.phase.String()),
		log.Error(err))
	s.presenter.ReportError(err)
}

func (s *Session) discardLate(ctx context.Context, what string) {
	lateResults.Add(ctx, 1)
	s.logger.Debug("Discarding late result",
		log.String("op", what),
		log.String("phase", s.phase.String()))
}

func (s *Session) evaluate(ctx context.Context, pre Preconditions) {
	if s.phase != PhaseIdle || !pre.satisfied() {
		return
	}
	if pre.Event.ID != s.eventID {
		s.logger.Warn("Ignoring preconditions for another event",
			log.EventID(pre.Event.ID))
		return
	}

	ev := *pre.Event
	s.event = &ev
	s.userID = pre.UserID
	s.displayName = pre.DisplayName
	s.role = constants.UserRoleAttendee
	if ev.IsHost(pre.UserID) {
		s.role = constants.UserRoleHost
	}
	s.hostView.Store(s.role == constants.UserRoleHost)

	s.setPhase(ctx, PhaseInitializing)
	s.acquireMedia(ctx)
}

func (s *Session) acquireMedia(ctx context.Context) {
	s.async(ctx, func(ctx context.Context) (action, func()) {
		h, err := s.media.acquire(ctx)
		discard := func() {
			if h != nil {
				releaseHandle(h, s.logger)
			}
		}
		return func(ctx context.Context) {
			s.onMedia(ctx, h, err, discard)
		}, discard
	})
}

func (s *Session) onMedia(ctx context.Context, h StreamHandle, err error, discard func()) {
	if s.phase != PhaseInitializing {
		s.discardLate(ctx, "media")
		discard()
		return
	}
	if err != nil {
		mediaFailures.Add(ctx, 1)
		s.report(err)
		return
	}

	s.media.hold(h)
	s.setPhase(ctx, PhaseJoining)
	s.join(ctx)
}

func (s *Session) join(ctx context.Context) {
	eventID, name := s.eventID, s.displayName
	isHost := s.role == constants.UserRoleHost

	s.async(ctx, func(ctx context.Context) (action, func()) {
		connID, err := s.transport.Join(ctx, eventID, name, isHost)
		discard := func() {
			if err != nil {
				return
			}
			if lerr := s.transport.Leave(ctx); lerr != nil {
				s.logger.Warn("Failed to leave after late join", log.Error(lerr))
			}
		}
		return func(ctx context.Context) {
			s.onJoined(ctx, connID, err, discard)
		}, discard
	})
}

func (s *Session) onJoined(ctx context.Context, connID string, err error, discard func()) {
	if s.phase != PhaseJoining {
		s.discardLate(ctx, "join")
		// leaving is itself a suspension; run it off the session goroutine
		go discard()
		return
	}
	if err != nil {
		joinFailures.Add(ctx, 1)
		s.report(errors.Wrap(ErrJoin, err, "join room"))
		return
	}

	joins.Add(ctx, 1)
	s.connectionID = connID
	s.logger.Info("Joined room", log.String("connectionId", connID))
	s.setPhase(ctx, PhaseJoined)

	if s.event.GetStatus() == constants.EventStatusLive {
		s.hasStartedEvent = true
	}
	s.advance(ctx)
}

// advance moves an in-room session to the phase its flags call for.
func (s *Session) advance(ctx context.Context) {
	if !s.phase.inRoom() || s.phase == PhaseLive {
		return
	}
	if s.hasStartedEvent {
		s.setPhase(ctx, PhaseLive)
		s.evaluateCall(ctx)
		return
	}
	if s.phase == PhaseJoined {
		if s.role == constants.UserRoleHost {
			s.setPhase(ctx, PhaseReadyToStart)
		} else {
			s.setPhase(ctx, PhaseWaitingForHost)
		}
	}
}

func (s *Session) evaluateCall(_ context.Context) {
	if !s.call.ready(s.phase == PhaseLive, s.transport.Connected(), len(s.transport.Roster())) {
		return
	}

	s.callArmedView.Store(true)
	s.logger.Info("Call start scheduled", log.Duration("delay", s.call.delay))
	s.call.arm(func() {
		s.post(s.fireCall)
	})
}

func (s *Session) fireCall(ctx context.Context) {
	if !s.call.pending() {
		return
	}
	s.call.fired()
	if s.phase != PhaseLive {
		return
	}

	s.async(ctx, func(ctx context.Context) (action, func()) {
		err := s.transport.StartCall(ctx)
		return func(ctx context.Context) {
			s.onCallStarted(ctx, err)
		}, nil
	})
}

func (s *Session) onCallStarted(ctx context.Context, err error) {
	if s.phase != PhaseLive {
		s.discardLate(ctx, "startCall")
		return
	}
	if err != nil {
		callStartFailures.Add(ctx, 1)
		s.report(errors.Wrap(ErrCallStart, err, "start call"))
		return
	}

	callsStarted.Add(ctx, 1)
	s.callActiveView.Store(true)
	s.logger.Info("Call started")
}

func (s *Session) observeStatus(ctx context.Context, status constants.EventStatus) {
	if !status.Valid() || s.event == nil || s.phase.ended() || s.event.Status == status {
		return
	}
	s.event.Status = status

	switch status {
	case constants.EventStatusLive:
		if s.phase.inRoom() && !s.hasStartedEvent {
			s.logger.Info("Observed event live")
			s.hasStartedEvent = true
			s.advance(ctx)
		}
	case constants.EventStatusCompleted:
		if s.role != constants.UserRoleHost && s.phase < PhaseLive {
			s.presenter.Notice("This event has already ended")
			s.terminate(ctx, "event completed")
		}
	}
}

func (s *Session) onRoomEnded(ctx context.Context) {
	if s.phase.ended() {
		return
	}
	// the host's own end sequence drives its teardown
	if s.role == constants.UserRoleHost {
		s.logger.Debug("Ignoring room ended echo on host session")
		return
	}

	remoteTerminations.Add(ctx, 1)
	s.presenter.Notice("The host has ended this event")
	s.terminate(ctx, "room ended")
}

// terminate starts teardown. then runs once the session is Terminated.
func (s *Session) terminate(ctx context.Context, reason string, then ...func()) {
	switch s.phase {
	case PhaseTerminated:
		for _, fn := range then {
			fn()
		}
		return
	case PhaseLeaving:
		s.onTerminated = append(s.onTerminated, then...)
		return
	}
	s.onTerminated = append(s.onTerminated, then...)

	s.setPhase(ctx, PhaseLeaving)
	s.call.cancel()
	s.media.release()

	if s.connectionID == "" {
		s.finishTerminate(ctx, reason)
		return
	}

	s.async(ctx, func(ctx context.Context) (action, func()) {
		err := s.transport.Leave(ctx)
		return func(ctx context.Context) {
			if err != nil {
				s.logger.Warn("Failed to leave room", log.Error(err))
			}
			s.finishTerminate(ctx, reason)
		}, nil
	})
}

func (s *Session) finishTerminate(ctx context.Context, reason string) {
	if s.phase == PhaseTerminated {
		return
	}
	s.setPhase(ctx, PhaseTerminated)
	close(s.done)
	s.presenter.NavigateAway(reason)

	for _, fn := range s.onTerminated {
		fn()
	}
	s.onTerminated = nil
}

// abort is the teardown path when Run is cancelled from outside.
func (s *Session) abort() {
	ctx := context.Background()
	if s.phase == PhaseTerminated {
		return
	}

	s.call.cancel()
	s.media.release()
	if s.connectionID != "" && s.phase != PhaseLeaving {
		lctx, cancel := context.WithTimeout(ctx, abortLeaveTime)
		if err := s.transport.Leave(lctx); err != nil {
			s.logger.Warn("Failed to leave room on abort", log.Error(err))
		}
		cancel()
	}
	s.setPhase(ctx, PhaseLeaving)
	s.finishTerminate(ctx, "session closed")
}

type listener struct {
	s *Session
}

func (l *listener) OnConnected() {
	l.s.post(l.s.evaluateCall)
}

func (l *listener) OnDisconnected() {
	l.s.post(func(context.Context) {
		l.s.logger.Warn("Transport disconnected", log.String("phase", l.s.phase.String()))
	})
}

func (l *listener) OnParticipantJoined(connectionID string) {
	l.s.post(func(ctx context.Context) {
		l.s.logger.Debug("Participant joined", log.String("connectionId", connectionID))
		l.s.evaluateCall(ctx)
	})
}

func (l *listener) OnParticipantLeft(connectionID string) {
	l.s.post(func(context.Context) {
		l.s.logger.Debug("Participant left", log.String("connectionId", connectionID))
	})
}

func (l *listener) OnRoomEnded() {
	l.s.post(l.s.onRoomEnded)
}

type nopPresenter struct{}

func (nopPresenter) PhaseChanged(_, _ Phase) {}
func (nopPresenter) ReportError(error)       {}
func (nopPresenter) Notice(string)           {}
func (nopPresenter) NavigateAway(string)     {}
