package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/scheduler"
	"github.com/imtaco/meeting-coordinator/internal/sync"
)

type ManagerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

func SetupManager(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("poll_interval"), "5s")
	v.SetDefault(p("poll_timeout"), "3s")
}

// Manager runs many sessions and polls the event status for each one that
// has not gone live yet, since starting an event is not pushed to attendees.
type Manager struct {
	sessions  *sync.Map[string, *Session]
	scheduler *scheduler.KeyedScheduler
	events    EventStatusClient
	interval  time.Duration
	timeout   time.Duration
	logger    *log.Logger
}

func NewManager(events EventStatusClient, cfg ManagerConfig, logger *log.Logger) *Manager {
	return NewManagerWithClock(events, cfg, clockwork.NewRealClock(), logger)
}

func NewManagerWithClock(events EventStatusClient, cfg ManagerConfig, clock clockwork.Clock, logger *log.Logger) *Manager {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = interval
	}

	return &Manager{
		sessions:  sync.NewMap[string, *Session](),
		scheduler: scheduler.NewKeyedSchedulerWithClock(logger.Module("Scheduler"), clock),
		events:    events,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Add registers s, runs it until it stops and schedules its first poll.
func (m *Manager) Add(ctx context.Context, s *Session) bool {
	if _, loaded := m.sessions.LoadOrStore(s.ID(), s); loaded {
		m.logger.Warn("Session already registered", log.SessionID(s.ID()))
		return false
	}

	go func() {
		s.Run(ctx)
		m.remove(s.ID())
	}()
	m.scheduler.Enqueue(s.ID(), m.interval)

	m.logger.Info("Session added",
		log.SessionID(s.ID()),
		log.EventID(s.EventID()))
	return true
}

func (m *Manager) Get(id string) (*Session, bool) {
	return m.sessions.Load(id)
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

func (m *Manager) remove(id string) {
	if _, ok := m.sessions.LoadAndDelete(id); ok {
		m.scheduler.Cancel(id)
		m.logger.Info("Session removed", log.SessionID(id))
	}
}

// Run serves poll timers until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		m.scheduler.Shutdown()
	}()

	for id := range m.scheduler.Chan() {
		if ctx.Err() != nil {
			continue
		}
		s, ok := m.sessions.Load(id)
		if !ok {
			continue
		}
		go m.poll(ctx, s)
	}
}

func (m *Manager) poll(ctx context.Context, s *Session) {
	if phase := s.Phase(); phase >= PhaseLive {
		m.logger.Debug("Stop polling",
			log.SessionID(s.ID()),
			log.String("phase", phase.String()))
		return
	}

	statusPolls.Add(ctx, 1)
	pctx, cancel := context.WithTimeout(ctx, m.timeout)
	ev, err := m.events.GetEvent(pctx, s.EventID())
	cancel()

	if err != nil {
		m.logger.Warn("Failed to poll event status",
			log.SessionID(s.ID()),
			log.Error(err))
	} else {
		s.ObserveStatus(ev.GetStatus())
	}

	if ctx.Err() == nil {
		m.scheduler.Enqueue(s.ID(), m.interval)
	}
}

// LeaveAll tears down every session, waiting up to ctx for each.
func (m *Manager) LeaveAll(ctx context.Context) {
	for _, s := range m.sessions.Values() {
		if err := s.Leave(ctx); err != nil {
			m.logger.Warn("Failed to leave session",
				log.SessionID(s.ID()),
				log.Error(err))
		}
	}
}
