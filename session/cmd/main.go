package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/imtaco/meeting-coordinator/internal/config"
	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/internal/otel"
	"github.com/imtaco/meeting-coordinator/internal/retry"
	"github.com/imtaco/meeting-coordinator/internal/workflow"
	"github.com/imtaco/meeting-coordinator/media"
	meetingsclient "github.com/imtaco/meeting-coordinator/meetings/client"
	"github.com/imtaco/meeting-coordinator/session"
	signalclient "github.com/imtaco/meeting-coordinator/signal/client"
)

const (
	ErrConfig errors.Code = "bad configuration"

	readyPollInterval = 200 * time.Millisecond
	enrollMaxWait     = time.Minute
)

type Config struct {
	App     config.App            `mapstructure:"app"`
	Otel    otel.Config           `mapstructure:"otel"`
	Media   media.Config          `mapstructure:"media"`
	Session session.Config        `mapstructure:"session"`
	Manager session.ManagerConfig `mapstructure:"manager"`

	MeetingsURL     string        `mapstructure:"meetings_url"`
	MeetingsTimeout time.Duration `mapstructure:"meetings_timeout"`
	SignalURL       string        `mapstructure:"signal_url"`

	// host creates a new event, attendee joins EventID
	Role        string `mapstructure:"role"`
	EventID     string `mapstructure:"event_id"`
	Title       string `mapstructure:"title"`
	DisplayName string `mapstructure:"display_name"`

	// host only
	StartAfterJoin bool          `mapstructure:"start_after_join"`
	EndAfter       time.Duration `mapstructure:"end_after"`
}

func loadConfig() (*Config, error) {
	return config.Load(&Config{}, func(v *viper.Viper) {
		v.SetDefault("meetings_url", "http://localhost:3000")
		v.SetDefault("meetings_timeout", "5s")
		v.SetDefault("signal_url", "ws://localhost:8081/ws")
		v.SetDefault("role", string(constants.UserRoleAttendee))
		v.SetDefault("event_id", "")
		v.SetDefault("title", "Headless meeting")
		v.SetDefault("display_name", "bot")
		v.SetDefault("start_after_join", true)
		v.SetDefault("end_after", "0s")

		config.Setup(v, "app")
		otel.Setup(v, "otel", "session")
		media.Setup(v, "media")
		session.Setup(v, "session")
		session.SetupManager(v, "manager")
	})
}

// enrollment is what the meetings service hands a participant before joining.
type enrollment struct {
	eventID string
	userID  string
	token   string
}

// enrollWithRetry keeps trying while the meetings service is unreachable.
func enrollWithRetry(ctx context.Context, cfg *Config, logger *log.Logger) (*enrollment, error) {
	var enr *enrollment
	unreachable := func(err error) bool {
		return errors.Is(err, meetingsclient.ErrRequest)
	}
	r := retry.New(logger, 500*time.Millisecond, 5*time.Second, enrollMaxWait, unreachable)
	err := r.Do(ctx, func() error {
		var err error
		enr, err = enroll(ctx, cfg, logger)
		return err
	})
	return enr, err
}

// enroll creates the event for a host, or obtains an attendee token.
func enroll(ctx context.Context, cfg *Config, logger *log.Logger) (*enrollment, error) {
	anon := meetingsclient.New(cfg.MeetingsURL, cfg.MeetingsTimeout, meetingsclient.StaticToken(""), logger)

	switch constants.UserRole(cfg.Role) {
	case constants.UserRoleHost:
		created, err := anon.CreateEvent(ctx, cfg.Title, cfg.DisplayName, time.Time{})
		if err != nil {
			return nil, err
		}
		return &enrollment{
			eventID: created.Event.ID,
			userID:  created.HostID,
			token:   created.HostToken,
		}, nil

	case constants.UserRoleAttendee:
		if cfg.EventID == "" {
			return nil, errors.New(ErrConfig, "event_id is required for attendees")
		}
		tok, err := anon.IssueToken(ctx, cfg.EventID, cfg.DisplayName)
		if err != nil {
			return nil, err
		}
		return &enrollment{
			eventID: tok.EventID,
			userID:  tok.UserID,
			token:   tok.Token,
		}, nil
	}
	return nil, errors.Newf(ErrConfig, "unknown role %q", cfg.Role)
}

// hostScript starts the event once the host may, then ends it after endAfter.
func hostScript(ctx context.Context, s *session.Session, startAfterJoin bool, endAfter time.Duration, logger *log.Logger) {
	if startAfterJoin {
		ticker := time.NewTicker(readyPollInterval)
		defer ticker.Stop()
	wait:
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.Done():
				return
			case <-ticker.C:
				if s.Phase() >= session.PhaseReadyToStart {
					break wait
				}
			}
		}
		if err := s.StartEvent(ctx); err != nil {
			logger.Error("Failed to start event", log.Error(err))
			return
		}
		logger.Info("Event started", log.EventID(s.EventID()))
	}

	if endAfter <= 0 {
		return
	}
	select {
	case <-ctx.Done():
		return
	case <-s.Done():
		return
	case <-time.After(endAfter):
	}
	if err := s.EndEvent(ctx); err != nil {
		logger.Error("Failed to end event", log.Error(err))
	}
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration", err)
	}

	logger, err := log.NewLogger(config.App.LogConfigFile)
	if err != nil {
		log.Fatal("Failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	// cancelled when the session leaves the room on its own
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	otelShutdown, err := otel.Init(ctx, &config.Otel, logger)
	if err != nil {
		logger.Fatal("Failed to initialize OTEL provider", log.Error(err))
	}

	enr, err := enrollWithRetry(ctx, config, logger.Module("Enroll"))
	if err != nil {
		logger.Fatal("Failed to enroll with meetings service", log.Error(err))
	}
	logger.Info("Enrolled",
		log.EventID(enr.eventID),
		log.UserID(enr.userID),
		log.String("role", config.Role))

	events := meetingsclient.New(
		config.MeetingsURL,
		config.MeetingsTimeout,
		meetingsclient.StaticToken(enr.token),
		logger.Module("Meetings"),
	)
	ev, err := events.GetEvent(ctx, enr.eventID)
	if err != nil {
		logger.Fatal("Failed to load event", log.Error(err))
	}

	transport := signalclient.New(
		config.SignalURL,
		func(string) (string, error) { return enr.token, nil },
		signalclient.Options{Audio: config.Media.Audio, Video: config.Media.Video},
		logger.Module("Signal"),
	)
	sessCfg := config.Session
	sessCfg.ID = uuid.New().String()
	sessCfg.EventID = enr.eventID
	sess := session.New(
		sessCfg,
		media.NewSource(config.Media, logger.Module("Media")),
		transport,
		events,
		&session.LogPresenter{
			Logger:     logger.Module("Presenter"),
			OnNavigate: func(string) { stop() },
		},
		logger.Module("Session"),
	)

	manager := session.NewManager(events, config.Manager, logger.Module("Manager"))

	runCtx, stopRun := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		manager.Run(gctx)
		return nil
	})
	manager.Add(gctx, sess)

	sess.Evaluate(session.Preconditions{
		Event:       ev,
		UserID:      enr.userID,
		DisplayName: config.DisplayName,
		Eligible:    true,
	})

	if ev.IsHost(enr.userID) {
		g.Go(func() error {
			hostScript(gctx, sess, config.StartAfterJoin, config.EndAfter, logger.Module("Host"))
			return nil
		})
	}

	cleanup := func(ctx context.Context) {
		manager.LeaveAll(ctx)
		stopRun()
		_ = g.Wait()

		if err := otelShutdown(ctx); err != nil {
			logger.Error("Failed to shutdown OTEL", log.Error(err))
		}
	}
	workflow.WaitGracefulShutdown(ctx, logger.Module("CleanUp"), cleanup, config.App.ShutdownTimeout)
}
