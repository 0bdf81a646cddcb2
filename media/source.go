// Package media provides a synthetic local capture source for headless
// participants. It hands out streams that tick frames on a clock until released.
package media

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/viper"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/session"
)

const (
	ErrPermissionDenied errors.Code = "capture permission denied"
	ErrNoTracks         errors.Code = "no capture tracks requested"
	ErrReleased         errors.Code = "stream already released"

	KindAudio = "audio"
	KindVideo = "video"

	frameBuffer = 8
)

type Config struct {
	Audio         bool          `mapstructure:"audio"`
	Video         bool          `mapstructure:"video"`
	FrameInterval time.Duration `mapstructure:"frame_interval"`
	// simulates the time a user takes to answer the capture prompt
	AcquireDelay time.Duration `mapstructure:"acquire_delay"`
	Deny         bool          `mapstructure:"deny"`
}

func Setup(v *viper.Viper, prefix string) {
	p := func(key string) string { return prefix + "." + key }

	v.SetDefault(p("audio"), true)
	v.SetDefault(p("video"), true)
	v.SetDefault(p("frame_interval"), "20ms")
	v.SetDefault(p("acquire_delay"), "0s")
	v.SetDefault(p("deny"), false)
}

type Frame struct {
	Seq  uint64
	Kind string
	At   time.Time
}

type Source struct {
	cfg    Config
	clock  clockwork.Clock
	active atomic.Int32
	logger *log.Logger
}

func NewSource(cfg Config, logger *log.Logger) *Source {
	return NewSourceWithClock(cfg, clockwork.NewRealClock(), logger)
}

func NewSourceWithClock(cfg Config, clock clockwork.Clock, logger *log.Logger) *Source {
	if logger == nil {
		panic("logger is required")
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 20 * time.Millisecond
	}
	return &Source{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
	}
}

// Active returns the number of streams acquired and not yet released.
func (s *Source) Active() int {
	return int(s.active.Load())
}

// Acquire opens a capture stream with the configured tracks.
func (s *Source) Acquire(ctx context.Context) (session.StreamHandle, error) {
	if s.cfg.Deny {
		acquireFailures.Add(ctx, 1)
		return nil, errors.New(ErrPermissionDenied, "capture denied by user")
	}

	var kinds []string
	if s.cfg.Audio {
		kinds = append(kinds, KindAudio)
	}
	if s.cfg.Video {
		kinds = append(kinds, KindVideo)
	}
	if len(kinds) == 0 {
		acquireFailures.Add(ctx, 1)
		return nil, errors.New(ErrNoTracks, "neither audio nor video enabled")
	}

	if s.cfg.AcquireDelay > 0 {
		select {
		case <-s.clock.After(s.cfg.AcquireDelay):
		case <-ctx.Done():
			acquireFailures.Add(ctx, 1)
			return nil, ctx.Err()
		}
	}

	st := &Stream{
		id:     uuid.New().String(),
		kinds:  kinds,
		frames: make(chan Frame, frameBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		source: s,
	}
	s.active.Add(1)
	streamsActive.Add(ctx, 1)
	go st.run(s.clock.NewTicker(s.cfg.FrameInterval))

	s.logger.Info("Capture stream acquired",
		log.String("streamId", st.id),
		log.Strings("kinds", kinds))
	return st, nil
}

type Stream struct {
	id     string
	kinds  []string
	frames chan Frame
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	source *Source
}

func (st *Stream) ID() string { return st.id }

func (st *Stream) Kinds() []string { return st.kinds }

// Frames delivers captured frames until the stream is released.
func (st *Stream) Frames() <-chan Frame { return st.frames }

// Release stops capture. Releasing twice returns ErrReleased.
func (st *Stream) Release() error {
	released := false
	st.once.Do(func() {
		close(st.stop)
		<-st.done
		released = true
	})
	if !released {
		return errors.Newf(ErrReleased, "stream %s", st.id)
	}

	st.source.active.Add(-1)
	streamsActive.Add(context.Background(), -1)
	st.source.logger.Info("Capture stream released", log.String("streamId", st.id))
	return nil
}

func (st *Stream) run(ticker clockwork.Ticker) {
	defer close(st.done)
	defer close(st.frames)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-st.stop:
			return
		case now := <-ticker.Chan():
			for _, kind := range st.kinds {
				seq++
				select {
				case st.frames <- Frame{Seq: seq, Kind: kind, At: now}:
				default:
					framesDropped.Add(context.Background(), 1)
				}
			}
		}
	}
}
