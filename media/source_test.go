package media

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/suite"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

type SourceTestSuite struct {
	suite.Suite
	ctx   context.Context
	clock *clockwork.FakeClock
}

func TestSourceSuite(t *testing.T) {
	suite.Run(t, new(SourceTestSuite))
}

func (s *SourceTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clockwork.NewFakeClock()
}

func (s *SourceTestSuite) newSource(cfg Config) *Source {
	return NewSourceWithClock(cfg, s.clock, log.NewNop())
}

func (s *SourceTestSuite) TestAcquireAndRelease() {
	src := s.newSource(Config{Audio: true, Video: true, FrameInterval: 20 * time.Millisecond})

	h, err := src.Acquire(s.ctx)
	s.Require().NoError(err)
	s.NotEmpty(h.ID())
	s.Equal(1, src.Active())

	st := h.(*Stream)
	s.Equal([]string{KindAudio, KindVideo}, st.Kinds())

	s.Require().NoError(s.clock.BlockUntilContext(s.ctx, 1))
	s.clock.Advance(20 * time.Millisecond)

	first := <-st.Frames()
	second := <-st.Frames()
	s.Equal(KindAudio, first.Kind)
	s.Equal(KindVideo, second.Kind)
	s.Less(first.Seq, second.Seq)

	s.Require().NoError(h.Release())
	s.Equal(0, src.Active())

	// frames channel is closed once capture stops
	for range st.Frames() {
	}

	err = h.Release()
	s.True(errors.Is(err, ErrReleased))
	s.Equal(0, src.Active())
}

func (s *SourceTestSuite) TestDenied() {
	src := s.newSource(Config{Audio: true, Deny: true})

	h, err := src.Acquire(s.ctx)
	s.Nil(h)
	s.True(errors.Is(err, ErrPermissionDenied))
	s.Equal(0, src.Active())
}

func (s *SourceTestSuite) TestNoTracks() {
	src := s.newSource(Config{})

	_, err := src.Acquire(s.ctx)
	s.True(errors.Is(err, ErrNoTracks))
}

func (s *SourceTestSuite) TestAcquireDelay() {
	src := s.newSource(Config{Audio: true, AcquireDelay: time.Second})

	type result struct {
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := src.Acquire(s.ctx)
		if err == nil {
			defer func() { _ = h.Release() }()
		}
		done <- result{err}
	}()

	s.Require().NoError(s.clock.BlockUntilContext(s.ctx, 1))
	select {
	case <-done:
		s.FailNow("acquired before the prompt was answered")
	default:
	}

	s.clock.Advance(time.Second)
	s.NoError((<-done).err)
}

func (s *SourceTestSuite) TestAcquireCancelled() {
	src := s.newSource(Config{Audio: true, AcquireDelay: time.Minute})
	ctx, cancel := context.WithCancel(s.ctx)

	done := make(chan error, 1)
	go func() {
		_, err := src.Acquire(ctx)
		done <- err
	}()

	s.Require().NoError(s.clock.BlockUntilContext(s.ctx, 1))
	cancel()
	s.ErrorIs(<-done, context.Canceled)
	s.Equal(0, src.Active())
}
