package signal

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
)

// stubEvents serves event records from a map and counts lookups.
type stubEvents struct {
	mu     sync.Mutex
	events map[string]*meetings.EventRecord
	gate   chan struct{}
	calls  atomic.Int32
}

func newStubEvents() *stubEvents {
	return &stubEvents{events: make(map[string]*meetings.EventRecord)}
}

func (e *stubEvents) put(eventID, hostID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events[eventID] = &meetings.EventRecord{ID: eventID, HostID: hostID}
}

func (e *stubEvents) GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error) {
	e.calls.Add(1)
	if e.gate != nil {
		select {
		case <-e.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[eventID]
	if !ok {
		return nil, errors.Newf(meetings.ErrEventNotFound, "event %s", eventID)
	}
	return ev, nil
}

type HostResolverSuite struct {
	suite.Suite
	events   *stubEvents
	resolver *HostResolver
}

func TestHostResolverSuite(t *testing.T) {
	suite.Run(t, new(HostResolverSuite))
}

func (s *HostResolverSuite) SetupTest() {
	s.events = newStubEvents()
	r, err := NewHostResolver(s.events, 16, log.NewNop())
	s.Require().NoError(err)
	s.resolver = r
}

func (s *HostResolverSuite) TestIsHost() {
	s.events.put("evt-1", "host-1")
	ctx := context.Background()

	ok, err := s.resolver.IsHost(ctx, "evt-1", "host-1")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.resolver.IsHost(ctx, "evt-1", "user-2")
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.resolver.IsHost(ctx, "evt-1", "")
	s.Require().NoError(err)
	s.False(ok)

	// resolved once, then cached
	s.Equal(int32(1), s.events.calls.Load())
}

func (s *HostResolverSuite) TestUnknownEventNotCached() {
	ctx := context.Background()

	_, err := s.resolver.IsHost(ctx, "evt-1", "host-1")
	s.ErrorIs(err, ErrHostUnknown)
	s.ErrorIs(err, meetings.ErrEventNotFound)

	s.events.put("evt-1", "host-1")
	ok, err := s.resolver.IsHost(ctx, "evt-1", "host-1")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(int32(2), s.events.calls.Load())
}

func (s *HostResolverSuite) TestEventWithoutHost() {
	s.events.put("evt-1", "")
	_, err := s.resolver.IsHost(context.Background(), "evt-1", "host-1")
	s.ErrorIs(err, ErrHostUnknown)
}

func (s *HostResolverSuite) TestConcurrentMissesShareLookup() {
	s.events.put("evt-1", "host-1")
	s.events.gate = make(chan struct{})

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.resolver.IsHost(context.Background(), "evt-1", "host-1")
			s.NoError(err)
			results <- ok
		}()
	}

	s.Eventually(func() bool { return s.events.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// give the other callers time to pile onto the in-flight lookup
	time.Sleep(50 * time.Millisecond)
	close(s.events.gate)
	wg.Wait()
	close(results)

	for ok := range results {
		s.True(ok)
	}
	s.Equal(int32(1), s.events.calls.Load())
}

func (s *HostResolverSuite) TestCallerCancelDoesNotFailLookup() {
	s.events.put("evt-1", "host-1")
	s.events.gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.resolver.IsHost(ctx, "evt-1", "host-1")
		done <- err
	}()

	s.Eventually(func() bool { return s.events.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	close(s.events.gate)
	s.NoError(<-done)
}
