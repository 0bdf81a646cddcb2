package signal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	wsrpc "github.com/imtaco/meeting-coordinator/internal/jsonrpc/websocket"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/meetings"
	"github.com/imtaco/meeting-coordinator/signal"
	"github.com/imtaco/meeting-coordinator/signal/client"
	"github.com/imtaco/meeting-coordinator/signal/transport"
)

const (
	testEventID = "evt-1"
	hostID      = "host-1"
	waitFor     = 2 * time.Second
	tick        = 5 * time.Millisecond
)

type fakeEvents struct {
	mu     sync.Mutex
	events map[string]*meetings.EventRecord
}

func (e *fakeEvents) GetEvent(_ context.Context, eventID string) (*meetings.EventRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ev, ok := e.events[eventID]
	if !ok {
		return nil, errors.Newf(meetings.ErrEventNotFound, "event %s", eventID)
	}
	return ev, nil
}

// recorder collects listener callbacks as strings.
type recorder struct {
	ch chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 64)}
}

func (r *recorder) OnConnected()                     { r.ch <- "connected" }
func (r *recorder) OnDisconnected()                  { r.ch <- "disconnected" }
func (r *recorder) OnParticipantJoined(connID string) { r.ch <- "joined:" + connID }
func (r *recorder) OnParticipantLeft(connID string)   { r.ch <- "left:" + connID }
func (r *recorder) OnRoomEnded()                     { r.ch <- "ended" }

// instance is one signal service process.
type instance struct {
	endpoint *signal.Endpoint
	server   *httptest.Server
	wsURL    string
}

type EndpointSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	miniRedis *miniredis.Miniredis
	client    *redis.Client
	events    *fakeEvents
	auth      jwt.Auth
	cfg       signal.Config
}

func TestEndpointSuite(t *testing.T) {
	suite.Run(t, new(EndpointSuite))
}

func (s *EndpointSuite) SetupTest() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	mr, err := miniredis.Run()
	s.Require().NoError(err)
	s.miniRedis = mr
	s.client = redis.NewClient(&redis.Options{Addr: mr.Addr()})

	s.events = &fakeEvents{events: map[string]*meetings.EventRecord{
		testEventID: {ID: testEventID, HostID: hostID, Status: constants.EventStatusLive},
	}}
	s.auth = jwt.NewAuth("test-secret")
	s.cfg = signal.Config{
		RedisPrefix:   "test",
		FanoutChannel: "test:fanout",
		RateLimit:     0,
		RateBurst:     1,
		HostCacheSize: 16,
		EndedTTL:      time.Hour,
	}
}

func (s *EndpointSuite) TearDownTest() {
	s.cancel()
	_ = s.client.Close()
	s.miniRedis.Close()
}

func (s *EndpointSuite) newInstance(serverID string, cfg signal.Config) *instance {
	logger := log.NewNop()

	roster := signal.NewRoster(s.client, cfg.RedisPrefix, cfg.EndedTTL, logger)
	fanout := signal.NewFanout(s.client, cfg.FanoutChannel, serverID, logger)
	hosts, err := signal.NewHostResolver(s.events, cfg.HostCacheSize, logger)
	s.Require().NoError(err)

	endpoint := signal.NewEndpoint(cfg, roster, fanout, hosts, s.auth, []string{"*"}, logger)
	go func() { _ = fanout.Run(s.ctx) }()
	select {
	case <-fanout.Ready():
	case <-time.After(waitFor):
		s.FailNow("fanout never subscribed")
	}

	router := transport.NewRouter(endpoint.HandleWebSocket, roster, s.auth, []string{"*"}, logger)
	srv := httptest.NewServer(router.Handler())
	s.T().Cleanup(srv.Close)

	return &instance{
		endpoint: endpoint,
		server:   srv,
		wsURL:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (s *EndpointSuite) token(userID, eventID, name string) string {
	tok, err := s.auth.Sign(userID, eventID, name)
	s.Require().NoError(err)
	return tok
}

func (s *EndpointSuite) newClient(inst *instance, userID, name string) (*client.Client, *recorder) {
	tok := s.token(userID, testEventID, name)
	c := client.New(inst.wsURL, func(string) (string, error) { return tok, nil },
		client.Options{Audio: true, Video: true}, log.NewNop())
	rec := newRecorder()
	c.SetListener(rec)
	s.T().Cleanup(func() { _ = c.Leave(context.Background()) })
	return c, rec
}

func (s *EndpointSuite) join(c *client.Client, rec *recorder, name string) string {
	connID, err := c.Join(s.ctx, testEventID, name, false)
	s.Require().NoError(err)
	s.Require().NotEmpty(connID)
	s.expect(rec, "connected")
	return connID
}

// expect waits for want, skipping unrelated callbacks.
func (s *EndpointSuite) expect(rec *recorder, want string) {
	timeout := time.After(waitFor)
	for {
		select {
		case got := <-rec.ch:
			if got == want {
				return
			}
		case <-timeout:
			s.FailNow("callback never arrived", want)
		}
	}
}

func rpcCode(err error) int64 {
	if target, ok := errors.As[*jsonrpc.Error](err); ok {
		return (*target).Code
	}
	return 0
}

func (s *EndpointSuite) TestJoinReturnsRosterAndNotifies() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	attendee, attRec := s.newClient(inst, "user-2", "Ari")

	hostConn := s.join(host, hostRec, "Hana")
	s.Empty(host.Roster())

	attConn := s.join(attendee, attRec, "Ari")
	roster := attendee.Roster()
	s.Require().Contains(roster, hostConn)
	s.Equal("Hana", roster[hostConn].Name)
	s.True(roster[hostConn].IsHost)
	s.True(roster[hostConn].AudioEnabled)
	s.NotContains(roster, attConn)

	s.expect(hostRec, "joined:"+attConn)
	s.Eventually(func() bool {
		p, ok := host.Roster()[attConn]
		return ok && p.Name == "Ari" && !p.IsHost
	}, waitFor, tick)
	s.True(attendee.Connected())
	s.Equal(attConn, attendee.ConnectionID())
}

func (s *EndpointSuite) TestLeaveNotifiesOthers() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	attendee, attRec := s.newClient(inst, "user-2", "Ari")

	s.join(host, hostRec, "Hana")
	attConn := s.join(attendee, attRec, "Ari")
	s.expect(hostRec, "joined:"+attConn)

	s.Require().NoError(attendee.Leave(s.ctx))
	s.False(attendee.Connected())
	s.Empty(attendee.Roster())

	s.expect(hostRec, "left:"+attConn)
	s.Empty(host.Roster())

	// leaving twice is harmless
	s.NoError(attendee.Leave(s.ctx))
}

func (s *EndpointSuite) TestDroppedConnectionNotifiesOthers() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	s.join(host, hostRec, "Hana")

	tok := s.token("user-2", testEventID, "Ari")
	stream, err := wsrpc.Dial(s.ctx, inst.wsURL+"?token="+tok, nil, log.NewNop())
	s.Require().NoError(err)
	peer := jsonrpc.NewPeer[struct{}](stream, nil, log.NewNop())
	s.Require().NoError(peer.Open(s.ctx))

	var res signal.JoinResult
	s.Require().NoError(peer.Call(s.ctx, constants.MethodJoin, &signal.JoinParams{
		EventID:     testEventID,
		DisplayName: "Ari",
	}, &res))
	s.expect(hostRec, "joined:"+res.ConnectionID)

	_ = peer.Close()
	s.expect(hostRec, "left:"+res.ConnectionID)
}

func (s *EndpointSuite) TestJoinRejections() {
	inst := s.newInstance("a", s.cfg)

	s.Run("bad token", func() {
		c := client.New(inst.wsURL, func(string) (string, error) { return "garbage", nil },
			client.Options{}, log.NewNop())
		_, err := c.Join(s.ctx, testEventID, "Ari", false)
		s.ErrorIs(err, client.ErrJoin)
		s.False(c.Connected())
	})

	s.Run("token for another event", func() {
		tok := s.token("user-2", "evt-2", "Ari")
		c := client.New(inst.wsURL, func(string) (string, error) { return tok, nil },
			client.Options{}, log.NewNop())
		_, err := c.Join(s.ctx, testEventID, "Ari", false)
		s.ErrorIs(err, client.ErrJoin)
		s.Equal(int64(jsonrpc.CodeInvalidRequest), rpcCode(err))
	})

	s.Run("empty display name", func() {
		c, _ := s.newClient(inst, "user-3", "")
		_, err := c.Join(s.ctx, testEventID, "", false)
		s.Equal(int64(jsonrpc.CodeInvalidParams), rpcCode(err))
	})
}

func (s *EndpointSuite) TestCallsRequireJoin() {
	inst := s.newInstance("a", s.cfg)
	c, _ := s.newClient(inst, "user-2", "Ari")

	s.ErrorIs(c.StartCall(s.ctx), client.ErrNotConnected)
	s.ErrorIs(c.EndRoom(s.ctx), client.ErrNotConnected)
}

func (s *EndpointSuite) TestStartCall() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	s.join(host, hostRec, "Hana")

	s.NoError(host.StartCall(s.ctx))
}

func (s *EndpointSuite) TestHostEndsRoom() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	attendee, attRec := s.newClient(inst, "user-2", "Ari")

	s.join(host, hostRec, "Hana")
	s.join(attendee, attRec, "Ari")

	s.Require().NoError(host.EndRoom(s.ctx))
	s.expect(attRec, "ended")

	// ending again is a no-op
	s.NoError(host.EndRoom(s.ctx))

	// nobody gets back in
	late, _ := s.newClient(inst, "user-3", "Lee")
	_, err := late.Join(s.ctx, testEventID, "Lee", false)
	s.ErrorIs(err, client.ErrJoin)
	s.Equal(int64(signal.CodeRoomEnded), rpcCode(err))

	// a departure after the end still succeeds
	s.NoError(attendee.Leave(s.ctx))
}

func (s *EndpointSuite) TestNonHostCannotEndRoom() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	attendee, attRec := s.newClient(inst, "user-2", "Ari")

	s.join(host, hostRec, "Hana")
	attConn := s.join(attendee, attRec, "Ari")
	s.expect(hostRec, "joined:"+attConn)

	err := attendee.EndRoom(s.ctx)
	s.ErrorIs(err, client.ErrCall)
	s.Equal(int64(signal.CodeForbidden), rpcCode(err))

	ended, err := s.client.Exists(s.ctx, "test:ended:"+testEventID).Result()
	s.Require().NoError(err)
	s.Zero(ended)
	s.True(host.Connected())
}

func (s *EndpointSuite) TestThrottled() {
	cfg := s.cfg
	cfg.RateLimit = 0.001
	cfg.RateBurst = 2
	inst := s.newInstance("a", cfg)

	host, hostRec := s.newClient(inst, hostID, "Hana")
	s.join(host, hostRec, "Hana")

	s.NoError(host.StartCall(s.ctx))
	err := host.StartCall(s.ctx)
	s.Equal(int64(signal.CodeThrottled), rpcCode(err))
}

func (s *EndpointSuite) TestAcrossInstances() {
	instA := s.newInstance("a", s.cfg)
	instB := s.newInstance("b", s.cfg)

	host, hostRec := s.newClient(instA, hostID, "Hana")
	attendee, attRec := s.newClient(instB, "user-2", "Ari")

	hostConn := s.join(host, hostRec, "Hana")
	attConn := s.join(attendee, attRec, "Ari")

	s.Contains(attendee.Roster(), hostConn)
	s.expect(hostRec, "joined:"+attConn)

	s.Require().NoError(host.EndRoom(s.ctx))
	s.expect(attRec, "ended")
}

func (s *EndpointSuite) TestParticipantsEndpoint() {
	inst := s.newInstance("a", s.cfg)
	host, hostRec := s.newClient(inst, hostID, "Hana")
	hostConn := s.join(host, hostRec, "Hana")

	get := func(path, token string) (*http.Response, map[string]any) {
		req, err := http.NewRequestWithContext(s.ctx, http.MethodGet, inst.server.URL+path, nil)
		s.Require().NoError(err)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		s.Require().NoError(err)
		defer resp.Body.Close()
		var body map[string]any
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
		return resp, body
	}

	tok := s.token("user-2", testEventID, "Ari")
	resp, body := get("/api/rooms/"+testEventID+"/participants", tok)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(false, body["ended"])
	participants, ok := body["participants"].(map[string]any)
	s.Require().True(ok)
	s.Contains(participants, hostConn)

	resp, _ = get("/api/rooms/"+testEventID+"/participants", "")
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	resp, _ = get("/api/rooms/evt-2/participants", tok)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	resp, _ = get("/api/rooms/!!/participants", tok)
	s.Equal(http.StatusBadRequest, resp.StatusCode)

	resp, body = get("/health", "")
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])
}
