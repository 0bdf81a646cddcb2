package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	wsrpc "github.com/imtaco/meeting-coordinator/internal/jsonrpc/websocket"
	"github.com/imtaco/meeting-coordinator/internal/log"
	"github.com/imtaco/meeting-coordinator/session"
	"github.com/imtaco/meeting-coordinator/signal"
)

const (
	ErrNotConnected errors.Code = "signal not connected"
	ErrJoin         errors.Code = "signal join failed"
	ErrCall         errors.Code = "signal call failed"

	defaultCallTimeout = 10 * time.Second
)

// TokenSource returns the participant token presented for eventID.
type TokenSource func(eventID string) (string, error)

type Options struct {
	Audio bool
	Video bool
	// bounds every request on the connection, join included
	CallTimeout time.Duration
}

// Client is one participant's connection to the signal service.
type Client struct {
	url    string
	tokens TokenSource
	opts   Options

	mu       sync.Mutex
	peer     jsonrpc.Peer[struct{}]
	rpc      jsonrpc.Client[struct{}]
	cancel   context.CancelFunc
	connID   string
	roster   map[string]session.Participant
	listener session.TransportListener

	connected atomic.Bool
	leaving   atomic.Bool
	logger    *log.Logger
}

var _ session.Transport = (*Client)(nil)

func New(wsURL string, tokens TokenSource, opts Options, logger *log.Logger) *Client {
	if logger == nil {
		panic("logger is required")
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	return &Client{
		url:    wsURL,
		tokens: tokens,
		opts:   opts,
		roster: make(map[string]session.Participant),
		logger: logger,
	}
}

func (c *Client) SetListener(l session.TransportListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listener = l
}

func (c *Client) currentListener() session.TransportListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

// Join dials the signal service and joins the room. isHost is informational;
// the service derives host authority from the token on its own.
func (c *Client) Join(ctx context.Context, eventID, displayName string, isHost bool) (string, error) {
	token, err := c.tokens(eventID)
	if err != nil {
		return "", errors.Wrap(ErrJoin, err, "fail to get token")
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return "", errors.Wrap(ErrJoin, err, "bad signal url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	stream, err := wsrpc.Dial(ctx, u.String(), header, c.logger.Module("Stream"))
	if err != nil {
		return "", errors.Wrap(ErrJoin, err, "fail to connect")
	}

	peer := jsonrpc.NewPeer[struct{}](stream, nil, c.logger.Module("RPC"))
	c.defNotifications(peer)

	// the connection outlives the join request
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := peer.Open(runCtx); err != nil {
		cancel()
		return "", errors.Wrap(ErrJoin, err, "fail to open connection")
	}

	rpc := jsonrpc.TimeoutClient[struct{}](peer, c.opts.CallTimeout)
	c.mu.Lock()
	c.peer = peer
	c.rpc = rpc
	c.cancel = cancel
	c.mu.Unlock()
	c.leaving.Store(false)

	go c.watch(stream.Done())

	var res signal.JoinResult
	err = rpc.Call(ctx, constants.MethodJoin, &signal.JoinParams{
		EventID:     eventID,
		DisplayName: displayName,
		Audio:       c.opts.Audio,
		Video:       c.opts.Video,
	}, &res)
	if err != nil {
		c.teardown()
		return "", errors.Wrap(ErrJoin, err, "join rejected")
	}

	// merged: a participantJoined may have raced ahead of the join reply
	c.mu.Lock()
	c.connID = res.ConnectionID
	for connID, p := range res.Participants {
		c.roster[connID] = toSession(p)
	}
	others := len(c.roster)
	listener := c.listener
	c.mu.Unlock()
	c.connected.Store(true)

	c.logger.Info("Joined room",
		log.EventID(eventID),
		log.ConnID(res.ConnectionID),
		log.Bool("isHost", isHost),
		log.Int("others", others))

	if listener != nil {
		listener.OnConnected()
	}
	return res.ConnectionID, nil
}

func (c *Client) defNotifications(peer jsonrpc.Peer[struct{}]) {
	peer.Def(constants.NotifyParticipantJoined, func(_ jsonrpc.MethodContext[struct{}], params *json.RawMessage) (any, error) {
		var n signal.ParticipantJoined
		if err := jsonrpc.ShouldBindParams(params, &n); err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.roster[n.ConnectionID] = toSession(n.Participant)
		c.mu.Unlock()
		if l := c.currentListener(); l != nil {
			l.OnParticipantJoined(n.ConnectionID)
		}
		//nolint:nilnil
		return nil, nil
	})

	peer.Def(constants.NotifyParticipantLeft, func(_ jsonrpc.MethodContext[struct{}], params *json.RawMessage) (any, error) {
		var n signal.ParticipantLeft
		if err := jsonrpc.ShouldBindParams(params, &n); err != nil {
			return nil, err
		}
		c.mu.Lock()
		delete(c.roster, n.ConnectionID)
		c.mu.Unlock()
		if l := c.currentListener(); l != nil {
			l.OnParticipantLeft(n.ConnectionID)
		}
		//nolint:nilnil
		return nil, nil
	})

	peer.Def(constants.NotifyCallStarted, func(_ jsonrpc.MethodContext[struct{}], params *json.RawMessage) (any, error) {
		var n signal.CallStarted
		if err := jsonrpc.ShouldBindParams(params, &n); err != nil {
			return nil, err
		}
		c.logger.Info("Peer started the call", log.ConnID(n.ConnectionID))
		//nolint:nilnil
		return nil, nil
	})

	peer.Def(constants.NotifyRoomEnded, func(_ jsonrpc.MethodContext[struct{}], _ *json.RawMessage) (any, error) {
		c.logger.Info("Room ended by host")
		if l := c.currentListener(); l != nil {
			l.OnRoomEnded()
		}
		//nolint:nilnil
		return nil, nil
	})
}

// watch reports a connection drop that Leave did not cause.
func (c *Client) watch(done <-chan struct{}) {
	<-done
	wasConnected := c.connected.Swap(false)
	if c.leaving.Load() || !wasConnected {
		return
	}
	c.logger.Warn("Signal connection lost")
	if l := c.currentListener(); l != nil {
		l.OnDisconnected()
	}
}

// Leave tells the room and closes the connection. Errors on the way out are
// logged, not returned: the connection is gone either way.
func (c *Client) Leave(ctx context.Context) error {
	c.mu.Lock()
	rpc := c.rpc
	c.mu.Unlock()
	if rpc == nil {
		return nil
	}

	c.leaving.Store(true)
	if c.connected.Load() {
		var res signal.LeaveResult
		if err := rpc.Call(ctx, constants.MethodLeave, nil, &res); err != nil {
			c.logger.Warn("Leave request failed", log.Error(err))
		}
	}
	c.teardown()
	return nil
}

func (c *Client) teardown() {
	c.leaving.Store(true)
	c.connected.Store(false)

	c.mu.Lock()
	peer, cancel := c.peer, c.cancel
	c.peer, c.rpc, c.cancel = nil, nil, nil
	c.roster = make(map[string]session.Participant)
	c.mu.Unlock()

	if peer != nil {
		_ = peer.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *Client) StartCall(ctx context.Context) error {
	var res signal.StartCallResult
	return c.call(ctx, constants.MethodStartCall, &res)
}

func (c *Client) EndRoom(ctx context.Context) error {
	var res signal.EndRoomResult
	return c.call(ctx, constants.MethodEndRoom, &res)
}

func (c *Client) call(ctx context.Context, method string, result any) error {
	c.mu.Lock()
	rpc := c.rpc
	c.mu.Unlock()
	if rpc == nil || !c.connected.Load() {
		return errors.Newf(ErrNotConnected, "cannot %s", method)
	}
	if err := rpc.Call(ctx, method, nil, result); err != nil {
		return errors.Wrapf(ErrCall, err, "%s failed", method)
	}
	return nil
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// ConnectionID is the id the service assigned on join, empty before.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connID
}

// Roster returns a copy of the other participants in the room.
func (c *Client) Roster() map[string]session.Participant {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]session.Participant, len(c.roster))
	for k, v := range c.roster {
		out[k] = v
	}
	return out
}

func toSession(p signal.Participant) session.Participant {
	return session.Participant{
		Name:         p.Name,
		AudioEnabled: p.AudioEnabled,
		VideoEnabled: p.VideoEnabled,
		IsHost:       p.IsHost,
	}
}
