package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

type dispatchFunc[T any] func(ctx context.Context, c *conn[T], req *Request)

type conn[T any] struct {
	stream   ObjectStream
	mctx     *methodContext[T]
	dispatch dispatchFunc[T]
	seq      atomic.Uint64
	writeMu  sync.Mutex

	mu      sync.Mutex
	closed  bool
	pending map[string]chan *message

	logger *log.Logger
}

func newConn[T any](stream ObjectStream, v *T, dispatch dispatchFunc[T], logger *log.Logger) *conn[T] {
	c := &conn[T]{
		stream:   stream,
		dispatch: dispatch,
		pending:  make(map[string]chan *message),
		logger:   logger,
	}
	c.mctx = newMethodContext[T](c, v)
	return c
}

func (c *conn[T]) Context() MethodContext[T] {
	return c.mctx
}

func (c *conn[T]) Open(ctx context.Context) error {
	if err := c.stream.Open(ctx); err != nil {
		return err
	}
	go c.readLoop(ctx)
	return nil
}

func (c *conn[T]) Close() error {
	return c.shutdown(nil)
}

func (c *conn[T]) Call(ctx context.Context, method string, params, result any) error {
	id := NumberID(c.seq.Add(1))
	req, err := newCall(id, method, params)
	if err != nil {
		return err
	}

	ch, err := c.track(id)
	if err != nil {
		return err
	}
	if err := c.write(ctx, req); err != nil {
		c.untrack(id)
		return err
	}

	select {
	case <-ctx.Done():
		c.untrack(id)
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result == nil || len(resp.Result) == 0 {
			return nil
		}
		return json.Unmarshal(resp.Result, result)
	}
}

func (c *conn[T]) Notify(ctx context.Context, method string, params any) error {
	msg, err := newNotification(method, params)
	if err != nil {
		return err
	}
	return c.write(ctx, msg)
}

// reply answers a request; replies to notifications are dropped.
func (c *conn[T]) reply(ctx context.Context, id *ID, result any, rpcErr *Error) error {
	if id == nil {
		return nil
	}
	if rpcErr != nil {
		return c.write(ctx, newErrorReply(*id, rpcErr))
	}
	msg, err := newResult(*id, result)
	if err != nil {
		return err
	}
	return c.write(ctx, msg)
}

func (c *conn[T]) write(ctx context.Context, msg *message) error {
	if c.isClosed() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.stream.Write(ctx, msg)
}

func (c *conn[T]) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *conn[T]) track(id ID) (chan *message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	ch := make(chan *message, 1)
	c.pending[id.String()] = ch
	return ch, nil
}

func (c *conn[T]) untrack(id ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, id.String())
}

func (c *conn[T]) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// resolve hands a response to its waiting call, if it is still waiting.
func (c *conn[T]) resolve(m *message) bool {
	c.mu.Lock()
	ch, ok := c.pending[m.ID.String()]
	delete(c.pending, m.ID.String())
	c.mu.Unlock()

	if ok {
		ch <- m
	}
	return ok
}

// shutdown fails every pending call and closes the stream once.
func (c *conn[T]) shutdown(cause error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.closed = true
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	if cause != nil && !errors.Is(cause, io.EOF) && !errors.Is(cause, io.ErrUnexpectedEOF) {
		c.logger.Debug("Connection closed", log.Error(cause))
	}
	return c.stream.Close()
}

func (c *conn[T]) readLoop(ctx context.Context) {
	for {
		var m message
		if err := c.stream.Read(ctx, &m); err != nil {
			_ = c.shutdown(err)
			return
		}

		switch m.kind() {
		case kindRequest, kindNotification:
			c.dispatch(ctx, c, &Request{ID: m.ID, Method: m.Method, Params: m.Params})
		case kindResponse:
			if !c.resolve(&m) {
				c.logger.Debug("Dropping response without a waiting call",
					log.String("id", m.ID.String()))
			}
		default:
			c.logger.Warn("Dropping malformed message")
		}
	}
}
