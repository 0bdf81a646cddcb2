package websocket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

const ErrBufferFull errors.Code = "send buffer full"

const (
	pingInterval = 10 * time.Second
	pingTimeout  = 3 * time.Second
	writeTimeout = 3 * time.Second
	sendQueue    = 16
)

// stream is a jsonrpc.ObjectStream over one websocket. Writes are queued to
// a single writer goroutine that also keeps the connection alive with pings;
// a peer too slow to drain the queue is disconnected.
type stream struct {
	conn   *websocket.Conn
	queue  chan any
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	status atomic.Int32
	logger *log.Logger
}

func newStream(conn *websocket.Conn, logger *log.Logger) *stream {
	s := &stream{
		conn:   conn,
		queue:  make(chan any, sendQueue),
		logger: logger,
	}
	s.status.Store(int32(websocket.StatusAbnormalClosure))
	return s
}

func (s *stream) Open(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	go s.writeLoop()
	return nil
}

func (s *stream) Read(ctx context.Context, v any) error {
	if err := wsjson.Read(ctx, s.conn, v); err != nil {
		s.shutdown(err)
		return err
	}
	return nil
}

// Write only fails when the stream is closed or its queue is full.
func (s *stream) Write(ctx context.Context, v any) error {
	if ctx.Err() != nil || s.ctx.Err() != nil {
		return net.ErrClosed
	}
	select {
	case s.queue <- v:
		return nil
	default:
		s.shutdown(ErrBufferFull)
		return ErrBufferFull
	}
}

func (s *stream) Close() error {
	s.shutdown(nil)
	return nil
}

// Done is closed once the connection is gone.
func (s *stream) Done() <-chan struct{} {
	return s.ctx.Done()
}

// closeStatus is the close code seen when the connection ended.
func (s *stream) closeStatus() int {
	return int(s.status.Load())
}

func (s *stream) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown(s.ctx.Err())
			return
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(s.ctx, pingTimeout)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.shutdown(err)
				return
			}
		case v := <-s.queue:
			wctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := wsjson.Write(wctx, s.conn, v)
			cancel()
			if err != nil {
				s.shutdown(err)
				return
			}
		}
	}
}

func (s *stream) shutdown(cause error) {
	s.once.Do(func() {
		defer func() {
			if s.cancel != nil {
				s.cancel()
			}
		}()

		if code := websocket.CloseStatus(cause); code != -1 {
			s.status.Store(int32(code))
			s.logger.Debug("Peer closed websocket", log.Int("code", int(code)))
			_ = s.conn.CloseNow()
			return
		}

		switch {
		case cause == nil:
			s.status.Store(int32(websocket.StatusNormalClosure))
			_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
		case errors.Is(cause, ErrBufferFull):
			s.logger.Warn("Closing slow websocket peer")
			s.status.Store(int32(websocket.StatusPolicyViolation))
			_ = s.conn.Close(websocket.StatusPolicyViolation, "too slow")
		case errors.Is(cause, net.ErrClosed), errors.Is(cause, context.Canceled):
			_ = s.conn.CloseNow()
		default:
			s.logger.Debug("Websocket failed", log.Error(cause))
			_ = s.conn.CloseNow()
		}
	})
}
