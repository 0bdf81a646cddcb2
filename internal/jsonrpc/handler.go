package jsonrpc

import (
	"context"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

type handler[T any] struct {
	methods map[string]MethodHandler[T]
	logger  *log.Logger
}

// NewHandler returns an empty method table. Def is not safe to call once
// connections are being served.
func NewHandler[T any](logger *log.Logger) Handler[T] {
	if logger == nil {
		panic("jsonrpc: nil logger")
	}
	return &handler[T]{
		methods: make(map[string]MethodHandler[T]),
		logger:  logger,
	}
}

type peer[T any] struct {
	Conn[T]
	*handler[T]
}

// NewPeer pairs one connection with its own method table. v is the initial
// connection state; nil means a zero T.
func NewPeer[T any](stream ObjectStream, v *T, logger *log.Logger) Peer[T] {
	h := NewHandler[T](logger).(*handler[T])
	if v == nil {
		v = new(T)
	}
	return &peer[T]{
		Conn:    h.NewConn(stream, v),
		handler: h,
	}
}

func (h *handler[T]) Def(method string, fn MethodHandler[T]) {
	if _, dup := h.methods[method]; dup {
		panic("jsonrpc: method already defined: " + method)
	}
	h.methods[method] = fn
}

func (h *handler[T]) NewConn(stream ObjectStream, v *T) Conn[T] {
	return newConn(stream, v, h.dispatch, h.logger)
}

func (h *handler[T]) dispatch(ctx context.Context, c *conn[T], req *Request) {
	fn, ok := h.methods[req.Method]
	if !ok {
		h.logger.Warn("Method not found", log.String("method", req.Method))
		h.send(ctx, c, req, nil, ErrMethodNotFound(req.Method))
		return
	}

	result, err := fn(c.mctx, req.Params)
	if err != nil {
		h.send(ctx, c, req, nil, h.toRPCError(req.Method, err))
		return
	}
	h.send(ctx, c, req, result, nil)
}

func (h *handler[T]) send(ctx context.Context, c *conn[T], req *Request, result any, rpcErr *Error) {
	if err := c.reply(ctx, req.ID, result, rpcErr); err != nil {
		h.logger.Warn("Failed to reply",
			log.String("method", req.Method),
			log.Error(err))
	}
}

// toRPCError passes *Error through and hides anything else from the peer.
func (h *handler[T]) toRPCError(method string, err error) *Error {
	if rpcErr, ok := errors.As[*Error](err); ok {
		h.logger.Debug("Handler rejected request",
			log.String("method", method),
			log.Int64("code", (*rpcErr).Code),
			log.String("message", (*rpcErr).Message))
		return *rpcErr
	}
	h.logger.Error("Handler failed",
		log.String("method", method),
		log.Error(err))
	return ErrInternal("internal error")
}
