package jsonrpc

import (
	"context"
	"encoding/json"
	"io"
)

// Handler holds a method table shared by every connection it creates.
type Handler[T any] interface {
	Def(method string, handler MethodHandler[T])
	NewConn(stream ObjectStream, v *T) Conn[T]
}

// Peer is a single connection with its own method table, used on the
// dialing side where requests flow both ways.
type Peer[T any] interface {
	Conn[T]
	Def(method string, handler MethodHandler[T])
}

type Client[T any] interface {
	Call(ctx context.Context, method string, params, result any) error
	Notify(ctx context.Context, method string, params any) error
	io.Closer
}

type Conn[T any] interface {
	Client[T]
	// Open starts the read loop; handlers run on it one at a time.
	Open(ctx context.Context) error
	Context() MethodContext[T]
}

// MethodHandler serves one method. A nil error with a nil result replies
// with a null result. Notifications get no reply either way.
type MethodHandler[T any] func(mctx MethodContext[T], params *json.RawMessage) (any, error)

// ObjectStream moves whole JSON values; framing is the transport's concern.
type ObjectStream interface {
	Open(ctx context.Context) error
	Read(ctx context.Context, v any) error
	Write(ctx context.Context, v any) error
	io.Closer
}
