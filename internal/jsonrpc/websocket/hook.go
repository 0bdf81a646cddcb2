package websocket

import (
	"net/http"

	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
)

// ConnectionHooks observe a connection's life on the server side.
type ConnectionHooks[T any] interface {
	// OnVerify runs before the upgrade. It returns the initial connection
	// state, or false to answer 401. An error answers 500.
	OnVerify(r *http.Request) (*T, bool, error)
	// OnConnect runs before the first message is read.
	OnConnect(mctx jsonrpc.MethodContext[T])
	// OnDisconnect runs once the connection is gone, with its close code.
	OnDisconnect(mctx jsonrpc.MethodContext[T], closeCode int)
}
