package websocket

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

const ErrDial errors.Code = "dial error"

// ClientStream is the dialing side of a connection.
type ClientStream interface {
	jsonrpc.ObjectStream
	// Done is closed when the connection drops. Valid after Open.
	Done() <-chan struct{}
}

// Dial connects to url. The stream is opened through the jsonrpc peer that
// wraps it.
func Dial(ctx context.Context, url string, header http.Header, logger *log.Logger) (ClientStream, error) {
	//nolint:bodyclose
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return nil, errors.Wrap(ErrDial, err, "fail to dial websocket")
	}
	return newStream(conn, logger), nil
}
