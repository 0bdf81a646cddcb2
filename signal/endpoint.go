package signal

import (
	"net/http"

	wsrpc "github.com/imtaco/meeting-coordinator/internal/jsonrpc/websocket"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

// Endpoint is the WebSocket entry point together with the room server
// behind it.
type Endpoint struct {
	*Server
	ws *wsrpc.Server[connContext]
}

// NewEndpoint wires the connection hook, the JSON-RPC WebSocket server and the
// room Server, and registers the RPC methods.
func NewEndpoint(
	cfg Config,
	roster *Roster,
	fanout *Fanout,
	hosts *HostResolver,
	jwtAuth jwt.Auth,
	allowedOrigins []string,
	logger *log.Logger,
) *Endpoint {
	hook := &wsHookImpl{
		jwtAuth:  jwtAuth,
		rpcRate:  cfg.Limit(),
		rpcBurst: cfg.RateBurst,
		logger:   logger.Module("WSHook"),
	}
	ws := wsrpc.NewServer[connContext](hook, allowedOrigins, logger.Module("WSRPC"))
	server := NewServer(ws, roster, fanout, hosts, logger.Module("Rooms"))
	hook.departer = server
	server.Register()

	return &Endpoint{
		Server: server,
		ws:     ws,
	}
}

func (e *Endpoint) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	e.ws.HandleWebSocket(w, r)
}
