package websocket

import (
	"net/http"

	"github.com/coder/websocket"

	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

// Server serves one jsonrpc.Handler over websockets. Methods are defined on
// the embedded Handler before the server is mounted.
type Server[T any] struct {
	jsonrpc.Handler[T]
	hooks          ConnectionHooks[T]
	allowedOrigins []string
	logger         *log.Logger
}

func NewServer[T any](hooks ConnectionHooks[T], allowedOrigins []string, logger *log.Logger) *Server[T] {
	if hooks == nil || logger == nil {
		panic("websocket: hooks and logger are required")
	}
	return &Server[T]{
		Handler:        jsonrpc.NewHandler[T](logger),
		hooks:          hooks,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// HandleWebSocket verifies, upgrades and then serves the connection until
// it closes.
func (s *Server[T]) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	state, ok, err := s.hooks.OnVerify(r)
	switch {
	case err != nil:
		s.logger.Warn("Failed to verify connection",
			log.String("remote", r.RemoteAddr),
			log.Error(err))
		http.Error(w, "fail to verify", http.StatusInternalServerError)
		return
	case !ok:
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins,
	})
	if err != nil {
		s.logger.Warn("Failed to accept websocket",
			log.String("remote", r.RemoteAddr),
			log.Error(err))
		return
	}

	st := newStream(wsConn, s.logger)
	rpcConn := s.NewConn(st, state)
	s.hooks.OnConnect(rpcConn.Context())

	if err := rpcConn.Open(r.Context()); err != nil {
		s.logger.Error("Failed to open connection", log.Error(err))
		_ = wsConn.CloseNow()
		s.hooks.OnDisconnect(rpcConn.Context(), int(websocket.StatusInternalError))
		return
	}

	<-st.Done()
	s.hooks.OnDisconnect(rpcConn.Context(), st.closeStatus())
}
