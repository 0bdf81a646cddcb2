package signal

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/imtaco/meeting-coordinator/internal/errors"
	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/internal/jwt"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

// Departer is told when a connection goes away without leaving first.
type Departer interface {
	Depart(mctx jsonrpc.MethodContext[connContext])
}

type wsHookImpl struct {
	departer Departer
	jwtAuth  jwt.Auth
	rpcRate  rate.Limit
	rpcBurst int
	logger   *log.Logger
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func (h *wsHookImpl) OnVerify(r *http.Request) (*connContext, bool, error) {
	authAttempts.Add(r.Context(), 1)

	token := bearerToken(r)
	if token == "" {
		authFailures.Add(r.Context(), 1)
		return nil, false, nil
	}

	payload, err := h.jwtAuth.Verify(token)
	if err != nil {
		authFailures.Add(r.Context(), 1)
		if errors.Is(err, jwt.ErrInvalidToken) || errors.Is(err, jwt.ErrNoToken) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return &connContext{
		userID:  payload.UserID,
		eventID: payload.EventID,
		name:    payload.Name,
		reqCtx:  r.Context(),
		limiter: rate.NewLimiter(h.rpcRate, h.rpcBurst),
	}, true, nil
}

func (h *wsHookImpl) OnConnect(mctx jsonrpc.MethodContext[connContext]) {
	cc := mctx.Get()
	cc.connID = uuid.New().String()

	connectionsActive.Add(cc.reqCtx, 1)
	h.logger.Info("Client connected",
		log.ConnID(cc.connID),
		log.UserID(cc.userID),
		log.EventID(cc.eventID))
}

func (h *wsHookImpl) OnDisconnect(mctx jsonrpc.MethodContext[connContext], closeCode int) {
	cc := mctx.Get()
	h.departer.Depart(mctx)

	connectionsActive.Add(cc.reqCtx, -1)
	h.logger.Info("Client disconnected",
		log.ConnID(cc.connID),
		log.Int("closeCode", closeCode))
}
