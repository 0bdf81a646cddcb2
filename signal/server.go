package signal

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

// bounds each room operation; roster writes retry until their ctx is done
const opTimeout = 3 * time.Second

// Server implements the room transport: rosters, start-call and the
// host-only end-room broadcast. Membership is tracked locally per instance and
// mirrored to Redis; notifications reach other instances through the Fanout.
type Server struct {
	jsonrpc.Handler[connContext]
	rooms  *localRooms
	roster *Roster
	fanout *Fanout
	hosts  *HostResolver
	logger *log.Logger
}

func NewServer(
	handler jsonrpc.Handler[connContext],
	roster *Roster,
	fanout *Fanout,
	hosts *HostResolver,
	logger *log.Logger,
) *Server {
	s := &Server{
		Handler: handler,
		rooms:   newLocalRooms(logger.Module("Rooms")),
		roster:  roster,
		fanout:  fanout,
		hosts:   hosts,
		logger:  logger,
	}
	fanout.setDeliver(s.deliverRemote)
	return s
}

// Register installs the RPC methods. Call it once, before serving.
func (s *Server) Register() {
	s.def(constants.MethodJoin, s.handleJoin)
	s.def(constants.MethodLeave, s.handleLeave)
	s.def(constants.MethodStartCall, s.handleStartCall)
	s.def(constants.MethodEndRoom, s.handleEndRoom)
}

// def wraps a handler with per-connection throttling and request metrics.
func (s *Server) def(method string, h jsonrpc.MethodHandler[connContext]) {
	s.Def(method, func(mctx rpcCtx, params *json.RawMessage) (any, error) {
		cc := mctx.Get()
		attrs := metric.WithAttributes(attribute.String("method", method))
		rpcRequests.Add(cc.reqCtx, 1, attrs)

		if !cc.limiter.Allow() {
			rpcThrottled.Add(cc.reqCtx, 1, attrs)
			return nil, jsonrpc.ErrCustom(CodeThrottled, "too many requests")
		}

		start := time.Now()
		res, err := h(mctx, params)
		rpcDuration.Record(cc.reqCtx, time.Since(start).Seconds(), attrs)
		if err != nil {
			rpcFailures.Add(cc.reqCtx, 1, attrs)
		}
		return res, err
	})
}

func (s *Server) handleJoin(mctx rpcCtx, params *json.RawMessage) (any, error) {
	cc := mctx.Get()
	if _, joined := s.rooms.roomOf(cc.connID); joined {
		return nil, jsonrpc.ErrInvalidRequest("already joined")
	}

	var req JoinParams
	if err := jsonrpc.ShouldBindParams(params, &req); err != nil {
		return nil, err
	}
	if req.EventID != cc.eventID {
		return nil, jsonrpc.ErrInvalidRequest("token is not valid for this event")
	}

	ctx, cancel := context.WithTimeout(cc.reqCtx, opTimeout)
	defer cancel()

	ended, err := s.roster.Ended(ctx, cc.eventID)
	if err != nil {
		s.logger.Error("Failed to check room state", log.Error(err))
		return nil, jsonrpc.ErrInternal("fail to check room")
	}
	if ended {
		return nil, jsonrpc.ErrCustom(CodeRoomEnded, "room has ended")
	}

	isHost, err := s.hosts.IsHost(ctx, cc.eventID, cc.userID)
	if err != nil {
		// the roster flag is informational; end-room re-checks on its own
		s.logger.Warn("Failed to resolve host on join",
			log.EventID(cc.eventID),
			log.Error(err))
	}

	self := Participant{
		Name:         req.DisplayName,
		AudioEnabled: req.Audio,
		VideoEnabled: req.Video,
		IsHost:       isHost,
	}
	if err := s.roster.Put(ctx, cc.eventID, cc.connID, self); err != nil {
		s.logger.Error("Failed to add participant", log.Error(err))
		return nil, jsonrpc.ErrInternal("fail to join room")
	}

	participants, err := s.roster.List(ctx, cc.eventID)
	if err != nil {
		s.logger.Error("Failed to list participants", log.Error(err))
		_ = s.roster.Remove(ctx, cc.eventID, cc.connID)
		return nil, jsonrpc.ErrInternal("fail to join room")
	}
	delete(participants, cc.connID)

	s.rooms.add(cc.eventID, cc.connID, &member{conn: mctx.Peer(), info: self})
	participantsJoined.Add(ctx, 1)

	s.broadcast(ctx, cc.eventID, cc.connID, constants.NotifyParticipantJoined, &ParticipantJoined{
		ConnectionID: cc.connID,
		Participant:  self,
	})

	s.logger.Info("Participant joined",
		log.EventID(cc.eventID),
		log.ConnID(cc.connID),
		log.Bool("isHost", isHost),
		log.Int("others", len(participants)))

	return &JoinResult{
		ConnectionID: cc.connID,
		Participants: participants,
	}, nil
}

// handleLeave is idempotent: leaving a room that was already ended succeeds.
func (s *Server) handleLeave(mctx rpcCtx, _ *json.RawMessage) (any, error) {
	s.Depart(mctx)
	return &LeaveResult{Left: true}, nil
}

func (s *Server) handleStartCall(mctx rpcCtx, _ *json.RawMessage) (any, error) {
	cc := mctx.Get()
	eventID, joined := s.rooms.roomOf(cc.connID)
	if !joined {
		return nil, jsonrpc.ErrInvalidRequest("not joined yet")
	}

	callsStarted.Add(cc.reqCtx, 1)
	s.broadcast(cc.reqCtx, eventID, cc.connID, constants.NotifyCallStarted, &CallStarted{
		ConnectionID: cc.connID,
	})

	s.logger.Info("Call started",
		log.EventID(eventID),
		log.ConnID(cc.connID))
	return &StartCallResult{Started: true}, nil
}

// handleEndRoom re-validates host identity against the event record, then
// ends the room for every participant on every instance.
func (s *Server) handleEndRoom(mctx rpcCtx, _ *json.RawMessage) (any, error) {
	cc := mctx.Get()
	ctx, cancel := context.WithTimeout(cc.reqCtx, opTimeout)
	defer cancel()

	isHost, err := s.hosts.IsHost(ctx, cc.eventID, cc.userID)
	if err != nil {
		s.logger.Error("Failed to resolve host", log.Error(err))
		return nil, jsonrpc.ErrInternal("fail to verify host")
	}
	if !isHost {
		endRoomRejected.Add(ctx, 1)
		s.logger.Warn("Non-host attempted to end room",
			log.EventID(cc.eventID),
			log.UserID(cc.userID))
		return nil, jsonrpc.ErrCustom(CodeForbidden, "only the host may end the room")
	}

	first, err := s.roster.End(ctx, cc.eventID)
	if err != nil {
		s.logger.Error("Failed to end room", log.Error(err))
		if !first {
			return nil, jsonrpc.ErrInternal("fail to end room")
		}
		// marked ended but the roster is left behind; it no longer admits anyone
	}
	if !first {
		s.logger.Info("Room already ended", log.EventID(cc.eventID))
		return &EndRoomResult{Ended: true}, nil
	}

	roomsEnded.Add(ctx, 1)
	s.broadcast(ctx, cc.eventID, cc.connID, constants.NotifyRoomEnded, &RoomEnded{EventID: cc.eventID})
	s.rooms.drop(cc.eventID)

	s.logger.Info("Room ended", log.EventID(cc.eventID))
	return &EndRoomResult{Ended: true}, nil
}

// Depart removes the connection from its room and tells the others.
func (s *Server) Depart(mctx rpcCtx) {
	cc := mctx.Get()
	eventID, ok := s.rooms.remove(cc.connID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(cc.reqCtx), opTimeout)
	defer cancel()

	if err := s.roster.Remove(ctx, eventID, cc.connID); err != nil {
		s.logger.Error("Failed to remove participant", log.Error(err))
	}
	s.broadcast(ctx, eventID, cc.connID, constants.NotifyParticipantLeft, &ParticipantLeft{
		ConnectionID: cc.connID,
	})

	s.logger.Info("Participant left",
		log.EventID(eventID),
		log.ConnID(cc.connID))
}

// broadcast notifies local members first, then relays to other instances.
func (s *Server) broadcast(ctx context.Context, eventID, exclude, method string, params any) {
	s.notifyLocal(eventID, exclude, method, params)

	if err := s.fanout.Publish(ctx, eventID, exclude, method, params); err != nil {
		s.logger.Error("Failed to relay notification",
			log.EventID(eventID),
			log.String("method", method),
			log.Error(err))
	}
}

func (s *Server) deliverRemote(_ context.Context, msg *roomMessage) {
	s.notifyLocal(msg.EventID, msg.Exclude, msg.Method, msg.Params)
	if msg.Method == constants.NotifyRoomEnded {
		s.rooms.drop(msg.EventID)
	}
}

func (s *Server) notifyLocal(eventID, exclude, method string, params any) {
	for _, conn := range s.rooms.conns(eventID, exclude) {
		ctx := conn.Context().Get().reqCtx
		if err := conn.Notify(ctx, method, params); err != nil {
			notificationsFailed.Add(ctx, 1)
			s.logger.Error("Failed to notify member",
				log.EventID(eventID),
				log.String("method", method),
				log.Error(err))
			continue
		}
		notificationsSent.Add(ctx, 1)
	}
}
