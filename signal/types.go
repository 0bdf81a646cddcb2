package signal

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/meetings"
)

// JSON-RPC error codes beyond the standard ones.
const (
	CodeForbidden = -32001
	CodeRoomEnded = -32002
	CodeThrottled = -32003
)

// Participant is one roster entry as seen by every member of a room.
type Participant struct {
	Name         string `json:"name"`
	AudioEnabled bool   `json:"audioEnabled"`
	VideoEnabled bool   `json:"videoEnabled"`
	IsHost       bool   `json:"isHost"`
}

type JoinParams struct {
	EventID     string `json:"eventId" validate:"required,eventid"`
	DisplayName string `json:"displayName" validate:"required,displayname"`
	Audio       bool   `json:"audio"`
	Video       bool   `json:"video"`
}

type JoinResult struct {
	ConnectionID string                 `json:"connectionId"`
	Participants map[string]Participant `json:"participants"`
}

type LeaveResult struct {
	Left bool `json:"left"`
}

type StartCallResult struct {
	Started bool `json:"started"`
}

type EndRoomResult struct {
	Ended bool `json:"ended"`
}

type ParticipantJoined struct {
	ConnectionID string      `json:"connectionId"`
	Participant  Participant `json:"participant"`
}

type ParticipantLeft struct {
	ConnectionID string `json:"connectionId"`
}

type CallStarted struct {
	ConnectionID string `json:"connectionId"`
}

type RoomEnded struct {
	EventID string `json:"eventId"`
}

// EventGetter loads the event record that host authority is derived from.
type EventGetter interface {
	GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error)
}

// connContext is the per-connection state shared by every RPC on it.
// It is filled by the hook before the read loop starts and never mutated after.
type connContext struct {
	connID  string
	userID  string
	eventID string
	name    string
	reqCtx  context.Context
	limiter *rate.Limiter
}

type rpcCtx = jsonrpc.MethodContext[connContext]
