package session

import (
	"context"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/meetings"
)

// Phase is the position of a Session in its lifecycle. Phases only move forward.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseInitializing
	PhaseJoining
	PhaseJoined
	PhaseWaitingForHost
	PhaseReadyToStart
	PhaseLive
	PhaseLeaving
	PhaseTerminated
)

var phaseNames = [...]string{
	PhaseIdle:           "idle",
	PhaseInitializing:   "initializing",
	PhaseJoining:        "joining",
	PhaseJoined:         "joined",
	PhaseWaitingForHost: "waiting_for_host",
	PhaseReadyToStart:   "ready_to_start",
	PhaseLive:           "live",
	PhaseLeaving:        "leaving",
	PhaseTerminated:     "terminated",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// inRoom reports whether the session holds room membership and has not
// started tearing down.
func (p Phase) inRoom() bool {
	return p >= PhaseJoined && p <= PhaseLive
}

// ended reports whether teardown has begun.
func (p Phase) ended() bool {
	return p >= PhaseLeaving
}

// StreamHandle is a held local capture stream.
type StreamHandle interface {
	ID() string
	Release() error
}

// MediaSource acquires the local audio and video capture.
type MediaSource interface {
	Acquire(ctx context.Context) (StreamHandle, error)
}

// Participant is the roster metadata of one remote connection.
type Participant struct {
	Name         string `json:"name"`
	AudioEnabled bool   `json:"audio"`
	VideoEnabled bool   `json:"video"`
	IsHost       bool   `json:"isHost"`
}

// Transport is the room signaling capability a Session drives.
// Roster never includes the local connection.
type Transport interface {
	Join(ctx context.Context, eventID, displayName string, isHost bool) (string, error)
	Leave(ctx context.Context) error
	StartCall(ctx context.Context) error
	EndRoom(ctx context.Context) error
	Connected() bool
	Roster() map[string]Participant
	SetListener(l TransportListener)
}

// TransportListener receives asynchronous room events. Implementations must
// not block.
type TransportListener interface {
	OnConnected()
	OnDisconnected()
	OnParticipantJoined(connectionID string)
	OnParticipantLeft(connectionID string)
	OnRoomEnded()
}

// EventStatusClient reads and mutates the persisted event record.
type EventStatusClient interface {
	GetEvent(ctx context.Context, eventID string) (*meetings.EventRecord, error)
	SetEventStatus(ctx context.Context, eventID string, status constants.EventStatus) (*meetings.EventRecord, error)
}

// Presenter surfaces session progress to the user. All calls are made from
// the session goroutine.
type Presenter interface {
	PhaseChanged(from, to Phase)
	ReportError(err error)
	Notice(msg string)
	NavigateAway(reason string)
}

// Preconditions gate the first transition out of Idle.
type Preconditions struct {
	Event       *meetings.EventRecord
	UserID      string
	DisplayName string
	Eligible    bool
}

func (p Preconditions) satisfied() bool {
	return p.Event != nil && p.UserID != "" && p.Eligible
}
