package constants

type EventStatus string
type UserRole string

const (
	// Event status, persisted on the event record
	EventStatusNotStarted EventStatus = "not_started"
	EventStatusLive       EventStatus = "live"
	EventStatusCompleted  EventStatus = "completed"
)

// Valid reports whether s is one of the known event statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusNotStarted, EventStatusLive, EventStatusCompleted:
		return true
	}
	return false
}

const (
	EventKeyMeta = "meta"
)

const (
	// can start and end the event, ends the room for everyone
	UserRoleHost UserRole = "host"
	// joins the room and waits for the host to start
	UserRoleAttendee UserRole = "attendee"
)

// signal RPC methods, client -> server
const (
	MethodJoin      = "join"
	MethodLeave     = "leave"
	MethodStartCall = "startCall"
	MethodEndRoom   = "endRoom"
)

// signal RPC notifications, server -> client
const (
	NotifyParticipantJoined = "participantJoined"
	NotifyParticipantLeft   = "participantLeft"
	NotifyCallStarted       = "callStarted"
	NotifyRoomEnded         = "roomEnded"
)
