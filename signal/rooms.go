package signal

import (
	"sync"

	"github.com/imtaco/meeting-coordinator/internal/jsonrpc"
	"github.com/imtaco/meeting-coordinator/internal/log"
)

type member struct {
	conn jsonrpc.Conn[connContext]
	info Participant
}

// localRooms tracks the connections joined to each room on this instance.
type localRooms struct {
	room2members map[string]map[string]*member // eventId -> connId -> member
	member2room  map[string]string             // connId -> eventId
	mu           sync.RWMutex
	logger       *log.Logger
}

func newLocalRooms(logger *log.Logger) *localRooms {
	return &localRooms{
		room2members: make(map[string]map[string]*member),
		member2room:  make(map[string]string),
		logger:       logger,
	}
}

func (r *localRooms) add(eventID, connID string, m *member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.member2room[connID] = eventID

	room, ok := r.room2members[eventID]
	if !ok {
		room = make(map[string]*member)
		r.room2members[eventID] = room
	}
	room[connID] = m

	r.logger.Debug("Member added",
		log.ConnID(connID),
		log.EventID(eventID))
}

// remove drops connID and returns the room it was in.
func (r *localRooms) remove(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventID, ok := r.member2room[connID]
	if !ok {
		return "", false
	}
	if room, ok := r.room2members[eventID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.room2members, eventID)
		}
	}
	delete(r.member2room, connID)

	r.logger.Debug("Member removed",
		log.ConnID(connID),
		log.EventID(eventID))
	return eventID, true
}

// drop removes a whole room and returns how many members it had.
func (r *localRooms) drop(eventID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.room2members[eventID]
	if !ok {
		return 0
	}
	for connID := range room {
		delete(r.member2room, connID)
	}
	delete(r.room2members, eventID)

	r.logger.Debug("Room dropped", log.EventID(eventID))
	return len(room)
}

func (r *localRooms) roomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eventID, ok := r.member2room[connID]
	return eventID, ok
}

// conns returns the members of eventID except the one with connection exclude.
func (r *localRooms) conns(eventID, exclude string) []jsonrpc.Conn[connContext] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room := r.room2members[eventID]
	if room == nil {
		return nil
	}

	conns := make([]jsonrpc.Conn[connContext], 0, len(room))
	for connID, m := range room {
		if connID == exclude {
			continue
		}
		conns = append(conns, m.conn)
	}
	return conns
}

func (r *localRooms) size(eventID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.room2members[eventID])
}
