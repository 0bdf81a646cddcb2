package session_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/imtaco/meeting-coordinator/internal/constants"
	"github.com/imtaco/meeting-coordinator/meetings"
	"github.com/imtaco/meeting-coordinator/session"
)

// orderLog records cross-component happenings in the order they occur.
type orderLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *orderLog) add(entry string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *orderLog) index(entry string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

// fakeHub is an in-memory room shared by fakeTransports.
type fakeHub struct {
	mu      sync.Mutex
	seq     int
	members map[string]*fakeTransport
	log     *orderLog
}

func newFakeHub(log *orderLog) *fakeHub {
	return &fakeHub{
		members: make(map[string]*fakeTransport),
		log:     log,
	}
}

func (h *fakeHub) others(self string) []*fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*fakeTransport
	for id, m := range h.members {
		if id != self {
			out = append(out, m)
		}
	}
	return out
}

type fakeTransport struct {
	hub  *fakeHub
	name string

	mu        sync.Mutex
	listener  session.TransportListener
	connID    string
	connected bool
	isHost    bool

	joinGate chan struct{}
	joinErr  error
	startErr error
	endErr   error

	joins      atomic.Int32
	leaves     atomic.Int32
	startCalls atomic.Int32
	endRooms   atomic.Int32
}

func newFakeTransport(hub *fakeHub, name string) *fakeTransport {
	return &fakeTransport{hub: hub, name: name}
}

func (t *fakeTransport) SetListener(l session.TransportListener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listener = l
}

func (t *fakeTransport) getListener() session.TransportListener {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.listener
}

func (t *fakeTransport) Join(_ context.Context, _ string, displayName string, isHost bool) (string, error) {
	t.joins.Add(1)
	if t.joinGate != nil {
		<-t.joinGate
	}
	if t.joinErr != nil {
		return "", t.joinErr
	}

	t.hub.mu.Lock()
	t.hub.seq++
	id := fmt.Sprintf("conn-%d", t.hub.seq)
	t.hub.members[id] = t
	t.hub.mu.Unlock()

	t.mu.Lock()
	t.connID = id
	t.connected = true
	t.isHost = isHost
	t.name = displayName
	t.mu.Unlock()

	for _, other := range t.hub.others(id) {
		if l := other.getListener(); l != nil {
			l.OnParticipantJoined(id)
		}
	}
	if l := t.getListener(); l != nil {
		l.OnConnected()
	}
	return id, nil
}

func (t *fakeTransport) Leave(context.Context) error {
	t.leaves.Add(1)

	t.mu.Lock()
	id := t.connID
	t.connID = ""
	t.connected = false
	t.mu.Unlock()
	if id == "" {
		return nil
	}

	t.hub.mu.Lock()
	delete(t.hub.members, id)
	t.hub.mu.Unlock()

	for _, other := range t.hub.others(id) {
		if l := other.getListener(); l != nil {
			l.OnParticipantLeft(id)
		}
	}
	return nil
}

func (t *fakeTransport) StartCall(context.Context) error {
	t.startCalls.Add(1)
	return t.startErr
}

func (t *fakeTransport) EndRoom(context.Context) error {
	t.endRooms.Add(1)
	if t.endErr != nil {
		return t.endErr
	}

	t.hub.log.add("room ended broadcast")
	for _, other := range t.hub.others(t.connectionID()) {
		if l := other.getListener(); l != nil {
			l.OnRoomEnded()
		}
	}
	return nil
}

func (t *fakeTransport) connectionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connID
}

func (t *fakeTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *fakeTransport) Roster() map[string]session.Participant {
	self := t.connectionID()
	roster := make(map[string]session.Participant)
	for _, other := range t.hub.others(self) {
		other.mu.Lock()
		roster[other.connID] = session.Participant{Name: other.name, IsHost: other.isHost}
		other.mu.Unlock()
	}
	return roster
}

// fakeEvents is an in-memory event record store.
type fakeEvents struct {
	mu     sync.Mutex
	record meetings.EventRecord
	setErr map[constants.EventStatus]error
	sets   []constants.EventStatus
	gets   atomic.Int32
	log    *orderLog
}

func newFakeEvents(rec meetings.EventRecord, log *orderLog) *fakeEvents {
	return &fakeEvents{
		record: rec,
		setErr: make(map[constants.EventStatus]error),
		log:    log,
	}
}

func (f *fakeEvents) GetEvent(context.Context, string) (*meetings.EventRecord, error) {
	f.gets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.record
	return &rec, nil
}

func (f *fakeEvents) SetEventStatus(_ context.Context, _ string, status constants.EventStatus) (*meetings.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, status)
	if err := f.setErr[status]; err != nil {
		return nil, err
	}
	f.record.Status = status
	f.log.add("status " + string(status))
	rec := f.record
	return &rec, nil
}

func (f *fakeEvents) status() constants.EventStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record.Status
}

func (f *fakeEvents) setCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sets)
}

type fakeHandle struct {
	id       string
	releases atomic.Int32
}

func (h *fakeHandle) ID() string { return h.id }

func (h *fakeHandle) Release() error {
	h.releases.Add(1)
	return nil
}

// fakeMedia hands out fakeHandles, optionally blocking until gate is closed.
type fakeMedia struct {
	mu       sync.Mutex
	gate     chan struct{}
	err      error
	acquires int
	handles  []*fakeHandle
}

func (m *fakeMedia) Acquire(context.Context) (session.StreamHandle, error) {
	m.mu.Lock()
	m.acquires++
	gate, err := m.gate, m.err
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	h := &fakeHandle{id: fmt.Sprintf("stream-%d", len(m.handles)+1)}
	m.handles = append(m.handles, h)
	return h, nil
}

func (m *fakeMedia) acquireCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires
}

func (m *fakeMedia) handle() *fakeHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.handles) == 0 {
		return nil
	}
	return m.handles[0]
}

type transition struct {
	from, to session.Phase
}

type recordingPresenter struct {
	mu          sync.Mutex
	transitions []transition
	errs        []error
	notices     []string
	navigations []string
}

func (p *recordingPresenter) PhaseChanged(from, to session.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, transition{from, to})
}

func (p *recordingPresenter) ReportError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = append(p.errs, err)
}

func (p *recordingPresenter) Notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, msg)
}

func (p *recordingPresenter) NavigateAway(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.navigations = append(p.navigations, reason)
}

func (p *recordingPresenter) countTransitions(from, to session.Phase) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.transitions {
		if t.from == from && t.to == to {
			n++
		}
	}
	return n
}

func (p *recordingPresenter) errors() []error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]error(nil), p.errs...)
}

func (p *recordingPresenter) noticeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.notices)
}

func (p *recordingPresenter) navigationReasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}
