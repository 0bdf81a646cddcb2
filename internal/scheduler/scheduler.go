package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/imtaco/meeting-coordinator/internal/log"
)

// KeyedScheduler emits keys on Chan once their delay has passed. A key is
// pending at most once: enqueueing it again only ever moves it earlier.
//
//	ks := NewKeyedScheduler(logger)
//	ks.Enqueue(sessionID, 5*time.Second)
//	for id := range ks.Chan() {
//		poll(id)
//		ks.Enqueue(id, 5*time.Second)
//	}
type KeyedScheduler struct {
	mu      sync.Mutex
	pending map[string]*entry
	queue   entryHeap

	wake   chan struct{}
	out    chan string
	clock  clockwork.Clock
	ctx    context.Context
	cancel context.CancelFunc
	logger *log.Logger
}

func NewKeyedScheduler(logger *log.Logger) *KeyedScheduler {
	return NewKeyedSchedulerWithClock(logger, clockwork.NewRealClock())
}

func NewKeyedSchedulerWithClock(logger *log.Logger, clock clockwork.Clock) *KeyedScheduler {
	if logger == nil || clock == nil {
		panic("scheduler: logger and clock are required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	ks := &KeyedScheduler{
		pending: make(map[string]*entry),
		wake:    make(chan struct{}, 1),
		out:     make(chan string),
		clock:   clock,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
	go ks.run()
	return ks
}

// Chan is closed by Shutdown.
func (ks *KeyedScheduler) Chan() <-chan string {
	return ks.out
}

func (ks *KeyedScheduler) Enqueue(key string, delay time.Duration) {
	at := ks.clock.Now().Add(delay)

	ks.mu.Lock()
	if e, ok := ks.pending[key]; ok {
		if !at.Before(e.at) {
			ks.mu.Unlock()
			return
		}
		e.at = at
		heap.Fix(&ks.queue, e.index)
	} else {
		e := &entry{key: key, at: at}
		ks.pending[key] = e
		heap.Push(&ks.queue, e)
	}
	ks.mu.Unlock()
	ks.poke()
}

// Cancel drops key if it has not fired yet.
func (ks *KeyedScheduler) Cancel(key string) {
	ks.mu.Lock()
	e, ok := ks.pending[key]
	if ok {
		delete(ks.pending, key)
		heap.Remove(&ks.queue, e.index)
	}
	ks.mu.Unlock()
	if ok {
		ks.poke()
	}
}

func (ks *KeyedScheduler) Len() int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return len(ks.pending)
}

// Shutdown stops the scheduler; pending keys never fire.
func (ks *KeyedScheduler) Shutdown() {
	ks.cancel()
}

func (ks *KeyedScheduler) poke() {
	select {
	case ks.wake <- struct{}{}:
	default:
	}
}

// popDue returns the next due key, or how long until one is due. A negative
// wait means nothing is pending.
func (ks *KeyedScheduler) popDue() (string, time.Duration, bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if len(ks.queue) == 0 {
		return "", -1, false
	}
	top := ks.queue[0]
	if wait := top.at.Sub(ks.clock.Now()); wait > 0 {
		return "", wait, false
	}
	heap.Pop(&ks.queue)
	delete(ks.pending, top.key)
	return top.key, 0, true
}

func (ks *KeyedScheduler) run() {
	defer close(ks.out)

	for {
		key, wait, ok := ks.popDue()
		if ok {
			select {
			case ks.out <- key:
				continue
			case <-ks.ctx.Done():
				return
			}
		}

		var timer clockwork.Timer
		var fire <-chan time.Time
		if wait >= 0 {
			timer = ks.clock.NewTimer(wait)
			fire = timer.Chan()
		}

		select {
		case <-ks.ctx.Done():
		case <-ks.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
		if ks.ctx.Err() != nil {
			ks.logger.Debug("Scheduler stopped", log.Int("dropped", ks.Len()))
			return
		}
	}
}

type entry struct {
	key   string
	at    time.Time
	index int
}

type entryHeap []*entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry) //nolint:forcetypeassert
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
