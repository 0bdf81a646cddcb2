package session

import (
	"time"

	"github.com/jonboulle/clockwork"
)

const defaultCallSettleDelay = 1500 * time.Millisecond

// callGate decides the single moment a call is started. The guard is set
// when the start is scheduled and never reset for the session's lifetime.
type callGate struct {
	clock clockwork.Clock
	delay time.Duration
	guard bool
	timer clockwork.Timer
}

func newCallGate(clock clockwork.Clock, delay time.Duration) *callGate {
	return &callGate{
		clock: clock,
		delay: delay,
	}
}

func (g *callGate) ready(live, connected bool, rosterSize int) bool {
	return !g.guard && live && connected && rosterSize > 0
}

// arm sets the guard and schedules fire after the settle delay.
func (g *callGate) arm(fire func()) {
	g.guard = true
	g.timer = g.clock.AfterFunc(g.delay, fire)
}

// fired clears the pending timer once its action runs.
func (g *callGate) fired() {
	g.timer = nil
}

func (g *callGate) pending() bool {
	return g.timer != nil
}

func (g *callGate) cancel() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
