// internal/game/timer.go
package game

import "time"

// A room arms at most one phase's timers at a time. cancelTimersUnsafe bumps
// timerGen, and every callback re-checks the generation under the lock, so a
// timer that already fired and is waiting on Mu becomes a no-op.

// cancelTimersUnsafe invalidates every armed timer. Assumes lock is held.
func (g *Game) cancelTimersUnsafe() {
	g.timerGen++
	for _, t := range g.timers {
		t.Stop()
	}
	g.timers = nil
}

// afterUnsafe runs fn once after d, with the lock held, unless the timers are
// cancelled first. Assumes lock is held.
func (g *Game) afterUnsafe(d time.Duration, fn func()) {
	gen := g.timerGen
	t := time.AfterFunc(d, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.timerGen != gen {
			g.log.Debug("stale timer ignored")
			return
		}
		fn()
	})
	g.timers = append(g.timers, t)
}

// everyUnsafe runs fn every d while it returns true and the timers have not
// been cancelled. Assumes lock is held.
func (g *Game) everyUnsafe(d time.Duration, fn func() bool) {
	gen := g.timerGen
	var t *time.Timer
	t = time.AfterFunc(d, func() {
		g.Mu.Lock()
		defer g.Mu.Unlock()
		if g.timerGen != gen {
			return
		}
		if fn() && g.timerGen == gen {
			t.Reset(d)
		}
	})
	g.timers = append(g.timers, t)
}
