// internal/lobby/reaper.go
package lobby

import (
	"context"
	"time"

	"github.com/jason-s-yu/spyfall/internal/game"
)

// Sweep tears down every room whose human players have all been gone for at
// least reapAfter, and returns how many were removed.
func (r *Registry) Sweep(now time.Time, reapAfter time.Duration) int {
	r.mu.Lock()
	rooms := make([]*game.Game, 0, len(r.rooms))
	for _, g := range r.rooms {
		rooms = append(rooms, g)
	}
	r.mu.Unlock()

	removed := 0
	for _, g := range rooms {
		idle := g.AbandonedFor(now)
		if idle == 0 || idle < reapAfter {
			continue
		}
		g.Teardown()
		r.drop(g.Code)
		removed++
		r.log.WithField("room", g.Code).Infof("reaped after %s abandoned", idle.Round(time.Second))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval, reapAfter time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Sweep(now, reapAfter)
		}
	}
}
