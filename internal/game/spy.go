// internal/game/spy.go
package game

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/locations"
)

const (
	spyGuessBonus    = 1
	bountyHitBonus   = 4
	bountyMissReward = 2
)

// openSpyGuessUnsafe gives an escaped spy one guess at the location. Assumes
// lock is held.
func (g *Game) openSpyGuessUnsafe(why string) {
	g.cancelTimersUnsafe()
	g.state = StateSpyGuessing
	g.guessSubmitted = false
	g.phaseDeadline = g.now().Add(g.seconds(specialPhaseSeconds))

	g.sendToUnsafe(g.spy, g.spyGuessOpenedUnsafe(why))
	g.broadcastExceptUnsafe(g.spy, map[string]interface{}{
		"type":     "waiting_for_spy",
		"spyName":  g.spy.Name,
		"message":  why + " " + g.spy.Name + " was the spy and is guessing the location.",
		"duration": specialPhaseSeconds,
	})

	g.afterUnsafe(g.seconds(specialPhaseSeconds), func() {
		if g.state != StateSpyGuessing || g.guessSubmitted {
			return
		}
		g.guessSubmitted = true
		g.closeRoundUnsafe(OutcomeSpyEscaped, fmt.Sprintf(
			"%s escaped but ran out of time to name the location. It was %s.", g.spy.Name, g.location.Name))
	})
	if g.spy.IsBot {
		g.scheduleBotSpyGuessUnsafe()
	}
}

func (g *Game) spyGuessOpenedUnsafe(why string) map[string]interface{} {
	return map[string]interface{}{
		"type":      "spy_guess_opened",
		"locations": append([]string(nil), g.spyLocationList...),
		"message":   why + " You slipped away. Name the location for a bonus point.",
		"duration":  specialPhaseSeconds,
		"remaining": g.remainingUnsafe(),
	}
}

func (g *Game) inSpyListUnsafe(name string) (string, bool) {
	for _, l := range g.spyLocationList {
		if locations.SameName(l, name) {
			return l, true
		}
	}
	return "", false
}

// SubmitSpyGuess is the escaped spy's single location guess.
func (g *Game) SubmitSpyGuess(player uuid.UUID, location string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.spyGuessUnsafe(player, location)
}

func (g *Game) spyGuessUnsafe(player uuid.UUID, location string) {
	if g.state != StateSpyGuessing || g.guessSubmitted || g.spy == nil || g.spy.ID != player {
		g.log.WithField("player", player).Debug("spy guess ignored")
		return
	}
	guess, ok := g.inSpyListUnsafe(location)
	if !ok {
		g.sendErrorUnsafe(player, "Pick a location from your list.")
		return
	}
	g.guessSubmitted = true
	if locations.SameName(guess, g.location.Name) {
		g.spy.Score += spyGuessBonus
		g.closeRoundUnsafe(OutcomeSpyGuessed, fmt.Sprintf(
			"%s escaped and correctly named the location: %s!", g.spy.Name, g.location.Name))
		return
	}
	g.closeRoundUnsafe(OutcomeSpyEscaped, fmt.Sprintf(
		"%s escaped but guessed %s. The location was %s.", g.spy.Name, guess, g.location.Name))
}

// DeclareBountyHunt lets the spy trade the vote for a guess at the bounty
// target's location and role.
func (g *Game) DeclareBountyHunt(player uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StatePlaying || g.spy == nil || g.spy.ID != player || g.bountyTarget == nil {
		g.log.WithField("player", player).Debug("bounty hunt ignored")
		return
	}
	g.cancelTimersUnsafe()
	g.state = StateBountyHunting
	g.guessSubmitted = false
	g.phaseDeadline = g.now().Add(g.seconds(specialPhaseSeconds))

	g.sendToUnsafe(g.spy, g.bountyOpenedUnsafe())
	g.broadcastExceptUnsafe(g.spy, g.waitingForBountyUnsafe())

	g.afterUnsafe(g.seconds(specialPhaseSeconds), func() {
		if g.state != StateBountyHunting || g.guessSubmitted {
			return
		}
		g.resolveBountyUnsafe(false, fmt.Sprintf("%s ran out of time on the bounty hunt.", g.spy.Name))
	})
}

func (g *Game) bountyOpenedUnsafe() map[string]interface{} {
	return map[string]interface{}{
		"type":       "bounty_opened",
		"targetId":   g.bountyTarget.ID,
		"targetName": g.bountyTarget.Name,
		"locations":  append([]string(nil), g.spyLocationList...),
		"duration":   specialPhaseSeconds,
		"remaining":  g.remainingUnsafe(),
	}
}

func (g *Game) waitingForBountyUnsafe() map[string]interface{} {
	return map[string]interface{}{
		"type":       "waiting_for_bounty",
		"spyName":    g.spy.Name,
		"targetName": g.bountyTarget.Name,
		"duration":   specialPhaseSeconds,
		"remaining":  g.remainingUnsafe(),
	}
}

// SubmitBountyGuess is the spy's single bounty answer.
func (g *Game) SubmitBountyGuess(player uuid.UUID, location, role string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StateBountyHunting || g.guessSubmitted || g.spy == nil || g.spy.ID != player {
		g.log.WithField("player", player).Debug("bounty guess ignored")
		return
	}
	target := g.bountyTarget
	hit := locations.SameName(location, g.location.Name) &&
		locations.SameName(role, locations.ParseRole(target.Role).Name)
	if hit {
		g.resolveBountyUnsafe(true, fmt.Sprintf(
			"%s named %s's location and role: %s at %s!", g.spy.Name, target.Name, locations.ParseRole(target.Role).Name, g.location.Name))
		return
	}
	g.resolveBountyUnsafe(false, fmt.Sprintf(
		"%s guessed %s at %s, but %s was the %s at %s.",
		g.spy.Name, role, location, target.Name, locations.ParseRole(target.Role).Name, g.location.Name))
}

// resolveBountyUnsafe scores a bounty attempt. A miss pays every active
// non-spy player. Assumes lock is held.
func (g *Game) resolveBountyUnsafe(hit bool, text string) {
	g.guessSubmitted = true
	if hit {
		g.spy.Score += bountyHitBonus
		g.closeRoundUnsafe(OutcomeBountyHit, text)
		return
	}
	for _, p := range g.players {
		if p != g.spy && p.Spectator == Active {
			p.Score += bountyMissReward
		}
	}
	g.closeRoundUnsafe(OutcomeBountyMissed, text)
}

// closeRoundUnsafe freezes the round result and enters post-round. Assumes
// lock is held.
func (g *Game) closeRoundUnsafe(outcome Outcome, text string) {
	g.cancelTimersUnsafe()
	g.state = StatePostRound
	g.resultsCalculated = true

	final := g.currentRound >= g.settings.TotalRounds
	msg := map[string]interface{}{
		"type":         "round_over",
		"round":        g.currentRound,
		"totalRounds":  g.settings.TotalRounds,
		"location":     g.location.Name,
		"spyId":        g.spy.ID,
		"spyName":      g.spy.Name,
		"outcome":      outcome,
		"message":      text,
		"isFinalRound": final,
		"players":      g.rosterUnsafe(),
	}
	if final {
		if w := g.leaderUnsafe(); w != nil {
			msg["winner"] = w.view()
		}
	}
	g.lastResult = msg
	g.broadcastUnsafe(msg)

	g.log.WithField("round", g.currentRound).Infof("round closed: %s", outcome)
	g.recordUnsafe(outcome)
}

// leaderUnsafe returns the top scorer, earliest in the roster on ties.
func (g *Game) leaderUnsafe() *Player {
	var best *Player
	for _, p := range g.players {
		if best == nil || p.Score > best.Score {
			best = p
		}
	}
	return best
}

func (g *Game) recordUnsafe(outcome Outcome) {
	if g.recorder == nil {
		return
	}
	scores := make(map[string]int, len(g.players))
	for _, p := range g.players {
		scores[p.Name] = p.Score
	}
	rec := RoundRecord{
		Room:     g.Code,
		Round:    g.currentRound,
		Location: g.location.Name,
		SpyID:    g.spy.ID,
		SpyName:  g.spy.Name,
		Outcome:  outcome,
		Scores:   scores,
		ClosedAt: g.now().UTC(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := g.recorder.RecordRound(ctx, rec); err != nil {
			g.log.WithError(err).Warn("failed to record round")
		}
	}()
}
