// internal/game/round.go
package game

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/bot"
	"github.com/jason-s-yu/spyfall/internal/locations"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// camouflageTiers maps the number of selected themes to the list size.
var camouflageTiers = []int{12, 15, 18, 20, 22}

// camouflageSize returns the camouflage list size for themeCount themes,
// capped at the number of locations available.
func camouflageSize(themeCount, available int) int {
	if themeCount < 1 {
		themeCount = 1
	}
	if themeCount > len(camouflageTiers) {
		themeCount = len(camouflageTiers)
	}
	size := camouflageTiers[themeCount-1]
	if size > available {
		size = available
	}
	return size
}

// sortLocations orders names by English collation, ignoring case.
func sortLocations(names []string) {
	collate.New(language.English, collate.IgnoreCase).SortStrings(names)
}

// ChangeSetting updates one setting. Host only, lobby only.
func (g *Game) ChangeSetting(actor uuid.UUID, key string, value interface{}) {
	g.Mu.Lock()
	defer g.Mu.Unlock()

	if !g.isHostUnsafe(actor) || g.state != StateLobby || g.starting {
		g.log.WithField("player", actor).Debug("change_setting ignored")
		return
	}
	next, err := g.settings.With(key, value, g.ds.HasTheme)
	if err != nil {
		g.sendErrorUnsafe(actor, err.Error())
		return
	}
	g.applySettingsUnsafe(next)
}

func (g *Game) applySettingsUnsafe(next Settings) {
	themesChanged := strings.Join(next.Themes, ",") != strings.Join(g.settings.Themes, ",")
	g.settings = next
	if themesChanged {
		g.deck.Reset(next.Themes)
	}
	g.broadcastUnsafe(map[string]interface{}{
		"type":     "settings_changed",
		"settings": g.settings.clone(),
	})
}

// StartRound deals a new round. Host only, from the lobby or a non-final
// post-round. A settings patch is accepted only in the lobby.
func (g *Game) StartRound(actor uuid.UUID, patch map[string]interface{}) {
	g.startRound(actor, patch, StateLobby, StatePostRound)
}

// NextRound starts the following round from post-round. Host only.
func (g *Game) NextRound(actor uuid.UUID) {
	g.startRound(actor, nil, StatePostRound)
}

type roundPlan struct {
	location    locations.Location
	pool        []string
	distractors int
	seq         int
}

func (g *Game) startRound(actor uuid.UUID, patch map[string]interface{}, from ...State) {
	g.Mu.Lock()
	plan, ok := g.planRoundUnsafe(actor, patch, from)
	g.Mu.Unlock()
	if !ok {
		return
	}

	// The decision service is awaited without the lock; everything is
	// re-validated once it is reacquired.
	suggested := g.requestDistractors(plan)

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.seq == plan.seq {
		g.starting = false
	}
	if g.closed || g.seq != plan.seq || (g.state != StateLobby && g.state != StatePostRound) {
		g.log.Debug("round start abandoned, room changed while waiting for distractors")
		return
	}
	if suggested == nil {
		suggested = g.sampleUnsafe(plan.pool, plan.distractors)
	}
	g.beginRoundUnsafe(plan.location, suggested)
}

// planRoundUnsafe validates a start request and draws the location. Assumes
// lock is held.
func (g *Game) planRoundUnsafe(actor uuid.UUID, patch map[string]interface{}, from []State) (roundPlan, bool) {
	allowed := false
	for _, s := range from {
		if g.state == s {
			allowed = true
		}
	}
	if g.closed || g.starting || !allowed || !g.isHostUnsafe(actor) {
		g.log.WithField("player", actor).Debugf("start round ignored in state %s", g.state)
		return roundPlan{}, false
	}
	if g.state == StatePostRound && g.currentRound >= g.settings.TotalRounds {
		g.sendErrorUnsafe(actor, "The game is over. Return to the lobby to play again.")
		return roundPlan{}, false
	}
	if len(patch) > 0 && g.state == StateLobby {
		next, err := g.settings.Patch(patch, g.ds.HasTheme)
		if err != nil {
			g.sendErrorUnsafe(actor, err.Error())
			return roundPlan{}, false
		}
		g.applySettingsUnsafe(next)
	}

	g.promoteWaitingUnsafe()
	if n := len(g.activePlayersUnsafe()); n < minPlayersPerRound {
		g.broadcastUnsafe(map[string]interface{}{
			"type":    "error",
			"message": "At least 3 active players are needed to start a round.",
		})
		return roundPlan{}, false
	}

	loc, err := g.deck.Draw()
	if err != nil {
		g.log.WithError(err).Warn("cannot draw a location")
		g.broadcastUnsafe(map[string]interface{}{
			"type":    "error",
			"message": "No locations are available for the selected themes.",
		})
		return roundPlan{}, false
	}

	var pool []string
	for _, l := range g.ds.Pool(g.settings.Themes) {
		if !locations.SameName(l.Name, loc.Name) {
			pool = append(pool, l.Name)
		}
	}
	size := camouflageSize(len(g.settings.Themes), len(pool)+1)

	g.starting = true
	return roundPlan{
		location:    loc,
		pool:        pool,
		distractors: size - 1,
		seq:         g.seq,
	}, true
}

// requestDistractors asks the decision service for distractors. It returns
// nil when the answer is unusable and the caller must fall back.
func (g *Game) requestDistractors(plan roundPlan) []string {
	if plan.distractors <= 0 {
		return []string{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), g.decisionTimeout)
	defer cancel()

	out, err := g.decider.SuggestDistractors(ctx, bot.DistractorRequest{
		TrueLocation: plan.location.Name,
		Pool:         plan.pool,
		Count:        plan.distractors,
	})
	if err != nil {
		if !errors.Is(err, bot.ErrUnavailable) {
			g.log.WithError(err).Warn("distractor suggestion failed, using random fallback")
		}
		return nil
	}
	names, ok := canonicalDistractors(out, plan)
	if !ok {
		g.log.Warnf("distractor suggestion rejected (%d names), using random fallback", len(out))
		return nil
	}
	return names
}

// canonicalDistractors checks a suggestion against the pool, ignoring case,
// and returns the names spelled as the pool spells them.
func canonicalDistractors(names []string, plan roundPlan) ([]string, bool) {
	if len(names) != plan.distractors {
		return nil, false
	}
	inPool := make(map[string]string, len(plan.pool))
	for _, n := range plan.pool {
		inPool[strings.ToLower(n)] = n
	}
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		k := strings.ToLower(strings.TrimSpace(n))
		name, ok := inPool[k]
		if !ok || seen[k] || locations.SameName(n, plan.location.Name) {
			return nil, false
		}
		seen[k] = true
		out = append(out, name)
	}
	return out, true
}

// sampleUnsafe picks n names uniformly at random. Assumes lock is held.
func (g *Game) sampleUnsafe(pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	out := make([]string, 0, n)
	for _, i := range g.rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}

func (g *Game) promoteWaitingUnsafe() {
	for _, p := range g.players {
		if p.Spectator == Waiting {
			p.Spectator = Active
		}
	}
	g.ensureHostUnsafe()
}

// beginRoundUnsafe assigns secrets and enters playing. Assumes lock is held.
func (g *Game) beginRoundUnsafe(loc locations.Location, distractors []string) {
	active := g.activePlayersUnsafe()
	if len(active) < minPlayersPerRound {
		g.broadcastUnsafe(map[string]interface{}{
			"type":    "error",
			"message": "At least 3 active players are needed to start a round.",
		})
		return
	}

	g.cancelTimersUnsafe()
	g.seq++
	g.currentRound++
	for _, p := range g.players {
		p.Role = ""
	}
	g.votes = nil
	g.voters = nil
	g.candidates = nil
	g.resultsCalculated = false
	g.guessSubmitted = false
	g.lastResult = nil
	g.bountyTarget = nil

	g.spy = active[g.rng.Intn(len(active))]
	g.spy.Role = spyRole

	roles := append([]string(nil), loc.Roles...)
	g.rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })
	var others []*Player
	for _, p := range active {
		if p == g.spy {
			continue
		}
		if len(others) < len(roles) {
			p.Role = roles[len(others)]
		} else {
			p.Role = citizenRole
		}
		others = append(others, p)
	}
	if g.settings.BountyHuntEnabled && len(others) > 0 {
		g.bountyTarget = others[g.rng.Intn(len(others))]
	}

	list := append(append([]string(nil), distractors...), loc.Name)
	sortLocations(list)
	g.location = &loc
	g.spyLocationList = list

	g.state = StatePlaying
	g.remaining = g.settings.RoundDurationSec
	g.phaseDeadline = g.now().Add(g.seconds(g.remaining))

	g.log.WithFields(logrus.Fields{
		"round":   g.currentRound,
		"players": len(active),
	}).Info("round started")

	for _, p := range g.players {
		g.sendToUnsafe(p, g.roundStartedUnsafe(p))
	}
	g.everyUnsafe(g.unit, g.tickUnsafe)
}

// roundStartedUnsafe builds the personalised round payload for p.
func (g *Game) roundStartedUnsafe(p *Player) map[string]interface{} {
	msg := map[string]interface{}{
		"type":              "round_started",
		"round":             g.currentRound,
		"totalRounds":       g.settings.TotalRounds,
		"players":           g.rosterUnsafe(),
		"locations":         append([]string(nil), g.spyLocationList...),
		"remaining":         g.remaining,
		"roundDurationSec":  g.settings.RoundDurationSec,
		"bountyHuntEnabled": g.settings.BountyHuntEnabled,
		"isSpy":             false,
		"isSpectator":       false,
	}
	switch {
	case p == g.spy:
		msg["isSpy"] = true
		msg["location"] = nil
		msg["role"] = spyRole
		if g.bountyTarget != nil {
			msg["bountyTarget"] = map[string]interface{}{
				"id":   g.bountyTarget.ID,
				"name": g.bountyTarget.Name,
			}
		}
	case p.Role != "":
		role := locations.ParseRole(p.Role)
		msg["location"] = g.location.Name
		msg["role"] = role.Name
		if role.Description != "" {
			msg["roleDescription"] = role.Description
		}
	default:
		msg["isSpectator"] = true
		msg["location"] = g.location.Name
		msg["role"] = nil
	}
	return msg
}

// tickUnsafe is the round countdown. It returns false once the countdown is
// over. Assumes lock is held.
func (g *Game) tickUnsafe() bool {
	if g.state != StatePlaying {
		return false
	}
	g.remaining--
	if g.remaining < 0 {
		g.remaining = 0
	}
	g.broadcastUnsafe(map[string]interface{}{
		"type":      "timer_tick",
		"remaining": g.remaining,
		"players":   g.rosterUnsafe(),
	})
	if g.remaining == 0 {
		g.openVotingUnsafe("Time is up! Who is the spy?")
		return false
	}
	return true
}

// EndRoundNow skips the rest of the countdown. Host only, playing only.
func (g *Game) EndRoundNow(actor uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StatePlaying || !g.isHostUnsafe(actor) {
		g.log.WithField("player", actor).Debug("end_round_now ignored")
		return
	}
	g.openVotingUnsafe("The host ended the round. Who is the spy?")
}

// ResetToLobby abandons the game in progress and zeroes the scoreboard. Host
// only, from any state but the lobby.
func (g *Game) ResetToLobby(actor uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state == StateLobby || !g.isHostUnsafe(actor) {
		g.log.WithField("player", actor).Debug("reset_to_lobby ignored")
		return
	}
	g.resetUnsafe()
	g.broadcastUnsafe(map[string]interface{}{
		"type":     "returned_to_lobby",
		"players":  g.rosterUnsafe(),
		"settings": g.settings.clone(),
	})
	g.rosterUpdateUnsafe()
}

func (g *Game) resetUnsafe() {
	g.cancelTimersUnsafe()
	g.seq++
	g.starting = false
	g.state = StateLobby
	g.currentRound = 0
	g.location = nil
	g.spy = nil
	g.bountyTarget = nil
	g.votes = nil
	g.voters = nil
	g.candidates = nil
	g.spyLocationList = nil
	g.resultsCalculated = false
	g.guessSubmitted = false
	g.lastResult = nil
	g.voteReason = ""
	g.remaining = 0
	for _, p := range g.players {
		p.Score = 0
		p.Role = ""
	}
	g.deck.Reset(g.settings.Themes)
	g.promoteWaitingUnsafe()
}
