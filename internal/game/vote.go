// internal/game/vote.go
package game

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Tally is the counted result of a vote.
type Tally struct {
	Counts   map[uuid.UUID]int
	Leaders  []uuid.UUID
	Max      int
	Captured bool
}

// tallyVotes counts non-null votes. Capture needs a unique plurality leader
// equal to spyID.
func tallyVotes(votes map[uuid.UUID]*uuid.UUID, spyID uuid.UUID) Tally {
	t := Tally{Counts: make(map[uuid.UUID]int)}
	for _, target := range votes {
		if target != nil {
			t.Counts[*target]++
		}
	}
	for id, n := range t.Counts {
		switch {
		case n > t.Max:
			t.Max = n
			t.Leaders = []uuid.UUID{id}
		case n == t.Max:
			t.Leaders = append(t.Leaders, id)
		}
	}
	t.Captured = len(t.Leaders) == 1 && t.Leaders[0] == spyID
	return t
}

// openVotingUnsafe moves playing -> voting. Assumes lock is held.
func (g *Game) openVotingUnsafe(reason string) {
	if g.state != StatePlaying {
		return
	}
	g.cancelTimersUnsafe()
	g.state = StateVoting
	g.votes = make(map[uuid.UUID]*uuid.UUID)
	g.resultsCalculated = false
	g.voteReason = reason
	g.phaseDeadline = g.now().Add(g.seconds(g.settings.VoteDurationSec))

	// A dealt player who dropped can still be accused, but only connected
	// players vote.
	g.voters = nil
	g.candidates = nil
	for _, p := range g.players {
		if p.Role == "" {
			continue
		}
		g.candidates = append(g.candidates, p.ID)
		if !p.Disconnected {
			g.voters = append(g.voters, p.ID)
		}
	}

	g.broadcastUnsafe(g.voteOpenedUnsafe())
	g.afterUnsafe(g.seconds(g.settings.VoteDurationSec), g.resolveVotesUnsafe)
	g.scheduleBotVotesUnsafe()
	g.checkVoteCompleteUnsafe()
}

func (g *Game) voteOpenedUnsafe() map[string]interface{} {
	candidates := make([]map[string]interface{}, 0, len(g.candidates))
	for _, id := range g.candidates {
		if p := g.playerUnsafe(id); p != nil {
			candidates = append(candidates, map[string]interface{}{"id": p.ID, "name": p.Name})
		}
	}
	return map[string]interface{}{
		"type":       "vote_opened",
		"candidates": candidates,
		"reason":     g.voteReason,
		"duration":   g.settings.VoteDurationSec,
		"remaining":  g.remainingUnsafe(),
	}
}

func (g *Game) voteProgressUnsafe() map[string]interface{} {
	ids := make([]uuid.UUID, 0, len(g.votes))
	for _, id := range g.voters {
		if _, ok := g.votes[id]; ok {
			ids = append(ids, id)
		}
	}
	return map[string]interface{}{
		"type":     "vote_progress",
		"voterIds": ids,
		"total":    len(g.voters),
	}
}

func (g *Game) isVoterUnsafe(id uuid.UUID) bool {
	return containsID(g.voters, id)
}

func (g *Game) isCandidateUnsafe(id uuid.UUID) bool {
	return containsID(g.candidates, id)
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// SubmitVote records voter's single vote. A nil target abstains.
func (g *Game) SubmitVote(voter uuid.UUID, target *uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	g.castVoteUnsafe(voter, target)
}

// castVoteUnsafe is the shared path for human and bot votes. Assumes lock is
// held.
func (g *Game) castVoteUnsafe(voter uuid.UUID, target *uuid.UUID) {
	if g.state != StateVoting || g.resultsCalculated || !g.isVoterUnsafe(voter) {
		g.log.WithField("player", voter).Debug("vote ignored")
		return
	}
	if _, done := g.votes[voter]; done {
		return
	}
	if target != nil {
		if *target == voter {
			g.sendErrorUnsafe(voter, "You cannot vote for yourself.")
			return
		}
		if !g.isCandidateUnsafe(*target) {
			g.sendErrorUnsafe(voter, "That player cannot be voted for.")
			return
		}
		t := *target
		target = &t
	}
	g.votes[voter] = target
	g.broadcastUnsafe(g.voteProgressUnsafe())
	g.checkVoteCompleteUnsafe()
}

// checkVoteCompleteUnsafe resolves once every connected voter has voted.
func (g *Game) checkVoteCompleteUnsafe() {
	if g.state != StateVoting || g.resultsCalculated {
		return
	}
	for _, id := range g.voters {
		p := g.playerUnsafe(id)
		if p == nil || p.Disconnected {
			continue
		}
		if _, ok := g.votes[id]; !ok {
			return
		}
	}
	g.resolveVotesUnsafe()
}

// resolveVotesUnsafe scores the vote exactly once per round, whether reached
// by the last vote or by the vote window expiring. Assumes lock is held.
func (g *Game) resolveVotesUnsafe() {
	if g.state != StateVoting || g.resultsCalculated {
		return
	}
	g.resultsCalculated = true
	g.cancelTimersUnsafe()

	spy := g.spy
	t := tallyVotes(g.votes, spy.ID)
	if t.Captured {
		var names []string
		for _, id := range g.voters {
			target, ok := g.votes[id]
			if !ok || target == nil || *target != spy.ID {
				continue
			}
			if p := g.playerUnsafe(id); p != nil {
				p.Score++
				names = append(names, p.Name)
			}
		}
		text := fmt.Sprintf("%s was the spy and got caught! Point to %s.", spy.Name, strings.Join(names, ", "))
		g.closeRoundUnsafe(OutcomeCaptured, text)
		return
	}

	spy.Score++
	var why string
	switch {
	case len(t.Leaders) == 0:
		why = "Nobody cast a vote."
	case len(t.Leaders) > 1:
		why = "The vote was tied."
	default:
		accused := "someone"
		if p := g.playerUnsafe(t.Leaders[0]); p != nil {
			accused = p.Name
		}
		why = fmt.Sprintf("The group accused %s, who was innocent.", accused)
	}
	g.openSpyGuessUnsafe(why)
}
