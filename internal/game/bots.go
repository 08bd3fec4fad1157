// internal/game/bots.go
package game

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/bot"
	"github.com/jason-s-yu/spyfall/internal/locations"
)

// botDelayUnsafe returns a jittered think time of 1.5 to 4.5 game seconds.
func (g *Game) botDelayUnsafe() time.Duration {
	ms := 1500 + g.rng.Intn(3001)
	return time.Duration(ms) * g.unit / 1000
}

// scheduleBotVotesUnsafe arms one delayed vote per bot voter. Assumes lock
// is held.
func (g *Game) scheduleBotVotesUnsafe() {
	for _, id := range g.voters {
		p := g.playerUnsafe(id)
		if p == nil || !p.IsBot {
			continue
		}
		botID := p.ID
		g.afterUnsafe(g.botDelayUnsafe(), func() {
			if g.state != StateVoting || g.resultsCalculated {
				return
			}
			prompt, ok := g.votePromptUnsafe(botID)
			if !ok {
				return
			}
			go g.botVote(botID, prompt, g.seq)
		})
	}
}

func (g *Game) votePromptUnsafe(botID uuid.UUID) (bot.VotePrompt, bool) {
	p := g.playerUnsafe(botID)
	if p == nil {
		return bot.VotePrompt{}, false
	}
	prompt := bot.VotePrompt{
		Round:     g.currentRound,
		VoterID:   p.ID.String(),
		VoterName: p.Name,
		IsSpy:     p == g.spy,
	}
	if !prompt.IsSpy {
		prompt.Location = g.location.Name
		prompt.Role = locations.ParseRole(p.Role).Name
	}
	for _, id := range g.candidates {
		if c := g.playerUnsafe(id); c != nil {
			prompt.Candidates = append(prompt.Candidates, bot.Candidate{ID: c.ID.String(), Name: c.Name})
		}
	}
	return prompt, true
}

// botVote asks the decision service for a vote without holding the lock and
// casts it if the same vote is still open. Any failure abstains.
func (g *Game) botVote(botID uuid.UUID, prompt bot.VotePrompt, seq int) {
	ctx, cancel := context.WithTimeout(context.Background(), g.decisionTimeout)
	choice, err := g.decider.ChooseVote(ctx, prompt)
	cancel()

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.seq != seq || g.state != StateVoting || g.resultsCalculated {
		return
	}
	log := g.log.WithField("player", botID)
	if err != nil {
		log.WithError(err).Debug("bot vote fell back to abstain")
		g.castVoteUnsafe(botID, nil)
		return
	}

	var target *uuid.UUID
	if id, perr := uuid.Parse(choice); perr == nil && id != botID && g.isCandidateUnsafe(id) {
		target = &id
	} else if choice != "" {
		log.Debugf("bot chose unusable candidate %q, abstaining", choice)
	}
	g.castVoteUnsafe(botID, target)
}

// scheduleBotSpyGuessUnsafe makes an escaped bot spy guess at random after
// the usual think time. Assumes lock is held.
func (g *Game) scheduleBotSpyGuessUnsafe() {
	g.afterUnsafe(g.botDelayUnsafe(), func() {
		if g.state != StateSpyGuessing || g.guessSubmitted || len(g.spyLocationList) == 0 {
			return
		}
		pick := g.spyLocationList[g.rng.Intn(len(g.spyLocationList))]
		g.spyGuessUnsafe(g.spy.ID, pick)
	})
}
