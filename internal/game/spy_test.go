// internal/game/spy_test.go
package game

import (
	"testing"
	"time"

	"github.com/jason-s-yu/spyfall/internal/locations"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roomInSpyGuess runs a round to a failed capture.
func roomInSpyGuess(t *testing.T, unit time.Duration) (*testRoom, *Player, []*Player) {
	t.Helper()
	r := newTestRoom(t, 3, unit, nil)
	r.start(t)
	r.g.EndRoundNow(r.host())
	spy, others := r.spyAndOthers()
	for _, p := range append(others, spy) {
		r.g.SubmitVote(p.ID, nil)
	}
	require.Equal(t, StateSpyGuessing, r.g.State())
	return r, spy, others
}

func wrongLocation(r *testRoom) string {
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for _, l := range r.g.spyLocationList {
		if l != r.g.location.Name {
			return l
		}
	}
	return ""
}

func TestSpyGuessCorrectScoresTwoInTotal(t *testing.T) {
	r, spy, others := roomInSpyGuess(t, time.Hour)
	msgs := ofType(drain(r.connOf(spy)), "spy_guess_opened")
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0], "location")

	r.g.SubmitSpyGuess(spy.ID, r.g.location.Name)

	assert.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 2, spy.Score)
	assert.Equal(t, []int{0, 0}, scores(others))
	assert.Equal(t, OutcomeSpyGuessed, r.g.lastResult["outcome"])
}

func TestSpyGuessWrongKeepsEscapePoint(t *testing.T) {
	r, spy, _ := roomInSpyGuess(t, time.Hour)
	r.g.SubmitSpyGuess(spy.ID, wrongLocation(r))
	r.g.SubmitSpyGuess(spy.ID, r.g.location.Name)

	assert.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, spy.Score)
}

func TestSpyGuessOnlyFromSpyAndList(t *testing.T) {
	r, spy, others := roomInSpyGuess(t, time.Hour)
	r.g.SubmitSpyGuess(others[0].ID, r.g.location.Name)
	assert.Equal(t, StateSpyGuessing, r.g.State())

	r.g.SubmitSpyGuess(spy.ID, "Atlantis")
	assert.Equal(t, StateSpyGuessing, r.g.State(), "a name outside the list does not use up the guess")
}

func TestSpyGuessTimesOut(t *testing.T) {
	r, spy, _ := roomInSpyGuess(t, time.Millisecond)
	require.Eventually(t, func() bool { return r.g.State() == StatePostRound }, time.Second, time.Millisecond)
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, spy.Score)
	assert.Equal(t, OutcomeSpyEscaped, r.g.lastResult["outcome"])
}

// roomInBountyHunt deals a round with bounty hunting and has the spy declare.
func roomInBountyHunt(t *testing.T, unit time.Duration) (*testRoom, *Player, *Player) {
	t.Helper()
	r := newTestRoom(t, 5, unit, nil)
	r.g.ChangeSetting(r.host(), "bountyHuntEnabled", true)
	r.g.ToggleSpectator(r.players[4].ID)
	r.start(t)
	spy, _ := r.spyAndOthers()
	r.g.DeclareBountyHunt(spy.ID)
	require.Equal(t, StateBountyHunting, r.g.State())
	r.g.Mu.Lock()
	target := r.g.bountyTarget
	r.g.Mu.Unlock()
	require.NotNil(t, target)
	require.NotEqual(t, spy, target)
	return r, spy, target
}

func TestBountyTargetHintOnlyForSpy(t *testing.T) {
	r := newTestRoom(t, 4, time.Hour, nil)
	r.g.ChangeSetting(r.host(), "bountyHuntEnabled", true)
	r.start(t)
	spy, others := r.spyAndOthers()
	started := ofType(drain(r.connOf(spy)), "round_started")
	require.Len(t, started, 1)
	assert.Contains(t, started[0], "bountyTarget")
	for _, p := range others {
		started := ofType(drain(r.connOf(p)), "round_started")
		require.Len(t, started, 1)
		assert.NotContains(t, started[0], "bountyTarget")
	}
}

func TestBountyHitPaysOnlySpy(t *testing.T) {
	r, spy, target := roomInBountyHunt(t, time.Hour)
	role := locations.ParseRole(target.Role).Name

	r.g.SubmitBountyGuess(spy.ID, " "+r.g.location.Name+" ", role)

	assert.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for _, p := range r.players {
		if p == spy {
			assert.Equal(t, 4, p.Score)
		} else {
			assert.Equal(t, 0, p.Score)
		}
	}
}

func TestBountyMissPaysEveryActiveNonSpy(t *testing.T) {
	r, spy, target := roomInBountyHunt(t, time.Hour)
	role := locations.ParseRole(target.Role).Name

	// Right role, wrong location.
	r.g.SubmitBountyGuess(spy.ID, wrongLocation(r), role)

	assert.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for i, p := range r.players {
		switch {
		case p == spy:
			assert.Equal(t, 0, p.Score)
		case i == 4:
			assert.Equal(t, 0, p.Score, "spectators are not paid")
		default:
			assert.Equal(t, 2, p.Score)
		}
	}
	assert.Equal(t, OutcomeBountyMissed, r.g.lastResult["outcome"])
}

func TestBountyTimeoutCountsAsMiss(t *testing.T) {
	r, spy, _ := roomInBountyHunt(t, time.Millisecond)
	require.Eventually(t, func() bool { return r.g.State() == StatePostRound }, time.Second, time.Millisecond)
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 0, spy.Score)
	assert.Equal(t, OutcomeBountyMissed, r.g.lastResult["outcome"])
}

func TestBountyHuntRequiresSpyAndPlaying(t *testing.T) {
	r := newTestRoom(t, 4, time.Hour, nil)
	r.g.ChangeSetting(r.host(), "bountyHuntEnabled", true)
	r.start(t)
	_, others := r.spyAndOthers()
	r.g.DeclareBountyHunt(others[0].ID)
	assert.Equal(t, StatePlaying, r.g.State())

	r2 := newTestRoom(t, 4, time.Hour, nil)
	r2.start(t)
	spy, _ := r2.spyAndOthers()
	r2.g.DeclareBountyHunt(spy.ID)
	assert.Equal(t, StatePlaying, r2.g.State(), "bounty hunting is off by default")
}

func TestBotSpyGuessesAfterEscape(t *testing.T) {
	r := newTestRoom(t, 1, time.Millisecond, nil)
	r.g.AddBot(r.host(), "")
	r.g.AddBot(r.host(), "")
	r.g.ChangeSetting(r.host(), "voteDurationSec", float64(300))

	// Deal until a bot is the spy.
	for i := 0; i < 50; i++ {
		r.start(t)
		r.g.Mu.Lock()
		botSpy := r.g.spy.IsBot
		r.g.Mu.Unlock()
		if botSpy {
			break
		}
		r.g.ResetToLobby(r.host())
	}
	r.g.Mu.Lock()
	require.True(t, r.g.spy.IsBot)
	r.g.Mu.Unlock()

	r.g.EndRoundNow(r.host())
	r.g.SubmitVote(r.host(), nil)
	require.Eventually(t, func() bool { return r.g.State() == StatePostRound }, time.Second, time.Millisecond)
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.NotEqual(t, OutcomeCaptured, r.g.lastResult["outcome"])
}
