// internal/game/vote_test.go
package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyVotes(t *testing.T) {
	spy, a, b, c := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	tl := tallyVotes(map[uuid.UUID]*uuid.UUID{a: ptr(spy), b: ptr(spy), c: ptr(a)}, spy)
	assert.True(t, tl.Captured)
	assert.Equal(t, 2, tl.Max)

	tl = tallyVotes(map[uuid.UUID]*uuid.UUID{a: ptr(spy), b: ptr(c)}, spy)
	assert.False(t, tl.Captured, "a tie never captures")
	assert.Len(t, tl.Leaders, 2)

	tl = tallyVotes(map[uuid.UUID]*uuid.UUID{a: ptr(c), b: ptr(c), c: ptr(spy)}, spy)
	assert.False(t, tl.Captured, "non-spy plurality")

	tl = tallyVotes(map[uuid.UUID]*uuid.UUID{a: nil, b: nil}, spy)
	assert.False(t, tl.Captured, "no votes")
	assert.Empty(t, tl.Leaders)
}

// roomInVoting deals a round to n players and opens the vote.
func roomInVoting(t *testing.T, n int) (*testRoom, *Player, []*Player) {
	t.Helper()
	r := newTestRoom(t, n, time.Hour, nil)
	r.start(t)
	r.g.EndRoundNow(r.host())
	require.Equal(t, StateVoting, r.g.State())
	spy, others := r.spyAndOthers()
	return r, spy, others
}

func TestCaptureAwardsCorrectVoters(t *testing.T) {
	r, spy, others := roomInVoting(t, 3)
	a, b := others[0], others[1]

	r.g.SubmitVote(a.ID, ptr(spy.ID))
	r.g.SubmitVote(b.ID, ptr(spy.ID))
	assert.Equal(t, StateVoting, r.g.State())
	r.g.SubmitVote(spy.ID, ptr(a.ID))

	assert.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, a.Score)
	assert.Equal(t, 1, b.Score)
	assert.Equal(t, 0, spy.Score)
	assert.Equal(t, OutcomeCaptured, r.g.lastResult["outcome"])
}

func TestResolveVotesIsIdempotent(t *testing.T) {
	r, spy, others := roomInVoting(t, 4)
	for _, p := range others {
		r.g.SubmitVote(p.ID, ptr(spy.ID))
	}
	require.Equal(t, StateVoting, r.g.State(), "the spy has not voted yet")

	r.g.Mu.Lock()
	r.g.resolveVotesUnsafe()
	r.g.resolveVotesUnsafe()
	r.g.Mu.Unlock()

	// The late vote and the window timer find the vote already resolved.
	r.g.SubmitVote(spy.ID, ptr(others[0].ID))
	r.g.Mu.Lock()
	r.g.resolveVotesUnsafe()
	r.g.Mu.Unlock()

	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for _, p := range others {
		assert.Equal(t, 1, p.Score)
	}
	assert.Equal(t, StatePostRound, r.g.state)
}

func TestTieLetsSpyEscape(t *testing.T) {
	r, spy, others := roomInVoting(t, 4)
	a, b, c := others[0], others[1], others[2]
	r.g.SubmitVote(a.ID, ptr(spy.ID))
	r.g.SubmitVote(spy.ID, ptr(a.ID))
	r.g.SubmitVote(b.ID, ptr(c.ID))
	r.g.SubmitVote(c.ID, ptr(b.ID))

	assert.Equal(t, StateSpyGuessing, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, spy.Score)
	assert.Equal(t, []int{0, 0, 0}, scores(others))
}

func TestWrongAccusationLetsSpyEscape(t *testing.T) {
	r, spy, others := roomInVoting(t, 3)
	a, b := others[0], others[1]
	r.g.SubmitVote(spy.ID, ptr(a.ID))
	r.g.SubmitVote(b.ID, ptr(a.ID))
	r.g.SubmitVote(a.ID, ptr(spy.ID))

	assert.Equal(t, StateSpyGuessing, r.g.State())
	msgs := ofType(drain(r.connOf(a)), "waiting_for_spy")
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0]["message"], "accused "+a.Name)
}

func TestNoVotesLetsSpyEscape(t *testing.T) {
	r, spy, others := roomInVoting(t, 3)
	r.g.SubmitVote(spy.ID, nil)
	for _, p := range others {
		r.g.SubmitVote(p.ID, nil)
	}
	assert.Equal(t, StateSpyGuessing, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, spy.Score)
}

func TestSelfVoteRejected(t *testing.T) {
	r, _, others := roomInVoting(t, 3)
	a := others[0]
	drain(r.connOf(a))

	r.g.SubmitVote(a.ID, ptr(a.ID))

	r.g.Mu.Lock()
	_, voted := r.g.votes[a.ID]
	r.g.Mu.Unlock()
	assert.False(t, voted)
	assert.Len(t, ofType(drain(r.connOf(a)), "error"), 1)
}

func TestDuplicateVoteIgnored(t *testing.T) {
	r, spy, others := roomInVoting(t, 4)
	a := others[0]
	r.g.SubmitVote(a.ID, ptr(spy.ID))
	r.g.SubmitVote(a.ID, ptr(others[1].ID))

	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, spy.ID, *r.g.votes[a.ID])
	assert.Len(t, r.g.votes, 1)
}

func TestVoteOutsideVotingIgnored(t *testing.T) {
	r := newTestRoom(t, 3, time.Hour, nil)
	r.start(t)
	r.g.SubmitVote(r.players[1].ID, ptr(r.players[2].ID))
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Empty(t, r.g.votes)
}

func TestDisconnectedVotersDoNotBlockResolution(t *testing.T) {
	r, spy, others := roomInVoting(t, 4)
	r.g.Disconnect(others[2].ID, r.connOf(others[2]))
	r.g.SubmitVote(others[0].ID, ptr(spy.ID))
	r.g.SubmitVote(others[1].ID, ptr(spy.ID))
	r.g.SubmitVote(spy.ID, nil)
	assert.Equal(t, StatePostRound, r.g.State())
}

func TestDisconnectedSpyCanStillBeCaptured(t *testing.T) {
	r := newTestRoom(t, 4, time.Hour, nil)
	r.start(t)
	spy, others := r.spyAndOthers()
	r.g.Disconnect(spy.ID, r.connOf(spy))

	r.g.Mu.Lock()
	var host uuid.UUID
	for _, p := range r.g.players {
		if p.IsHost {
			host = p.ID
		}
	}
	r.g.Mu.Unlock()
	r.g.EndRoundNow(host)
	require.Equal(t, StateVoting, r.g.State())

	opened := ofType(drain(r.connOf(others[0])), "vote_opened")
	require.NotEmpty(t, opened)
	var ids []uuid.UUID
	for _, c := range opened[len(opened)-1]["candidates"].([]map[string]interface{}) {
		ids = append(ids, c["id"].(uuid.UUID))
	}
	assert.Contains(t, ids, spy.ID)

	for _, p := range others {
		r.g.SubmitVote(p.ID, ptr(spy.ID))
	}

	require.Equal(t, StatePostRound, r.g.State())
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, OutcomeCaptured, r.g.lastResult["outcome"])
	assert.Equal(t, []int{1, 1, 1}, scores(others))
	assert.Equal(t, 0, spy.Score)
	assert.False(t, r.g.isVoterUnsafe(spy.ID), "a disconnected spy does not vote")
}

func TestVoteProgressBroadcast(t *testing.T) {
	r, spy, others := roomInVoting(t, 3)
	drain(r.conns[0])
	r.g.SubmitVote(others[0].ID, ptr(spy.ID))
	progress := ofType(drain(r.conns[0]), "vote_progress")
	require.Len(t, progress, 1)
	assert.Equal(t, 3, progress[0]["total"])
	assert.Equal(t, []uuid.UUID{others[0].ID}, progress[0]["voterIds"])
}

func TestVoteWindowForcesResolution(t *testing.T) {
	r := newTestRoom(t, 3, time.Millisecond, nil)
	r.g.ChangeSetting(r.host(), "voteDurationSec", float64(10))
	r.start(t)
	r.g.EndRoundNow(r.host())
	require.Equal(t, StateVoting, r.g.State())

	require.Eventually(t, func() bool { return r.g.State() != StateVoting }, time.Second, time.Millisecond)
	spy, _ := r.spyAndOthers()
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	assert.Equal(t, 1, spy.Score, "nobody voted, so the spy escaped")
}

func TestBotsVoteThroughDecider(t *testing.T) {
	d := &fakeDecider{}
	r := newTestRoom(t, 1, time.Millisecond, d)
	r.g.AddBot(r.host(), "")
	r.g.AddBot(r.host(), "")
	r.g.ChangeSetting(r.host(), "voteDurationSec", float64(300))
	r.start(t)

	spy, _ := r.spyAndOthers()
	// Every bot accuses the spy unless it is the spy.
	d.vote = func(p bot.VotePrompt) (string, error) {
		if p.IsSpy {
			return "", nil
		}
		return spy.ID.String(), nil
	}
	r.g.EndRoundNow(r.host())
	r.g.SubmitVote(r.host(), nil)

	require.Eventually(t, func() bool { return r.g.State() != StateVoting }, time.Second, time.Millisecond)
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for _, p := range r.g.players {
		if p.IsBot && p != spy {
			assert.Equal(t, 1, p.Score)
		}
	}
}

func TestBotVoteFailureAbstains(t *testing.T) {
	r := newTestRoom(t, 1, time.Millisecond, nil)
	r.g.AddBot(r.host(), "Robo")
	r.g.AddBot(r.host(), "Droid")
	r.g.ChangeSetting(r.host(), "voteDurationSec", float64(300))
	r.start(t)
	r.g.EndRoundNow(r.host())

	require.Eventually(t, func() bool {
		r.g.Mu.Lock()
		defer r.g.Mu.Unlock()
		return len(r.g.votes) == 2 || r.g.state != StateVoting
	}, time.Second, time.Millisecond)
	r.g.Mu.Lock()
	defer r.g.Mu.Unlock()
	for id, target := range r.g.votes {
		if r.g.playerUnsafe(id).IsBot {
			assert.Nil(t, target)
		}
	}
}
