// internal/bot/decider.go
package bot

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means no decision service is configured or reachable.
	ErrUnavailable = errors.New("decision service unavailable")
	// ErrRateLimited marks a throttled call; only these are retried.
	ErrRateLimited = errors.New("decision service rate limited")
	// ErrMalformedReply means the service answered with something unusable.
	ErrMalformedReply = errors.New("malformed decision reply")
)

// DistractorRequest asks for Count locations from Pool that are as unlike
// TrueLocation as possible. TrueLocation itself must not be returned.
type DistractorRequest struct {
	TrueLocation string
	Pool         []string
	Count        int
}

// Candidate is one player a bot may vote for.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VotePrompt is the context a bot votes with. Location and Role are empty
// when the bot is the spy.
type VotePrompt struct {
	Round      int
	VoterID    string
	VoterName  string
	IsSpy      bool
	Location   string
	Role       string
	Candidates []Candidate
}

// Decider is the capability the game engine needs from the external decision
// service. ChooseVote returns a candidate id, or "" to abstain.
type Decider interface {
	SuggestDistractors(ctx context.Context, req DistractorRequest) ([]string, error)
	ChooseVote(ctx context.Context, prompt VotePrompt) (string, error)
}

// Unavailable is the Decider used when no service is configured. Every call
// fails so the engine takes its local fallback.
type Unavailable struct{}

func (Unavailable) SuggestDistractors(context.Context, DistractorRequest) ([]string, error) {
	return nil, ErrUnavailable
}

func (Unavailable) ChooseVote(context.Context, VotePrompt) (string, error) {
	return "", ErrUnavailable
}
