// internal/game/models.go
package game

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// State is the room's position in the round lifecycle.
type State string

const (
	StateLobby         State = "lobby"
	StatePlaying       State = "playing"
	StateVoting        State = "voting"
	StateSpyGuessing   State = "spy-guessing"
	StateBountyHunting State = "bounty-hunting"
	StatePostRound     State = "post-round"
)

const (
	citizenRole        = "citizen"
	minPlayersPerRound = 3
)

// SpectatorState is "" for an active player, "spectator", or "waiting" for a
// player that becomes active at the next round start.
type SpectatorState string

const (
	Active     SpectatorState = ""
	Spectating SpectatorState = "spectator"
	Waiting    SpectatorState = "waiting"
)

// MarshalJSON encodes the wire form: false, true, or "waiting".
func (s SpectatorState) MarshalJSON() ([]byte, error) {
	switch s {
	case Spectating:
		return []byte("true"), nil
	case Waiting:
		return []byte(`"waiting"`), nil
	default:
		return []byte("false"), nil
	}
}

// UnmarshalJSON accepts the same three wire forms.
func (s *SpectatorState) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		if t {
			*s = Spectating
		} else {
			*s = Active
		}
	case string:
		if t == string(Waiting) {
			*s = Waiting
		} else {
			*s = Active
		}
	default:
		*s = Active
	}
	return nil
}

// Player is one identity in a room. ID survives reconnects; Conn is replaced.
type Player struct {
	ID             uuid.UUID
	Name           string
	IsHost         bool
	Score          int
	Spectator      SpectatorState
	Disconnected   bool
	DisconnectedAt time.Time
	Role           string // raw role string for the current round, "" when unset
	IsBot          bool

	Conn *Connection
}

// Active reports whether the player takes part in a round starting now.
func (p *Player) Active() bool {
	return p.Spectator == Active && !p.Disconnected
}

// PlayerView is the public roster entry. It never carries the role.
type PlayerView struct {
	ID           uuid.UUID      `json:"id"`
	Name         string         `json:"name"`
	IsHost       bool           `json:"isHost"`
	Score        int            `json:"score"`
	IsSpectator  SpectatorState `json:"isSpectator"`
	Disconnected bool           `json:"disconnected"`
	IsBot        bool           `json:"isBot"`
}

func (p *Player) view() PlayerView {
	return PlayerView{
		ID:           p.ID,
		Name:         p.Name,
		IsHost:       p.IsHost,
		Score:        p.Score,
		IsSpectator:  p.Spectator,
		Disconnected: p.Disconnected,
		IsBot:        p.IsBot,
	}
}

// Outcome labels how a round closed.
type Outcome string

const (
	OutcomeCaptured     Outcome = "captured"
	OutcomeSpyEscaped   Outcome = "spy_escaped"
	OutcomeSpyGuessed   Outcome = "spy_guessed"
	OutcomeBountyHit    Outcome = "bounty_success"
	OutcomeBountyMissed Outcome = "bounty_failed"
	OutcomeSpyLeft      Outcome = "spy_left"
)

// RoundRecord is the summary handed to a Recorder when a round closes.
type RoundRecord struct {
	Room     string         `json:"room"`
	Round    int            `json:"round"`
	Location string         `json:"location"`
	SpyID    uuid.UUID      `json:"spyId"`
	SpyName  string         `json:"spyName"`
	Outcome  Outcome        `json:"outcome"`
	Scores   map[string]int `json:"scores"`
	ClosedAt time.Time      `json:"closedAt"`
}
