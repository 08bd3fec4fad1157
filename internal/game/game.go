// internal/game/game.go
package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/bot"
	"github.com/jason-s-yu/spyfall/internal/locations"
	"github.com/sirupsen/logrus"
)

const (
	// MaxPlayers bounds the roster of one room, bots included.
	MaxPlayers = 16
	maxNameLen = 24

	spyRole             = "spy"
	specialPhaseSeconds = 60
)

var (
	ErrRoomClosed  = errors.New("room is closed")
	ErrRoomFull    = errors.New("room is full")
	ErrInvalidName = errors.New("name must be 1-24 characters")
	ErrNameTaken   = errors.New("name already taken in this room")
	ErrNotInRoom   = errors.New("player is not in this room")
)

// Recorder receives a summary of every closed round.
type Recorder interface {
	RecordRound(ctx context.Context, rec RoundRecord) error
}

// Config carries the collaborators of a Game. Only Dataset is required.
type Config struct {
	Dataset  *locations.Dataset
	Decider  bot.Decider
	Recorder Recorder
	Logger   *logrus.Entry
	Rand     *rand.Rand

	// TimeUnit is the length of one game second. Tests shrink it.
	TimeUnit        time.Duration
	DecisionTimeout time.Duration
	Now             func() time.Time
}

// Game is the aggregate for one room: roster, settings, and the round state
// machine. Every field below Mu is guarded by it.
type Game struct {
	Code string

	// OnPlayerRemoved is called when a player is kicked, so the registry can
	// forget its session.
	OnPlayerRemoved func(code string, playerID uuid.UUID)

	Mu sync.Mutex

	players  []*Player
	state    State
	settings Settings

	currentRound    int
	deck            *locations.Deck
	location        *locations.Location
	spy             *Player
	bountyTarget    *Player
	votes           map[uuid.UUID]*uuid.UUID
	voters          []uuid.UUID
	candidates      []uuid.UUID
	spyLocationList []string

	resultsCalculated bool
	guessSubmitted    bool
	starting          bool
	closed            bool

	// seq changes whenever a round begins or the room resets, so work that
	// ran without the lock can tell it has gone stale.
	seq            int
	remaining      int
	voteReason     string
	phaseDeadline  time.Time
	lastResult     map[string]interface{}
	abandonedSince time.Time

	timerGen int
	timers   []*time.Timer

	ds              *locations.Dataset
	decider         bot.Decider
	recorder        Recorder
	log             *logrus.Entry
	rng             *rand.Rand
	unit            time.Duration
	decisionTimeout time.Duration
	now             func() time.Time
}

// New creates a room in the lobby state with default settings.
func New(code string, cfg Config) *Game {
	g := &Game{
		Code:            code,
		state:           StateLobby,
		settings:        DefaultSettings(),
		ds:              cfg.Dataset,
		decider:         cfg.Decider,
		recorder:        cfg.Recorder,
		log:             cfg.Logger,
		rng:             cfg.Rand,
		unit:            cfg.TimeUnit,
		decisionTimeout: cfg.DecisionTimeout,
		now:             cfg.Now,
	}
	if g.decider == nil {
		g.decider = bot.Unavailable{}
	}
	if g.log == nil {
		g.log = logrus.NewEntry(logrus.StandardLogger())
	}
	g.log = g.log.WithField("room", code)
	if g.rng == nil {
		g.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if g.unit <= 0 {
		g.unit = time.Second
	}
	if g.decisionTimeout <= 0 {
		g.decisionTimeout = 8 * time.Second
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.ds == nil {
		g.ds = locations.NewDataset(nil)
	}
	g.deck = locations.NewDeck(g.ds, g.settings.Themes, g.rng)
	return g
}

// State returns the current lifecycle state.
func (g *Game) State() State {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.state
}

// Settings returns a copy of the room settings.
func (g *Game) Settings() Settings {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.settings.clone()
}

// Roster returns the public view of every player in roster order.
func (g *Game) Roster() []PlayerView {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.rosterUnsafe()
}

// HasPlayer reports whether id is seated in the room.
func (g *Game) HasPlayer(id uuid.UUID) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.playerUnsafe(id) != nil
}

// Closed reports whether the room has been torn down.
func (g *Game) Closed() bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	return g.closed
}

// playerUnsafe looks a player up by id. Assumes lock is held.
func (g *Game) playerUnsafe(id uuid.UUID) *Player {
	for _, p := range g.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (g *Game) rosterUnsafe() []PlayerView {
	out := make([]PlayerView, 0, len(g.players))
	for _, p := range g.players {
		out = append(out, p.view())
	}
	return out
}

// activePlayersUnsafe returns players that would take part in a round
// starting now, in roster order.
func (g *Game) activePlayersUnsafe() []*Player {
	var out []*Player
	for _, p := range g.players {
		if p.Active() {
			out = append(out, p)
		}
	}
	return out
}

// hostUnsafe returns the current host or nil.
func (g *Game) hostUnsafe() *Player {
	for _, p := range g.players {
		if p.IsHost {
			return p
		}
	}
	return nil
}

func (g *Game) isHostUnsafe(id uuid.UUID) bool {
	p := g.playerUnsafe(id)
	return p != nil && p.IsHost
}

// roundOpenUnsafe reports whether a round has been dealt and not yet closed.
func (g *Game) roundOpenUnsafe() bool {
	switch g.state {
	case StatePlaying, StateVoting, StateSpyGuessing, StateBountyHunting:
		return true
	}
	return false
}

// broadcastUnsafe sends msg to every connected player. Assumes lock is held.
func (g *Game) broadcastUnsafe(msg map[string]interface{}) {
	for _, p := range g.players {
		if p.Conn != nil && !p.Disconnected {
			p.Conn.Write(msg)
		}
	}
}

// broadcastExceptUnsafe sends msg to every connected player but skip.
func (g *Game) broadcastExceptUnsafe(skip *Player, msg map[string]interface{}) {
	for _, p := range g.players {
		if p != skip && p.Conn != nil && !p.Disconnected {
			p.Conn.Write(msg)
		}
	}
}

func (g *Game) sendToUnsafe(p *Player, msg map[string]interface{}) {
	if p != nil && p.Conn != nil && !p.Disconnected {
		p.Conn.Write(msg)
	}
}

func (g *Game) sendErrorUnsafe(id uuid.UUID, text string) {
	g.sendToUnsafe(g.playerUnsafe(id), map[string]interface{}{
		"type":    "error",
		"message": text,
	})
}

func (g *Game) rosterUpdateUnsafe() {
	g.broadcastUnsafe(map[string]interface{}{
		"type":     "roster_update",
		"players":  g.rosterUnsafe(),
		"settings": g.settings.clone(),
		"state":    g.state,
	})
}

// remainingUnsafe converts the armed phase deadline to whole game seconds.
func (g *Game) remainingUnsafe() int {
	if g.state == StatePlaying {
		return g.remaining
	}
	left := g.phaseDeadline.Sub(g.now())
	if left <= 0 {
		return 0
	}
	secs := int(left / g.unit)
	if left%g.unit != 0 {
		secs++
	}
	return secs
}

func (g *Game) seconds(n int) time.Duration {
	return time.Duration(n) * g.unit
}
