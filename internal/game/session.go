// internal/game/session.go
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxNameLen {
		return "", ErrInvalidName
	}
	return name, nil
}

func (g *Game) nameTakenUnsafe(name string) bool {
	for _, p := range g.players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

// Join seats a new identity. The first player creates the room and becomes
// host; anyone joining a room mid-game waits for the next round. The welcome
// message carries token so the client can reconnect later.
func (g *Game) Join(id uuid.UUID, name, token string, conn *Connection) (*Player, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.closed {
		return nil, ErrRoomClosed
	}
	if len(g.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if g.nameTakenUnsafe(name) {
		return nil, ErrNameTaken
	}

	p := &Player{ID: id, Name: name, Conn: conn}
	welcome := "join_success"
	if len(g.players) == 0 {
		welcome = "room_created"
		p.IsHost = true
	}
	if g.state != StateLobby {
		p.Spectator = Waiting
	}
	g.players = append(g.players, p)
	g.abandonedSince = time.Time{}

	g.log.WithField("player", id).Infof("%s joined", name)
	g.sendToUnsafe(p, g.welcomeUnsafe(welcome, p, token))
	g.ensureHostUnsafe()
	g.rosterUpdateUnsafe()
	if g.state != StateLobby {
		g.replayUnsafe(p)
	}
	return p, nil
}

// Reconnect re-attaches conn to an existing identity, replacing any older
// connection, and replays the current phase to it.
func (g *Game) Reconnect(id uuid.UUID, token string, conn *Connection) (*Player, error) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.closed {
		return nil, ErrRoomClosed
	}
	p := g.playerUnsafe(id)
	if p == nil || p.IsBot {
		return nil, ErrNotInRoom
	}
	if p.Conn != nil && p.Conn != conn {
		p.Conn.Close()
	}
	wasDisconnected := p.Disconnected
	p.Conn = conn
	p.Disconnected = false
	p.DisconnectedAt = time.Time{}
	g.abandonedSince = time.Time{}

	g.log.WithField("player", id).Infof("%s reconnected", p.Name)
	g.sendToUnsafe(p, g.welcomeUnsafe("join_success", p, token))
	if wasDisconnected {
		g.broadcastExceptUnsafe(p, map[string]interface{}{
			"type":     "player_reconnected",
			"playerId": p.ID,
			"name":     p.Name,
		})
	}
	g.ensureHostUnsafe()
	g.rosterUpdateUnsafe()
	if g.state != StateLobby {
		g.replayUnsafe(p)
	}
	return p, nil
}

func (g *Game) welcomeUnsafe(kind string, p *Player, token string) map[string]interface{} {
	return map[string]interface{}{
		"type":     kind,
		"roomCode": g.Code,
		"playerId": p.ID,
		"name":     p.Name,
		"token":    token,
		"isHost":   p.IsHost,
	}
}

// Disconnect marks the player behind conn as gone. A conn that was already
// replaced by a reconnect is ignored.
func (g *Game) Disconnect(id uuid.UUID, conn *Connection) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.playerUnsafe(id)
	if p == nil || p.Conn != conn || p.Disconnected {
		return
	}
	p.Conn = nil
	p.Disconnected = true
	p.DisconnectedAt = g.now()
	conn.Close()

	g.log.WithField("player", id).Infof("%s disconnected", p.Name)
	g.broadcastUnsafe(map[string]interface{}{
		"type":     "player_disconnected",
		"playerId": p.ID,
		"name":     p.Name,
	})
	if p.IsHost {
		g.migrateHostUnsafe()
	}
	g.markAbandonedUnsafe()
	g.rosterUpdateUnsafe()
	g.checkVoteCompleteUnsafe()
}

func (g *Game) markAbandonedUnsafe() {
	for _, p := range g.players {
		if !p.IsBot && !p.Disconnected {
			return
		}
	}
	if g.abandonedSince.IsZero() {
		g.abandonedSince = g.now()
	}
}

// AbandonedFor reports how long every human player has been disconnected,
// or zero if anyone is still here.
func (g *Game) AbandonedFor(now time.Time) time.Duration {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.abandonedSince.IsZero() {
		return 0
	}
	return now.Sub(g.abandonedSince)
}

// eligibleHost reports whether p may hold the host role.
func eligibleHost(p *Player) bool {
	return !p.Disconnected && !p.IsBot && p.Spectator == Active
}

// migrateHostUnsafe hands the host role to the first eligible player, or to
// nobody. Assumes lock is held.
func (g *Game) migrateHostUnsafe() {
	for _, p := range g.players {
		p.IsHost = false
	}
	g.ensureHostUnsafe()
}

// ensureHostUnsafe assigns a host if there is none and someone is eligible.
func (g *Game) ensureHostUnsafe() {
	if g.hostUnsafe() != nil {
		return
	}
	for _, p := range g.players {
		if eligibleHost(p) {
			p.IsHost = true
			g.log.WithField("player", p.ID).Infof("%s is now host", p.Name)
			g.broadcastUnsafe(map[string]interface{}{
				"type":     "host_changed",
				"playerId": p.ID,
				"name":     p.Name,
			})
			return
		}
	}
}

// ToggleSpectator flips a player between playing and watching. Mid-round an
// active player cannot leave; spectators instead queue for the next round.
func (g *Game) ToggleSpectator(id uuid.UUID) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.playerUnsafe(id)
	if p == nil || p.IsBot {
		return
	}
	if g.roundOpenUnsafe() || g.starting {
		switch p.Spectator {
		case Spectating:
			p.Spectator = Waiting
		case Waiting:
			p.Spectator = Spectating
		default:
			g.log.WithField("player", id).Debug("active player cannot spectate mid-round")
			return
		}
	} else {
		switch p.Spectator {
		case Active:
			p.Spectator = Spectating
		case Waiting:
			if g.state == StateLobby {
				p.Spectator = Active
			} else {
				p.Spectator = Spectating
			}
		default:
			p.Spectator = Active
		}
	}
	if p.IsHost && !eligibleHost(p) {
		g.migrateHostUnsafe()
	} else {
		g.ensureHostUnsafe()
	}
	g.rosterUpdateUnsafe()
}

// AddBot seats an automated player. Host only, lobby only.
func (g *Game) AddBot(actor uuid.UUID, name string) {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.state != StateLobby || !g.isHostUnsafe(actor) {
		g.log.WithField("player", actor).Debug("add_bot ignored")
		return
	}
	if len(g.players) >= MaxPlayers {
		g.sendErrorUnsafe(actor, ErrRoomFull.Error())
		return
	}
	if strings.TrimSpace(name) == "" {
		for n := 1; ; n++ {
			name = fmt.Sprintf("Bot %d", n)
			if !g.nameTakenUnsafe(name) {
				break
			}
		}
	}
	name, err := normalizeName(name)
	if err != nil {
		g.sendErrorUnsafe(actor, err.Error())
		return
	}
	if g.nameTakenUnsafe(name) {
		g.sendErrorUnsafe(actor, ErrNameTaken.Error())
		return
	}
	g.players = append(g.players, &Player{ID: uuid.New(), Name: name, IsBot: true})
	g.rosterUpdateUnsafe()
}

// Kick removes target from the room. Host only, never the host itself.
func (g *Game) Kick(actor, target uuid.UUID) {
	g.Mu.Lock()
	if !g.isHostUnsafe(actor) || actor == target {
		g.Mu.Unlock()
		return
	}
	p := g.playerUnsafe(target)
	if p == nil {
		g.Mu.Unlock()
		return
	}

	for i, q := range g.players {
		if q == p {
			g.players = append(g.players[:i], g.players[i+1:]...)
			break
		}
	}
	g.sendToUnsafe(p, map[string]interface{}{
		"type":    "kicked",
		"message": "You were removed from the room by the host.",
	})
	p.Conn.Close()
	p.Conn = nil
	g.log.WithField("player", target).Infof("%s was kicked", p.Name)

	switch {
	case p == g.spy && g.roundOpenUnsafe():
		g.closeRoundUnsafe(OutcomeSpyLeft, fmt.Sprintf(
			"The spy %s left the game. No points this round.", p.Name))
	case p == g.bountyTarget && g.state == StatePlaying:
		g.bountyTarget = nil
	}
	if g.state == StateVoting {
		g.dropVoterUnsafe(target)
	}
	if p.IsHost {
		g.migrateHostUnsafe()
	}
	g.markAbandonedUnsafe()
	g.rosterUpdateUnsafe()
	g.checkVoteCompleteUnsafe()

	onRemoved := g.OnPlayerRemoved
	g.Mu.Unlock()

	if onRemoved != nil {
		onRemoved(g.Code, target)
	}
}

func (g *Game) dropVoterUnsafe(id uuid.UUID) {
	g.voters = removeID(g.voters, id)
	g.candidates = removeID(g.candidates, id)
	delete(g.votes, id)
	g.broadcastUnsafe(g.voteProgressUnsafe())
}

func removeID(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

// Teardown closes every connection and stops all timers. The room accepts
// nothing afterwards.
func (g *Game) Teardown() {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.cancelTimersUnsafe()
	g.seq++
	for _, p := range g.players {
		p.Conn.Close()
		p.Conn = nil
	}
	g.log.Info("room torn down")
}

// PlayerIDs returns every seated player id.
func (g *Game) PlayerIDs() []uuid.UUID {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	ids := make([]uuid.UUID, 0, len(g.players))
	for _, p := range g.players {
		ids = append(ids, p.ID)
	}
	return ids
}

// replayUnsafe sends p whatever a client needs to render the current phase.
// Assumes lock is held.
func (g *Game) replayUnsafe(p *Player) {
	switch g.state {
	case StateLobby:
		g.sendToUnsafe(p, map[string]interface{}{
			"type":     "roster_update",
			"players":  g.rosterUnsafe(),
			"settings": g.settings.clone(),
			"state":    g.state,
		})
	case StatePlaying:
		g.sendToUnsafe(p, g.roundStartedUnsafe(p))
		g.sendToUnsafe(p, map[string]interface{}{
			"type":      "timer_tick",
			"remaining": g.remaining,
			"players":   g.rosterUnsafe(),
		})
	case StateVoting:
		g.sendToUnsafe(p, g.roundStartedUnsafe(p))
		g.sendToUnsafe(p, g.voteOpenedUnsafe())
		g.sendToUnsafe(p, g.voteProgressUnsafe())
	case StateSpyGuessing:
		if p == g.spy {
			g.sendToUnsafe(p, g.spyGuessOpenedUnsafe("Welcome back."))
		} else {
			g.sendToUnsafe(p, map[string]interface{}{
				"type":      "waiting_for_spy",
				"spyName":   g.spy.Name,
				"duration":  specialPhaseSeconds,
				"remaining": g.remainingUnsafe(),
			})
		}
	case StateBountyHunting:
		if p == g.spy {
			g.sendToUnsafe(p, g.bountyOpenedUnsafe())
		} else {
			g.sendToUnsafe(p, g.waitingForBountyUnsafe())
		}
	case StatePostRound:
		if g.lastResult != nil {
			g.sendToUnsafe(p, g.lastResult)
		}
	}
}
