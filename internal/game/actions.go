// internal/game/actions.go
package game

import (
	"fmt"

	"github.com/google/uuid"
)

// HandleAction dispatches one inbound room-scoped packet from playerID. Packets
// arriving on a connection that has since been replaced are dropped.
func (g *Game) HandleAction(playerID uuid.UUID, conn *Connection, packet map[string]interface{}) {
	if !g.owns(playerID, conn) {
		g.log.WithField("player", playerID).Debug("packet from stale connection dropped")
		return
	}

	action, _ := packet["type"].(string)
	switch action {
	case "start_round":
		patch, _ := packet["settings"].(map[string]interface{})
		g.StartRound(playerID, patch)
	case "change_setting":
		key, _ := packet["key"].(string)
		g.ChangeSetting(playerID, key, packet["value"])
	case "toggle_spectator":
		g.ToggleSpectator(playerID)
	case "end_round_now":
		g.EndRoundNow(playerID)
	case "submit_vote":
		var target *uuid.UUID
		if raw, ok := packet["targetId"].(string); ok && raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				conn.WriteError("Invalid targetId")
				return
			}
			target = &id
		}
		g.SubmitVote(playerID, target)
	case "submit_spy_guess":
		location, _ := packet["location"].(string)
		g.SubmitSpyGuess(playerID, location)
	case "declare_bounty_hunt":
		g.DeclareBountyHunt(playerID)
	case "submit_bounty_guess":
		location, _ := packet["location"].(string)
		role, _ := packet["role"].(string)
		g.SubmitBountyGuess(playerID, location, role)
	case "request_next_round":
		g.NextRound(playerID)
	case "reset_to_lobby":
		g.ResetToLobby(playerID)
	case "kick_player":
		raw, _ := packet["playerId"].(string)
		target, err := uuid.Parse(raw)
		if err != nil {
			conn.WriteError("Invalid playerId")
			return
		}
		g.Kick(playerID, target)
	case "add_bot":
		name, _ := packet["name"].(string)
		g.AddBot(playerID, name)
	default:
		conn.WriteError(fmt.Sprintf("Unknown action type: %s", action))
	}
}

func (g *Game) owns(playerID uuid.UUID, conn *Connection) bool {
	g.Mu.Lock()
	defer g.Mu.Unlock()
	p := g.playerUnsafe(playerID)
	return p != nil && p.Conn == conn && !p.Disconnected
}
