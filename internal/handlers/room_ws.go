// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/jason-s-yu/spyfall/internal/lobby"
	"github.com/sirupsen/logrus"
)

const (
	roomSubprotocol = "room"
	outboundBuffer  = 64
	pingInterval    = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

// RoomWSHandler serves the single websocket endpoint players use. The first
// accepted packet must be create_room or join_room; everything after that is
// forwarded to the room engine.
func RoomWSHandler(logger *logrus.Logger, reg *lobby.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != roomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the room subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		log := logger.WithField("remote", r.RemoteAddr)
		conn := game.NewConnection(outboundBuffer)
		go writePump(ctx, c, conn, log)

		g, p := awaitSeat(ctx, c, reg, conn, log)
		if g == nil {
			conn.Close()
			return
		}
		log = log.WithFields(logrus.Fields{"room": g.Code, "player": p.ID})
		log.Info("player seated")

		readPump(ctx, c, g, p.ID, conn, log)

		// A kicked or replaced connection was already closed by the engine;
		// Disconnect ignores it in that case.
		g.Disconnect(p.ID, conn)
		log.Info("connection closed")
	}
}

// awaitSeat reads packets until one of them seats the connection in a room.
func awaitSeat(ctx context.Context, c *websocket.Conn, reg *lobby.Registry, conn *game.Connection, log *logrus.Entry) (*game.Game, *game.Player) {
	for {
		packet, err := readPacket(ctx, c, conn, log)
		if err != nil {
			return nil, nil
		}
		if packet == nil {
			continue
		}

		g, p, err := seat(reg, packet, conn)
		if err != nil {
			log.Debugf("seat rejected: %v", err)
			conn.WriteError(seatErrorMessage(err))
			continue
		}
		return g, p
	}
}

func seat(reg *lobby.Registry, packet map[string]interface{}, conn *game.Connection) (*game.Game, *game.Player, error) {
	name, _ := packet["name"].(string)
	token, _ := packet["token"].(string)
	code, _ := packet["roomCode"].(string)

	switch packet["type"] {
	case "create_room":
		if token != "" {
			if g, p, err := reg.Resume(token, "", conn); err == nil {
				return g, p, nil
			}
		}
		return reg.Create(name, conn)
	case "join_room":
		if token != "" {
			if g, p, err := reg.Resume(token, code, conn); err == nil {
				return g, p, nil
			}
		}
		return reg.Join(code, name, conn)
	default:
		return nil, nil, errNotSeated
	}
}

var errNotSeated = errors.New("create or join a room first")

func seatErrorMessage(err error) string {
	switch {
	case errors.Is(err, lobby.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, game.ErrRoomFull):
		return "Room is full."
	case errors.Is(err, game.ErrNameTaken):
		return "That name is already taken in this room."
	case errors.Is(err, game.ErrInvalidName):
		return "Name must be 1-24 characters."
	case errors.Is(err, game.ErrRoomClosed):
		return "Room is closed."
	case errors.Is(err, errNotSeated):
		return "Create or join a room first."
	default:
		return "Could not join the room."
	}
}

// readPump forwards packets to the room until the socket or conn closes.
func readPump(ctx context.Context, c *websocket.Conn, g *game.Game, playerID uuid.UUID, conn *game.Connection, log *logrus.Entry) {
	for {
		packet, err := readPacket(ctx, c, conn, log)
		if err != nil {
			return
		}
		if packet == nil {
			continue
		}
		if conn.Closed() {
			return
		}
		g.HandleAction(playerID, conn, packet)
	}
}

// readPacket returns the next JSON object from c. A nil packet with a nil
// error means the frame was skipped.
func readPacket(ctx context.Context, c *websocket.Conn, conn *game.Connection, log *logrus.Entry) (map[string]interface{}, error) {
	typ, msg, err := c.Read(ctx)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
			log.Debugf("read error: %v (CloseStatus: %d)", err, status)
		}
		return nil, err
	}
	if typ != websocket.MessageText {
		log.Debugf("ignoring non-text message type %d", typ)
		return nil, nil
	}

	var packet map[string]interface{}
	if err := json.Unmarshal(msg, &packet); err != nil {
		conn.WriteError("Invalid JSON format")
		return nil, nil
	}
	return packet, nil
}

// writePump drains conn.OutChan to the socket and pings periodically. It
// closes the socket once the engine closes conn.
func writePump(ctx context.Context, c *websocket.Conn, conn *game.Connection, log *logrus.Entry) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	kicked := false
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				if kicked {
					c.Close(KickedError, "kicked by host")
				} else {
					c.Close(websocket.StatusNormalClosure, "connection closed by server")
				}
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				log.Warnf("failed to marshal outgoing %v: %v", msg["type"], err)
				continue
			}
			kicked = kicked || msg["type"] == "kicked"

			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				log.Debugf("failed to write to websocket: %v", err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debugf("ping failed: %v", err)
				return
			}
		}
	}
}
