// internal/game/connection.go
package game

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Connection is one live transport attached to a player. The transport drains
// OutChan; the engine only ever writes to it without blocking.
type Connection struct {
	ID      uuid.UUID
	OutChan chan map[string]interface{}

	mu     sync.Mutex
	closed bool
}

// NewConnection allocates a connection with a buffered outbound queue.
func NewConnection(buffer int) *Connection {
	return &Connection{
		ID:      uuid.New(),
		OutChan: make(chan map[string]interface{}, buffer),
	}
}

// Write pushes a message onto OutChan non-blockingly. Messages to a full or
// closed connection are dropped.
func (c *Connection) Write(msg map[string]interface{}) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.WithField("conn", c.ID).Warnf("outbound queue full, dropped %q", msgType)
	}
}

// WriteError sends an error object.
func (c *Connection) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

// Close ends the outbound stream. Queued messages are still delivered before
// the writer stops. Safe to call more than once.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.OutChan)
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
