// internal/lobby/lobby_store.go
package lobby

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/spyfall/internal/auth"
	"github.com/jason-s-yu/spyfall/internal/game"
	"github.com/sirupsen/logrus"
)

var (
	// ErrRoomNotFound is returned for a code that names no live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNoSession is returned when a token maps to no live identity.
	ErrNoSession = errors.New("no session for token")
)

// Session is the identity a token re-attaches to.
type Session struct {
	Code     string
	PlayerID uuid.UUID
}

// Registry tracks live rooms by code and session tokens by digest.
// It never calls into a Game while holding its own lock; games call back
// into the registry (OnPlayerRemoved) after releasing theirs.
type Registry struct {
	mu       sync.Mutex
	rooms    map[string]*game.Game
	sessions map[string]Session

	newGame func(code string) *game.Game
	signer  *auth.Signer
	log     *logrus.Entry
}

// NewRegistry returns an empty registry. newGame builds the engine for a
// freshly allocated code.
func NewRegistry(signer *auth.Signer, newGame func(code string) *game.Game, log *logrus.Entry) *Registry {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Registry{
		rooms:    make(map[string]*game.Game),
		sessions: make(map[string]Session),
		newGame:  newGame,
		signer:   signer,
		log:      log,
	}
}

// Create allocates a room code, builds the room and seats name as its host.
func (r *Registry) Create(name string, conn *game.Connection) (*game.Game, *game.Player, error) {
	r.mu.Lock()
	code, err := r.uniqueCodeUnsafe()
	if err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}
	g := r.newGame(code)
	g.OnPlayerRemoved = r.forget
	r.rooms[code] = g
	r.mu.Unlock()

	p, err := r.seat(g, name, conn)
	if err != nil {
		r.drop(code)
		return nil, nil, err
	}
	r.log.WithField("room", code).Info("room created")
	return g, p, nil
}

// Join seats a brand-new identity in the room named by code.
func (r *Registry) Join(code, name string, conn *game.Connection) (*game.Game, *game.Player, error) {
	g, ok := r.Get(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	p, err := r.seat(g, name, conn)
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

func (r *Registry) seat(g *game.Game, name string, conn *game.Connection) (*game.Player, error) {
	id := uuid.New()
	token, err := r.signer.Issue(id, g.Code)
	if err != nil {
		return nil, fmt.Errorf("issuing session token: %w", err)
	}
	digest := auth.TokenDigest(token)

	r.mu.Lock()
	r.sessions[digest] = Session{Code: g.Code, PlayerID: id}
	r.mu.Unlock()

	p, err := g.Join(id, name, token, conn)
	if err != nil {
		r.mu.Lock()
		delete(r.sessions, digest)
		r.mu.Unlock()
		return nil, err
	}
	return p, nil
}

// Resume re-attaches the identity behind token to conn. If code is not
// empty the token must belong to that room.
func (r *Registry) Resume(token, code string, conn *game.Connection) (*game.Game, *game.Player, error) {
	id, room, err := r.signer.Parse(token)
	if err != nil {
		return nil, nil, err
	}
	if code != "" && !strings.EqualFold(code, room) {
		return nil, nil, ErrNoSession
	}

	digest := auth.TokenDigest(token)
	r.mu.Lock()
	sess, ok := r.sessions[digest]
	g := r.rooms[sess.Code]
	r.mu.Unlock()
	if !ok || sess.PlayerID != id || g == nil {
		return nil, nil, ErrNoSession
	}

	p, err := g.Reconnect(id, token, conn)
	if errors.Is(err, game.ErrNotInRoom) || errors.Is(err, game.ErrRoomClosed) {
		r.mu.Lock()
		delete(r.sessions, digest)
		r.mu.Unlock()
		return nil, nil, ErrNoSession
	}
	if err != nil {
		return nil, nil, err
	}
	return g, p, nil
}

// Get looks a room up by code, case-insensitively.
func (r *Registry) Get(code string) (*game.Game, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.rooms[strings.ToUpper(strings.TrimSpace(code))]
	return g, ok
}

// Len returns the number of live rooms.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// forget removes every session of playerID in room code.
func (r *Registry) forget(code string, playerID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, s := range r.sessions {
		if s.Code == code && s.PlayerID == playerID {
			delete(r.sessions, k)
		}
	}
}

// drop removes a room and all of its sessions.
func (r *Registry) drop(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rooms, code)
	for k, s := range r.sessions {
		if s.Code == code {
			delete(r.sessions, k)
		}
	}
}
