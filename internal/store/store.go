// Package store owns the authoritative Room/Session/Game tables. It
// is the only shared mutable resource in the system (spec.md §5): a
// single mutex around plain maps is sufficient because the hub
// serializes every multi-step sequence itself and only ever needs
// per-call atomicity from the store, matching spec.md §4.C's
// concurrency contract and generalizing the original Rust
// `Database` trait / `MemoryDatabase` (database.rs) into a Go
// interface with one in-memory implementation.
package store

import (
	"math/rand"
	"sync"

	"codenames/internal/apperr"
	"codenames/internal/game"
)

// SessionID and GameID are opaque 64-bit identifiers drawn from a
// uniform random space; the store retries generation on collision.
type SessionID uint64
type GameID uint64

// Session is the server-side record for one connected client.
type Session struct {
	ID          SessionID
	Username    string
	RoomName    string
	IsSpymaster bool
}

// Room is a named lobby grouping connected sessions around one game.
type Room struct {
	Name     string
	GameID   GameID
	Sessions []SessionID
}

// Store is the abstract interface the hub mutates through. Every
// method here is atomic with respect to every other method; sequences
// spanning multiple calls are serialized by the caller (the hub), not
// by the store.
type Store interface {
	CreateRoom(name string) (Room, error)
	RemoveRoom(name string) error
	GetRoom(name string) (Room, error)
	ListRooms() []Room

	CreateSession(roomName string) (Session, error)
	GetSession(id SessionID) (Session, error)
	UpdateSession(id SessionID, s Session) error
	RemoveSession(id SessionID) (Session, error)

	GetGame(id GameID) (game.Game, error)
	UpdateGame(id GameID, g game.Game) error
	FlipCard(id GameID, coord game.Coord) (game.Game, error)
	NextTurn(id GameID) (game.Game, error)
	// ReseedGame replaces the game in place with game.NewFromCurrent,
	// sampling fresh words from the store's configured word source.
	ReseedGame(id GameID) (game.Game, error)
}

// WordSource is the minimal dependency store.CreateRoom needs from
// internal/words, kept narrow so tests can inject a literal slice.
type WordSource interface {
	Words() []string
}

// MemoryStore is the default, in-memory Store implementation: three
// maps behind one sync.Mutex.
type MemoryStore struct {
	mu sync.Mutex

	rooms    map[string]Room
	games    map[GameID]game.Game
	sessions map[SessionID]Session

	words        WordSource
	rng          *rand.Rand
	startingTeam game.Team // alternated internally so successive rooms don't all start BLUE
}

// NewMemoryStore builds an empty store. rng drives both id generation
// and board layout; pass a seeded *rand.Rand in tests for
// reproducibility and rand.New(rand.NewSource(entropy)) in production.
func NewMemoryStore(words WordSource, rng *rand.Rand) *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]Room),
		games:        make(map[GameID]game.Game),
		sessions:     make(map[SessionID]Session),
		words:        words,
		rng:          rng,
		startingTeam: game.TeamBlue,
	}
}

func (s *MemoryStore) newSessionID() SessionID {
	for {
		id := SessionID(s.rng.Uint64())
		if _, exists := s.sessions[id]; !exists {
			return id
		}
	}
}

func (s *MemoryStore) newGameID() GameID {
	for {
		id := GameID(s.rng.Uint64())
		if _, exists := s.games[id]; !exists {
			return id
		}
	}
}

func (s *MemoryStore) CreateRoom(name string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[name]; exists {
		return Room{}, apperr.AlreadyExists
	}

	g, err := game.New(s.startingTeam, s.words.Words(), s.rng)
	if err != nil {
		return Room{}, apperr.Config("store.CreateRoom", err)
	}
	s.startingTeam = s.startingTeam.Opposite()

	gid := s.newGameID()
	s.games[gid] = g

	room := Room{Name: name, GameID: gid}
	s.rooms[name] = room
	return room, nil
}

func (s *MemoryStore) RemoveRoom(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[name]
	if !exists {
		return apperr.NotFound
	}
	delete(s.rooms, name)
	delete(s.games, room.GameID)
	return nil
}

func (s *MemoryStore) GetRoom(name string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[name]
	if !exists {
		return Room{}, apperr.NotFound
	}
	return cloneRoom(room), nil
}

func (s *MemoryStore) ListRooms() []Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, cloneRoom(r))
	}
	return rooms
}

func (s *MemoryStore) CreateSession(roomName string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, exists := s.rooms[roomName]
	if !exists {
		return Session{}, apperr.NotFound
	}

	id := s.newSessionID()
	sess := Session{ID: id, RoomName: roomName}
	s.sessions[id] = sess

	room.Sessions = append(room.Sessions, id)
	s.rooms[roomName] = room

	return sess, nil
}

func (s *MemoryStore) GetSession(id SessionID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return Session{}, apperr.NotFound
	}
	return sess, nil
}

func (s *MemoryStore) UpdateSession(id SessionID, updated Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		return apperr.NotFound
	}
	updated.ID = id
	s.sessions[id] = updated
	return nil
}

// RemoveSession deletes the session and removes it from its room's
// session list. The caller (the hub) decides whether an emptied room
// should itself be removed; this method never removes a room.
func (s *MemoryStore) RemoveSession(id SessionID) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists {
		return Session{}, apperr.NotFound
	}
	delete(s.sessions, id)

	room, exists := s.rooms[sess.RoomName]
	if exists {
		room.Sessions = removeID(room.Sessions, id)
		s.rooms[sess.RoomName] = room
	}

	return sess, nil
}

func (s *MemoryStore) GetGame(id GameID) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.games[id]
	if !exists {
		return game.Game{}, apperr.NotFound
	}
	return g, nil
}

func (s *MemoryStore) UpdateGame(id GameID, g game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.games[id]; !exists {
		return apperr.NotFound
	}
	s.games[id] = g
	return nil
}

func (s *MemoryStore) FlipCard(id GameID, coord game.Coord) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.games[id]
	if !exists {
		return game.Game{}, apperr.NotFound
	}
	next, err := game.FlipCard(g, coord)
	if err != nil {
		return game.Game{}, err
	}
	s.games[id] = next
	return next, nil
}

func (s *MemoryStore) ReseedGame(id GameID) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.games[id]
	if !exists {
		return game.Game{}, apperr.NotFound
	}
	next, err := game.NewFromCurrent(g, s.words.Words(), s.rng)
	if err != nil {
		return game.Game{}, err
	}
	s.games[id] = next
	return next, nil
}

func (s *MemoryStore) NextTurn(id GameID) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, exists := s.games[id]
	if !exists {
		return game.Game{}, apperr.NotFound
	}
	next := game.NextTurn(g)
	s.games[id] = next
	return next, nil
}

func cloneRoom(r Room) Room {
	sessions := make([]SessionID, len(r.Sessions))
	copy(sessions, r.Sessions)
	r.Sessions = sessions
	return r
}

func removeID(ids []SessionID, target SessionID) []SessionID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
