package ws

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"codenames/internal/game"
	"codenames/internal/store"
)

// fakeHandle records every EventMessage delivered to it, for assertions
// without a real websocket connection.
type fakeHandle struct {
	mu   sync.Mutex
	msgs []EventMessage
}

func (f *fakeHandle) Deliver(msg EventMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
}

func (f *fakeHandle) events() []EventMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]EventMessage, len(f.msgs))
	copy(out, f.msgs)
	return out
}

func (f *fakeHandle) last() EventMessage {
	msgs := f.events()
	if len(msgs) == 0 {
		return EventMessage{}
	}
	return msgs[len(msgs)-1]
}

type sliceWords []string

func (s sliceWords) Words() []string { return []string(s) }

func newTestHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	words := sliceWords{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	st := store.NewMemoryStore(words, rand.New(rand.NewSource(1)))
	hub := NewHub(st, 32)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func connectClient(t *testing.T, hub *Hub, room string) (store.SessionID, *fakeHandle) {
	t.Helper()
	h := &fakeHandle{}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	id, err := hub.Connect(ctx, room, h)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return id, h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}

func TestHubConnectCreatesRoomAndDeliversState(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id, h := connectClient(t, hub, "lobby")
	if id == 0 {
		t.Fatalf("expected nonzero session id")
	}

	waitFor(t, func() bool { return len(h.events()) >= 2 })
	events := h.events()
	if events[0].Event.Type != "updateClientSession" {
		t.Fatalf("first event = %q, want updateClientSession", events[0].Event.Type)
	}
	if events[1].Event.Type != "gameStateUpdate" {
		t.Fatalf("second event = %q, want gameStateUpdate", events[1].Event.Type)
	}
}

func TestHubSetNameBroadcastsToRoommates(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id1, h1 := connectClient(t, hub, "lobby")
	_, h2 := connectClient(t, hub, "lobby")

	hub.Post(id1, "lobby", ClientRequestType{Kind: kindSetName, SetNameName: "alice"})

	waitFor(t, func() bool {
		for _, ev := range h2.events() {
			if ev.Event.Type == kindSetName {
				return true
			}
		}
		return false
	})

	_ = h1
}

func TestHubMessageEcho(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id1, _ := connectClient(t, hub, "lobby")
	_, h2 := connectClient(t, hub, "lobby")

	hub.Post(id1, "lobby", ClientRequestType{Kind: kindMessage, MessageText: "hello room"})

	waitFor(t, func() bool {
		for _, ev := range h2.events() {
			if ev.Event.Type == kindMessage {
				return true
			}
		}
		return false
	})
}

func TestHubLeaveEmptiesRoom(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id, _ := connectClient(t, hub, "lobby")
	hub.Post(id, "lobby", ClientRequestType{Kind: kindDisconnect, DisconnectID: id})

	waitFor(t, func() bool {
		_, err := hub.store.GetRoom("lobby")
		return err != nil
	})
}

func TestHubLeaveNotifiesRemainingSessions(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id1, _ := connectClient(t, hub, "lobby")
	_, h2 := connectClient(t, hub, "lobby")

	hub.Post(id1, "lobby", ClientRequestType{Kind: kindDisconnect, DisconnectID: id1})

	waitFor(t, func() bool {
		for _, ev := range h2.events() {
			if ev.Event.Type == kindDisconnect {
				return true
			}
		}
		return false
	})
}

func TestHubFlipCardEndsGameOnAssassin(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id, h := connectClient(t, hub, "lobby")

	room, err := hub.store.GetRoom("lobby")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	g, err := hub.store.GetGame(room.GameID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}

	var assassin game.Coord
	found := false
	for r := 0; r < game.BoardSize && !found; r++ {
		for c := 0; c < game.BoardSize; c++ {
			if g.Board[r][c].Kind == game.CardAssassin {
				assassin = game.Coord{Row: r, Col: c}
				found = true
				break
			}
		}
	}
	if !found {
		t.Fatalf("no assassin card on board")
	}

	hub.Post(id, "lobby", ClientRequestType{Kind: kindFlipCard, FlipCardCoord: assassin})

	waitFor(t, func() bool {
		for _, ev := range h.events() {
			if ev.Event.Type == "gameStateUpdate" {
				data := ev.Event.Data.(struct {
					Game game.Game `json:"game"`
				})
				if !data.Game.Status.InProgress {
					return true
				}
			}
		}
		return false
	})
}

func TestHubFlipCardIgnoredOnceGameOver(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id, _ := connectClient(t, hub, "lobby")

	room, _ := hub.store.GetRoom("lobby")
	g, _ := hub.store.GetGame(room.GameID)
	var assassin game.Coord
	for r := 0; r < game.BoardSize; r++ {
		for c := 0; c < game.BoardSize; c++ {
			if g.Board[r][c].Kind == game.CardAssassin {
				assassin = game.Coord{Row: r, Col: c}
			}
		}
	}
	hub.Post(id, "lobby", ClientRequestType{Kind: kindFlipCard, FlipCardCoord: assassin})

	waitFor(t, func() bool {
		finished, err := hub.store.GetGame(room.GameID)
		return err == nil && !finished.Status.InProgress
	})

	before, _ := hub.store.GetGame(room.GameID)

	// Flipping anywhere else after the game is over must be a no-op.
	var other game.Coord
	for r := 0; r < game.BoardSize; r++ {
		for c := 0; c < game.BoardSize; c++ {
			if !before.Board[r][c].Flipped {
				other = game.Coord{Row: r, Col: c}
			}
		}
	}
	hub.Post(id, "lobby", ClientRequestType{Kind: kindFlipCard, FlipCardCoord: other})

	time.Sleep(20 * time.Millisecond)
	after, err := hub.store.GetGame(room.GameID)
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if after.Board[other.Row][other.Col].Flipped {
		t.Fatalf("flip applied after game was already over")
	}
}

func TestHubNewGameResetsSpymasterFlags(t *testing.T) {
	hub, cancel := newTestHub(t)
	defer cancel()

	id, h := connectClient(t, hub, "lobby")
	hub.Post(id, "lobby", ClientRequestType{Kind: kindSetSpyMaster, SpyMaster: true})

	waitFor(t, func() bool {
		sess, err := hub.store.GetSession(id)
		return err == nil && sess.IsSpymaster
	})

	hub.Post(id, "lobby", ClientRequestType{Kind: kindNewGame})

	waitFor(t, func() bool {
		sess, err := hub.store.GetSession(id)
		return err == nil && !sess.IsSpymaster
	})

	waitFor(t, func() bool {
		for _, ev := range h.events() {
			if ev.Event.Type == kindNewGame {
				return true
			}
		}
		return false
	})
}
