package ws

import (
	"encoding/json"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"codenames/internal/store"
)

// frame mirrors the {type,data} shape every inbound/outbound message
// takes, loose enough to inspect without importing each event's exact
// payload type, mirroring the teacher's e2e_ws_test.go reader pattern
// (read frames into a channel, poll for the type under test).
type frame struct {
	Sender json.RawMessage `json:"sender"`
	Room   string          `json:"room"`
	Event  struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	} `json:"event"`
}

// testConn dials one websocket client against the given server and
// pumps every received frame onto a buffered channel, exactly as the
// teacher's e2e test spawns one reader goroutine per connection.
type testConn struct {
	conn   *websocket.Conn
	frames chan frame
}

func dial(t *testing.T, wsURL string) *testConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	tc := &testConn{conn: conn, frames: make(chan frame, 32)}
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				close(tc.frames)
				return
			}
			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue
			}
			tc.frames <- f
		}
	}()
	return tc
}

func (tc *testConn) send(t *testing.T, envType string, data any) {
	t.Helper()
	payload, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: envType, Data: data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := tc.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (tc *testConn) waitForType(t *testing.T, want string) frame {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-tc.frames:
			if !ok {
				t.Fatalf("connection closed while waiting for %q", want)
			}
			if f.Event.Type == want {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %q", want)
		}
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	words := sliceWords{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel"}
	st := store.NewMemoryStore(words, rand.New(rand.NewSource(2)))
	hub := NewHub(st, 32)
	go hub.Run(t.Context())

	handler := NewHandler(hub, st, 50*time.Millisecond, 150*time.Millisecond, "", "")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.Register(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub
}

func wsURL(httpURL, room string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws/" + room
}

func TestE2EJoinAndChatEcho(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, wsURL(srv.URL, "table-1"))
	defer alice.conn.Close()
	alice.waitForType(t, "updateClientSession")
	alice.waitForType(t, "gameStateUpdate")

	bob := dial(t, wsURL(srv.URL, "table-1"))
	defer bob.conn.Close()
	bob.waitForType(t, "updateClientSession")
	bob.waitForType(t, "gameStateUpdate")

	bob.send(t, "message", struct {
		Text string `json:"text"`
	}{Text: "hello table"})

	got := alice.waitForType(t, "message")
	var data struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(got.Event.Data, &data); err != nil {
		t.Fatalf("unmarshal message data: %v", err)
	}
	if data.Text != "hello table" {
		t.Fatalf("text = %q, want %q", data.Text, "hello table")
	}
}

func TestE2ELeaveNotifiesRemainingPlayer(t *testing.T) {
	srv, _ := newTestServer(t)

	alice := dial(t, wsURL(srv.URL, "table-2"))
	defer alice.conn.Close()
	alice.waitForType(t, "updateClientSession")
	alice.waitForType(t, "gameStateUpdate")

	bob := dial(t, wsURL(srv.URL, "table-2"))
	bob.waitForType(t, "updateClientSession")
	bob.waitForType(t, "gameStateUpdate")

	if err := bob.conn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	alice.waitForType(t, "disconnect")
}

func TestE2EHeartbeatTimeoutClosesConnection(t *testing.T) {
	srv, _ := newTestServer(t)

	// Dial with the raw library dialer so no pong is ever sent back;
	// the server's ping cadence and timeout are both configured short
	// in newTestServer so this resolves quickly.
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL, "table-3"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	// Suppress the client library's default auto-pong so the server
	// never sees a reply and its heartbeat timeout actually fires.
	conn.SetPingHandler(func(string) error { return nil })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("connection was never closed after heartbeat timeout")
	}
}
