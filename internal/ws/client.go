package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"codenames/internal/logger"
	"codenames/internal/store"
)

// clientState is the session endpoint's own lifecycle state, mirroring
// spec.md §4.D's OPENING -> JOINING -> ACTIVE -> CLOSING -> CLOSED
// state machine. The teacher's Client (internal/ws/client.go in
// rias-glitch-telegram-webapp) pairs one goroutine each for read and
// write around a Send channel; this keeps that shape and replaces the
// matchmaking-specific Run body with the join/heartbeat/dispatch
// sequence the spec requires.
type clientState int

const (
	stateOpening clientState = iota
	stateJoining
	stateActive
	stateClosing
	stateClosed
)

const writeWait = 10 * time.Second

// Client is one connected player's session endpoint: it owns the
// socket, the heartbeat timer, and translates wire frames to Hub
// requests and back.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room string

	heartbeatInterval time.Duration
	clientTimeout     time.Duration

	sessionID     store.SessionID
	lastHeartbeat time.Time

	send  chan EventMessage
	state clientState
}

// NewClient constructs a session endpoint bound to an already-upgraded
// socket. Call Run to drive it; Run returns once the connection is
// fully closed.
func NewClient(hub *Hub, conn *websocket.Conn, room string, heartbeatInterval, clientTimeout time.Duration) *Client {
	return &Client{
		hub:               hub,
		conn:              conn,
		room:              room,
		heartbeatInterval: heartbeatInterval,
		clientTimeout:     clientTimeout,
		send:              make(chan EventMessage, 64),
		state:             stateOpening,
	}
}

// Deliver implements EndpointHandle: the hub calls this from its own
// goroutine, so it must never block on anything but the buffered
// channel itself.
func (c *Client) Deliver(msg EventMessage) {
	select {
	case c.send <- msg:
	default:
		logger.Warn("client send buffer full, dropping event", "sessionID", c.sessionID, "room", c.room)
	}
}

// Run joins the room, then pumps reads and writes until the socket
// closes or the heartbeat times out.
func (c *Client) Run(ctx context.Context) {
	c.state = stateJoining
	sessionID, err := c.hub.Connect(ctx, c.room, c)
	if err != nil {
		logger.Warn("join failed", "room", c.room, "err", err)
		_ = c.conn.Close()
		c.state = stateClosed
		return
	}
	c.sessionID = sessionID
	c.lastHeartbeat = time.Now()
	c.state = stateActive

	readErrs := make(chan error, 1)
	go c.readPump(readErrs)

	timedOut := c.writeLoop(ctx, readErrs)

	c.state = stateClosing
	if timedOut {
		c.hub.Post(c.sessionID, c.room, ClientRequestType{Kind: kindTimedOut, TimedOutID: c.sessionID})
	} else {
		c.hub.Post(c.sessionID, c.room, ClientRequestType{Kind: kindDisconnect, DisconnectID: c.sessionID})
	}
	_ = c.conn.Close()
	c.state = stateClosed
}

// readPump runs on its own goroutine for the lifetime of the
// connection; readErrs receives exactly one value when the socket
// stops producing frames.
func (c *Client) readPump(readErrs chan<- error) {
	c.conn.SetPongHandler(func(string) error {
		c.lastHeartbeat = time.Now()
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			readErrs <- err
			return
		}

		switch msgType {
		case websocket.PongMessage:
			c.lastHeartbeat = time.Now()
		case websocket.TextMessage:
			req, err := ParseClientRequest(data)
			if err != nil {
				logger.Warn("protocol error decoding frame", "sessionID", c.sessionID, "room", c.room, "err", err)
				continue
			}
			c.hub.Post(c.sessionID, c.room, req)
		}
	}
}

// writeLoop multiplexes outbound EventMessages, heartbeat ticks, and
// the read goroutine's termination signal, per spec.md §4.D's ACTIVE
// state. It returns true if the connection is ending because of a
// heartbeat timeout rather than a socket close/error.
func (c *Client) writeLoop(ctx context.Context, readErrs <-chan error) bool {
	ticker := time.NewTicker(c.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false

		case err := <-readErrs:
			if err != nil {
				logger.Debug("connection closed", "sessionID", c.sessionID, "room", c.room, "err", err)
			}
			return false

		case msg := <-c.send:
			payload, err := json.Marshal(msg)
			if err != nil {
				logger.Warn("failed to marshal outbound event", "sessionID", c.sessionID, "err", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debug("write failed", "sessionID", c.sessionID, "err", err)
				return false
			}

		case <-ticker.C:
			if time.Since(c.lastHeartbeat) > c.clientTimeout {
				logger.Info("client timed out", "sessionID", c.sessionID, "room", c.room)
				return true
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug("ping failed", "sessionID", c.sessionID, "err", err)
				return false
			}
		}
	}
}
