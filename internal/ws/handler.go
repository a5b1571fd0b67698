package ws

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/skip2/go-qrcode"

	"codenames/internal/logger"
	"codenames/internal/store"
)

// Handler holds the dependencies the HTTP surface needs: the Hub for
// the WebSocket upgrade route, the Store directly for the read-only
// /rooms admin endpoint, grounded in the teacher's WSHandler
// (internal/ws/handler.go) minus its auth/betting preamble, since
// auth is a Non-goal here.
type Handler struct {
	Hub               *Hub
	Store             store.Store
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	PublicBaseURL     string

	upgrader websocket.Upgrader
}

// NewHandler builds a Handler. allowedOrigin, if non-empty, restricts
// the WebSocket upgrade's Origin check; empty allows any origin, the
// teacher's default.
func NewHandler(hub *Hub, st store.Store, heartbeatInterval, clientTimeout time.Duration, allowedOrigin, publicBaseURL string) *Handler {
	return &Handler{
		Hub:               hub,
		Store:             st,
		HeartbeatInterval: heartbeatInterval,
		ClientTimeout:     clientTimeout,
		PublicBaseURL:     publicBaseURL,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

// Register wires every route this package owns onto r.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/ws/:room", h.handleWS)
	r.GET("/rooms", h.handleListRooms)
	r.GET("/rooms/:room/qr", h.handleRoomQR)
	r.GET("/healthz", h.handleHealthz)
}

// handleWS upgrades the socket and hands it to a new Client, which
// joins its room on its own goroutine; the handler itself returns
// immediately once the goroutine is spawned.
func (h *Handler) handleWS(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("ws upgrade failed", "room", room, "err", err)
		return
	}

	client := NewClient(h.Hub, conn, room, h.HeartbeatInterval, h.ClientTimeout)
	go client.Run(context.Background())
}

type roomSummary struct {
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	GameStatus  string `json:"gameStatus"`
}

// handleListRooms supplements spec.md's store.list_rooms() with an
// operator-facing read endpoint; it never mutates state and so can
// read the store directly without going through the hub.
func (h *Handler) handleListRooms(c *gin.Context) {
	rooms := h.Store.ListRooms()
	summaries := make([]roomSummary, 0, len(rooms))
	for _, room := range rooms {
		status := "UNKNOWN"
		if g, err := h.Store.GetGame(room.GameID); err == nil {
			if g.Status.InProgress {
				status = "IN_PROGRESS"
			} else {
				status = "OVER"
			}
		}
		summaries = append(summaries, roomSummary{
			Name:        room.Name,
			PlayerCount: len(room.Sessions),
			GameStatus:  status,
		})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": summaries})
}

// handleRoomQR renders a PNG QR code encoding this room's join URL,
// grounded in Seednode-partybox's qrHandler.
func (h *Handler) handleRoomQR(c *gin.Context) {
	room := c.Param("room")
	if room == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}

	base := h.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("ws://%s", c.Request.Host)
	}
	joinURL := fmt.Sprintf("%s/ws/%s", base, room)

	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		logger.Warn("qr encode failed", "room", room, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render qr code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
