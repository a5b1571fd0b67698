package ws

import (
	"context"

	"codenames/internal/apperr"
	"codenames/internal/game"
	"codenames/internal/http/middleware"
	"codenames/internal/logger"
	"codenames/internal/store"
)

// EndpointHandle is the hub's view of a connected session endpoint:
// deliver one outbound event without blocking the hub's single
// request-processing goroutine. Client implements this by pushing
// onto its own outbound channel.
type EndpointHandle interface {
	Deliver(EventMessage)
}

type connectRequest struct {
	roomName string
	handle   EndpointHandle
	reply    chan connectReply
}

type connectReply struct {
	sessionID store.SessionID
	err       error
}

type clientRequest struct {
	senderID store.SessionID
	roomName string
	body     ClientRequestType
}

type hubJob struct {
	connect *connectRequest
	client  *clientRequest
}

// Hub is the system's single logical serialization point: one
// goroutine (Run) drains a FIFO job queue, mutating the Store and
// fanning events out to session endpoints. It generalizes the
// teacher's per-Room single-consumer channel loop (room.Run reading
// Register/Disconnect in rias-glitch-telegram-webapp's internal/ws)
// from room scope to process scope, because every room here shares
// one total order rather than one order per room.
type Hub struct {
	store   store.Store
	handles map[store.SessionID]EndpointHandle
	jobs    chan hubJob
}

// NewHub wires a Hub to its store. jobQueueSize bounds the pending job
// backlog, shared by ClientRequests and NewClientConnection requests;
// Post and Connect both block while the queue is full, and Connect
// additionally blocks its caller for a reply.
func NewHub(st store.Store, jobQueueSize int) *Hub {
	return &Hub{
		store:   st,
		handles: make(map[store.SessionID]EndpointHandle),
		jobs:    make(chan hubJob, jobQueueSize),
	}
}

// Run drains the job queue until ctx is done. Exactly one goroutine
// must call Run for a given Hub's lifetime.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-h.jobs:
			h.handleJob(job)
		}
	}
}

// Connect posts a NewClientConnection request and blocks for the
// session id the hub assigns.
func (h *Hub) Connect(ctx context.Context, roomName string, handle EndpointHandle) (store.SessionID, error) {
	reply := make(chan connectReply, 1)
	job := hubJob{connect: &connectRequest{roomName: roomName, handle: handle, reply: reply}}
	select {
	case h.jobs <- job:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.sessionID, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Post submits a fire-and-forget ClientRequest.
func (h *Hub) Post(senderID store.SessionID, roomName string, body ClientRequestType) {
	h.jobs <- hubJob{client: &clientRequest{senderID: senderID, roomName: roomName, body: body}}
}

// QueueDepth reports the number of jobs currently pending, for the
// codenames_hub_queue_depth gauge.
func (h *Hub) QueueDepth() int {
	return len(h.jobs)
}

func (h *Hub) handleJob(job hubJob) {
	if job.connect != nil {
		h.handleConnect(job.connect)
		return
	}
	h.handleClientRequest(job.client)
}

func (h *Hub) handleConnect(req *connectRequest) {
	if _, err := h.store.GetRoom(req.roomName); err == apperr.NotFound {
		if _, err := h.store.CreateRoom(req.roomName); err != nil {
			req.reply <- connectReply{err: err}
			return
		}
	}

	session, err := h.store.CreateSession(req.roomName)
	if err != nil {
		req.reply <- connectReply{err: err}
		return
	}
	h.handles[session.ID] = req.handle

	h.handleClientRequest(&clientRequest{
		senderID: session.ID,
		roomName: req.roomName,
		body:     ClientRequestType{Kind: kindConnect, ConnectID: session.ID},
	})

	req.reply <- connectReply{sessionID: session.ID}
}

// handleClientRequest dispatches one ClientRequest by body kind, per
// spec.md §4.E. Room and game are resolved once at entry; a missing
// room or a missing session is a StaleReferenceError (request
// dropped, hub stays up). A room whose game_id no longer resolves is
// a ConsistencyError: the store's own invariant is broken.
func (h *Hub) handleClientRequest(req *clientRequest) {
	room, err := h.store.GetRoom(req.roomName)
	if err != nil {
		logger.Warn("stale room reference", "room", req.roomName, "kind", req.body.Kind)
		return
	}
	g, err := h.store.GetGame(room.GameID)
	if err != nil {
		logger.Fatal("consistency violation: room references missing game",
			"err", apperr.Consistency("handleClientRequest", err),
			"room", room.Name, "gameID", room.GameID)
	}

	switch req.body.Kind {
	case kindConnect:
		h.handleConnectEvent(req, room)
	case kindSetName:
		h.handleSetName(req, room)
	case kindDisconnect, kindTimedOut:
		h.handleLeave(req)
	case kindMessage:
		h.handleMessage(req, room)
	case kindFlipCard:
		h.handleFlipCard(req, room, g)
	case kindNewGame:
		h.handleNewGame(req, room)
	case kindSetSpyMaster:
		h.handleSetSpyMaster(req, room)
	case kindNextTurn:
		h.handleNextTurn(req, room)
	default:
		logger.Warn("unhandled request kind", "kind", req.body.Kind)
	}
}

func (h *Hub) handleConnectEvent(req *clientRequest, room store.Room) {
	sess, err := h.store.GetSession(req.body.ConnectID)
	if err != nil {
		logger.Warn("connect: stale session", "id", req.body.ConnectID)
		return
	}
	wire := sessionToWire(sess)
	h.sendTo(wire, room.Name, sess.ID, updateClientSessionEvent(wire))
	h.broadcastState(wire, room)
}

func (h *Hub) handleSetName(req *clientRequest, room store.Room) {
	sess, err := h.store.GetSession(req.senderID)
	if err != nil {
		logger.Warn("setName: stale session", "id", req.senderID)
		return
	}
	sess.Username = req.body.SetNameName
	if err := h.store.UpdateSession(sess.ID, sess); err != nil {
		logger.Warn("setName: update failed", "id", sess.ID, "err", err)
		return
	}
	wire := sessionToWire(sess)
	h.sendTo(wire, room.Name, sess.ID, updateClientSessionEvent(wire))
	h.broadcast(wire, room.Name, room.Sessions, setNameEvent(sess.ID, sess.Username))
}

func (h *Hub) handleLeave(req *clientRequest) {
	sess, err := h.store.RemoveSession(req.senderID)
	if err != nil {
		logger.Warn("leave: stale session", "id", req.senderID)
		return
	}
	delete(h.handles, sess.ID)

	room, err := h.store.GetRoom(req.roomName)
	if err != nil {
		return
	}
	if len(room.Sessions) == 0 {
		if err := h.store.RemoveRoom(req.roomName); err != nil {
			logger.Warn("leave: remove empty room failed", "room", req.roomName, "err", err)
		}
		return
	}

	wire := sessionToWire(sess)
	h.broadcast(wire, req.roomName, room.Sessions, disconnectEvent(sess.ID))
	h.broadcastState(wire, room)
}

func (h *Hub) handleMessage(req *clientRequest, room store.Room) {
	sender := h.senderSession(req.senderID)
	h.broadcast(sender, room.Name, room.Sessions, messageEvent(sender, req.body.MessageText))
}

// handleFlipCard ignores the request silently once the game is over,
// per spec.md §4.E's FlipCard branch.
func (h *Hub) handleFlipCard(req *clientRequest, room store.Room, g game.Game) {
	if !g.Status.InProgress {
		return
	}
	next, err := h.store.FlipCard(room.GameID, req.body.FlipCardCoord)
	if err != nil {
		logger.Warn("flipCard failed", "room", room.Name, "err", err)
		return
	}
	coord := req.body.FlipCardCoord
	card := next.Board[coord.Row][coord.Col]
	middleware.FlipsProcessed.Inc()
	if !next.Status.InProgress {
		middleware.GamesCompleted.Inc()
	}
	sender := h.senderSession(req.senderID)
	h.broadcast(sender, room.Name, room.Sessions, flipCardEvent(card))
	h.broadcast(sender, room.Name, room.Sessions, gameStateUpdateEvent(next))
}

func (h *Hub) handleNewGame(req *clientRequest, room store.Room) {
	next, err := h.store.ReseedGame(room.GameID)
	if err != nil {
		logger.Warn("newGame failed", "room", room.Name, "err", err)
		return
	}
	for _, id := range room.Sessions {
		sess, err := h.store.GetSession(id)
		if err != nil {
			continue
		}
		sess.IsSpymaster = false
		if err := h.store.UpdateSession(id, sess); err != nil {
			logger.Warn("newGame: update session failed", "id", id, "err", err)
			continue
		}
		wire := sessionToWire(sess)
		h.sendTo(wire, room.Name, id, updateClientSessionEvent(wire))
	}
	sender := h.senderSession(req.senderID)
	h.broadcast(sender, room.Name, room.Sessions, newGameEvent())
	h.broadcast(sender, room.Name, room.Sessions, gameStateUpdateEvent(next))
}

func (h *Hub) handleSetSpyMaster(req *clientRequest, room store.Room) {
	sess, err := h.store.GetSession(req.senderID)
	if err != nil {
		logger.Warn("setSpyMaster: stale session", "id", req.senderID)
		return
	}
	sess.IsSpymaster = req.body.SpyMaster
	if err := h.store.UpdateSession(sess.ID, sess); err != nil {
		logger.Warn("setSpyMaster: update failed", "id", sess.ID, "err", err)
		return
	}
	wire := sessionToWire(sess)
	h.sendTo(wire, room.Name, sess.ID, updateClientSessionEvent(wire))
	h.broadcast(wire, room.Name, room.Sessions, setSpyMasterEvent())
}

func (h *Hub) handleNextTurn(req *clientRequest, room store.Room) {
	next, err := h.store.NextTurn(room.GameID)
	if err != nil {
		logger.Warn("nextTurn failed", "room", room.Name, "err", err)
		return
	}
	sender := h.senderSession(req.senderID)
	h.broadcast(sender, room.Name, room.Sessions, nextTurnEvent())
	h.broadcast(sender, room.Name, room.Sessions, gameStateUpdateEvent(next))
}

// senderSession resolves a wire Session for a sender id, degrading to
// a bare-id placeholder if the session has gone stale between the
// frame being sent and the hub processing it.
func (h *Hub) senderSession(id store.SessionID) Session {
	sess, err := h.store.GetSession(id)
	if err != nil {
		return Session{ID: id}
	}
	return sessionToWire(sess)
}

func (h *Hub) broadcastState(sender Session, room store.Room) {
	g, err := h.store.GetGame(room.GameID)
	if err != nil {
		logger.Warn("broadcastState: missing game", "room", room.Name)
		return
	}
	h.broadcast(sender, room.Name, room.Sessions, gameStateUpdateEvent(g))
}

func (h *Hub) broadcast(sender Session, roomName string, ids []store.SessionID, ev Event) {
	msg := EventMessage{Sender: sender, Room: roomName, Event: ev}
	for _, id := range ids {
		if handle, ok := h.handles[id]; ok {
			handle.Deliver(msg)
		}
	}
}

func (h *Hub) sendTo(sender Session, roomName string, target store.SessionID, ev Event) {
	if handle, ok := h.handles[target]; ok {
		handle.Deliver(EventMessage{Sender: sender, Room: roomName, Event: ev})
	}
}
