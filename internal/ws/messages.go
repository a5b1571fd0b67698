package ws

import (
	"encoding/json"
	"fmt"

	"codenames/internal/game"
	"codenames/internal/store"
)

// Session is the wire-format mirror of store.Session: camelCase field
// names, no internal id types leaking as anything but plain numbers.
type Session struct {
	ID          store.SessionID `json:"id"`
	Username    string          `json:"username"`
	Room        string          `json:"room"`
	IsSpymaster bool            `json:"isSpymaster"`
}

func sessionToWire(s store.Session) Session {
	return Session{
		ID:          s.ID,
		Username:    s.Username,
		Room:        s.RoomName,
		IsSpymaster: s.IsSpymaster,
	}
}

// envelope is the shared `{type, data}` shape both ClientRequestType
// and Event are encoded/decoded with.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ClientRequestType is the parsed form of one inbound text frame.
// At most one of the payload fields below is populated, selected by
// Kind; newGame and nextTurn carry no payload.
type ClientRequestType struct {
	Kind string

	ConnectID     store.SessionID
	SetNameName   string
	DisconnectID  store.SessionID
	TimedOutID    store.SessionID
	MessageText   string
	FlipCardCoord game.Coord
	SpyMaster     bool
}

const (
	kindConnect      = "connect"
	kindSetName      = "setName"
	kindDisconnect   = "disconnect"
	kindTimedOut     = "timedOut"
	kindMessage      = "message"
	kindFlipCard     = "flipCard"
	kindNewGame      = "newGame"
	kindSetSpyMaster = "setSpyMaster"
	kindNextTurn     = "nextTurn"
)

// ParseClientRequest decodes one inbound text frame into a
// ClientRequestType, per spec.md §6's {type,data} discriminated union.
func ParseClientRequest(raw []byte) (ClientRequestType, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ClientRequestType{}, fmt.Errorf("decode envelope: %w", err)
	}

	req := ClientRequestType{Kind: env.Type}
	switch env.Type {
	case kindConnect:
		var data struct {
			ID store.SessionID `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode connect: %w", err)
		}
		req.ConnectID = data.ID
	case kindSetName:
		var data struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode setName: %w", err)
		}
		req.SetNameName = data.Name
	case kindDisconnect:
		var data struct {
			ID store.SessionID `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode disconnect: %w", err)
		}
		req.DisconnectID = data.ID
	case kindTimedOut:
		var data struct {
			ID store.SessionID `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode timedOut: %w", err)
		}
		req.TimedOutID = data.ID
	case kindMessage:
		var data struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode message: %w", err)
		}
		req.MessageText = data.Text
	case kindFlipCard:
		var data struct {
			Coord game.Coord `json:"coord"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode flipCard: %w", err)
		}
		req.FlipCardCoord = data.Coord
	case kindNewGame, kindNextTurn:
		// no payload
	case kindSetSpyMaster:
		var data struct {
			Spymaster bool `json:"spymaster"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return ClientRequestType{}, fmt.Errorf("decode setSpyMaster: %w", err)
		}
		req.SpyMaster = data.Spymaster
	default:
		return ClientRequestType{}, fmt.Errorf("unknown request type %q", env.Type)
	}

	return req, nil
}

// Event is one outbound `{type, data}` value, built by the hub and
// serialized by the session endpoint that owns the recipient socket.
type Event struct {
	Type string
	Data any
}

func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: e.Type, Data: data})
}

// EventMessage is the outer frame sent to a client: who triggered the
// event, which room it belongs to, and the event itself.
type EventMessage struct {
	Sender Session `json:"sender"`
	Room   string  `json:"room"`
	Event  Event   `json:"event"`
}

func connectEvent(id store.SessionID) Event {
	return Event{Type: kindConnect, Data: struct {
		ID store.SessionID `json:"id"`
	}{ID: id}}
}

func setNameEvent(id store.SessionID, name string) Event {
	return Event{Type: kindSetName, Data: struct {
		ID   store.SessionID `json:"id"`
		Name string          `json:"name"`
	}{ID: id, Name: name}}
}

func disconnectEvent(id store.SessionID) Event {
	return Event{Type: kindDisconnect, Data: struct {
		ID store.SessionID `json:"id"`
	}{ID: id}}
}

func messageEvent(sender Session, text string) Event {
	return Event{Type: kindMessage, Data: struct {
		Sender Session `json:"sender"`
		Text   string  `json:"text"`
	}{Sender: sender, Text: text}}
}

func flipCardEvent(card game.Card) Event {
	return Event{Type: kindFlipCard, Data: struct {
		FlippedCard game.Card `json:"flippedCard"`
	}{FlippedCard: card}}
}

func newGameEvent() Event {
	return Event{Type: kindNewGame, Data: struct{}{}}
}

func gameStateUpdateEvent(g game.Game) Event {
	return Event{Type: "gameStateUpdate", Data: struct {
		Game game.Game `json:"game"`
	}{Game: g}}
}

func updateClientSessionEvent(s Session) Event {
	return Event{Type: "updateClientSession", Data: struct {
		Session Session `json:"session"`
	}{Session: s}}
}

func setSpyMasterEvent() Event {
	return Event{Type: kindSetSpyMaster, Data: struct{}{}}
}

func nextTurnEvent() Event {
	return Event{Type: kindNextTurn, Data: struct{}{}}
}
