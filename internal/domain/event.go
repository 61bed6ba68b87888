// Package domain contains the wire schema of the room protocol: event kinds,
// inbound envelopes and the messages the gateway sends back.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEvent is returned when an inbound frame is not a JSON event object.
var ErrMalformedEvent = errors.New("malformed event")

// Kind is the closed set of inbound event types. Anything else decodes to KindUnknown.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindJoin
	KindLeave
	KindMove
	KindShoot
	KindChat
	KindPing
)

var kindNames = [...]string{
	KindUnknown: "unknown",
	KindJoin:    "join",
	KindLeave:   "leave",
	KindMove:    "move",
	KindShoot:   "shoot",
	KindChat:    "chat",
	KindPing:    "ping",
}

// ParseKind maps a wire type string to its Kind.
func ParseKind(s string) Kind {
	switch s {
	case "join":
		return KindJoin
	case "leave":
		return KindLeave
	case "move":
		return KindMove
	case "shoot":
		return KindShoot
	case "chat":
		return KindChat
	case "ping":
		return KindPing
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return kindNames[KindUnknown]
}

// Relayed reports whether events of this kind are forwarded verbatim to the room.
func (k Kind) Relayed() bool {
	return k == KindMove || k == KindShoot || k == KindChat
}

// Inbound is one decoded client event. Type keeps the raw wire string so
// unknown kinds can still be logged.
type Inbound struct {
	Kind    Kind
	Type    string
	Room    RoomName
	ID      ClientID
	Payload json.RawMessage
}

type inboundWire struct {
	Type    string          `json:"type"`
	Room    RoomName        `json:"room"`
	ID      ClientID        `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeInbound parses a single frame. Extra fields are ignored; a frame that
// is not a JSON object with string type/room/id fields is malformed.
func DecodeInbound(data []byte) (Inbound, error) {
	var w inboundWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return Inbound{
		Kind:    ParseKind(w.Type),
		Type:    w.Type,
		Room:    w.Room,
		ID:      w.ID,
		Payload: w.Payload,
	}, nil
}

// Outbound message types.
const (
	TypeJoined      = "joined"
	TypePlayerJoin  = "player_join"
	TypePlayerLeave = "player_leave"
	TypePong        = "pong"
)

// Outbound is the shape of every room message the gateway emits.
type Outbound struct {
	Type    string          `json:"type"`
	Room    RoomName        `json:"room"`
	ID      ClientID        `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Pong answers a ping directly to its sender.
type Pong struct {
	Type string `json:"type"`
}
