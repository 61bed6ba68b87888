package orch

import (
	"github.com/dkeye/Gateway/internal/core"
	"github.com/dkeye/Gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// Join puts h into ev.Room. A handle is in at most one room: joining a
// different room first leaves the previous one.
func (o *Orchestrator) Join(h *core.Handle, ev domain.Inbound) {
	if ev.Room == "" {
		log.Warn().Str("module", "orch").Str("sid", string(h.ID())).Msg("join without room")
		return
	}
	if o.Joins != nil && !o.Joins.Allow(h.ID()) {
		log.Warn().Str("module", "orch").Str("sid", string(h.ID())).Str("room", string(ev.Room)).Msg("join rate limited")
		return
	}

	prevRoom, prevID, ok := h.Enter(ev.Room, ev.ID)
	if !ok {
		return
	}
	if prevRoom != "" && prevRoom != ev.Room {
		o.leaveRoom(h, prevRoom, prevID)
		log.Info().Str("module", "orch").Str("sid", string(h.ID())).Str("from_room", string(prevRoom)).Msg("left previous room")
	}

	o.Rooms.Join(ev.Room, h)
	peers := 0
	for range o.Rooms.MembersExcept(ev.Room, h) {
		peers++
	}
	log.Info().Str("module", "orch").Str("sid", string(h.ID())).Str("room", string(ev.Room)).Str("id", string(ev.ID)).Int("peers", peers).Msg("join")

	_ = o.Relay.Send(h, domain.Outbound{Type: domain.TypeJoined, Room: ev.Room, ID: ev.ID})
	o.Relay.Broadcast(ev.Room, h, domain.Outbound{Type: domain.TypePlayerJoin, Room: ev.Room, ID: ev.ID})
}

// Leave removes h from the effective room; the connection stays open.
// player_leave goes out only when a membership entry was removed, and the
// stored room is cleared only when it is the room being left.
func (o *Orchestrator) Leave(h *core.Handle, ev domain.Inbound) {
	room := o.effectiveRoom(h, ev)
	if room == "" {
		return
	}
	id := h.ClientID()
	if id == "" {
		id = ev.ID
	}
	h.Exit(room)
	if o.leaveRoom(h, room, id) {
		log.Info().Str("module", "orch").Str("sid", string(h.ID())).Str("room", string(room)).Msg("leave")
	}
}

// Forward relays move/shoot/chat events to the rest of the effective room.
func (o *Orchestrator) Forward(h *core.Handle, ev domain.Inbound) {
	room := o.effectiveRoom(h, ev)
	if room == "" {
		return
	}
	id := ev.ID
	if id == "" {
		id = h.ClientID()
	}
	o.Relay.Broadcast(room, h, domain.Outbound{
		Type:    ev.Kind.String(),
		Room:    room,
		ID:      id,
		Payload: ev.Payload,
	})
}

// Disconnect tears h down. Only the first call has any effect.
func (o *Orchestrator) Disconnect(h *core.Handle) {
	room, id, first := h.MarkClosed()
	if !first {
		return
	}
	if room != "" {
		o.leaveRoom(h, room, id)
	}
	if o.Joins != nil {
		o.Joins.Forget(h.ID())
	}
	o.Registry.Unbind(h.ID())
	log.Info().Str("module", "orch").Str("sid", string(h.ID())).Str("room", string(room)).Msg("session closed")
}

// leaveRoom removes the membership and tells the others, if there was one.
func (o *Orchestrator) leaveRoom(h *core.Handle, room domain.RoomName, id domain.ClientID) bool {
	if !o.Rooms.Leave(room, h) {
		return false
	}
	o.Relay.Broadcast(room, h, domain.Outbound{Type: domain.TypePlayerLeave, Room: room, ID: id})
	return true
}

// effectiveRoom prefers the room named in the event over the stored one.
func (o *Orchestrator) effectiveRoom(h *core.Handle, ev domain.Inbound) domain.RoomName {
	if ev.Room != "" {
		return ev.Room
	}
	room, _ := h.Room()
	return room
}
