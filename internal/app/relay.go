package app

import (
	"encoding/json"

	"github.com/dkeye/Gateway/internal/core"
	"github.com/dkeye/Gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relay fans messages out to the other members of a room.
type Relay struct {
	Rooms  RoomRegistry
	Policy Policy
}

func NewRelay(rooms RoomRegistry, policy Policy) *Relay {
	return &Relay{Rooms: rooms, Policy: policy}
}

// Broadcast serializes msg once and queues the same bytes for every member
// of room except sender. A failed recipient never affects the others and is
// never reported to the sender.
func (r *Relay) Broadcast(room domain.RoomName, sender *core.Handle, msg any) core.PublishResult {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Str("room", string(room)).Msg("marshal broadcast")
		return core.PublishResult{}
	}

	res := r.Rooms.Broadcast(room, sender, data)
	for _, d := range res.Dropped {
		log.Warn().Err(d.Err).
			Str("module", "app.relay").
			Str("room", string(room)).
			Str("dst_sid", string(d.Member.ID())).
			Msg("recipient dropped message")
		r.applyPolicy(room, d)
	}
	return res
}

func (r *Relay) applyPolicy(room domain.RoomName, d core.Dropped) {
	if r.Policy == nil {
		return
	}
	rs, ok := r.Rooms.Get(room)
	if !ok {
		return
	}
	switch r.Policy.OnBackPressure(rs, d.Member, d.Err) {
	case KickMember:
		log.Info().Str("module", "app.relay").Str("room", string(room)).Str("dst_sid", string(d.Member.ID())).Msg("kicking slow member")
		// Closing the transport makes the adapter run the regular teardown.
		d.Member.Conn().Close()
	case DropFrame:
	}
}

// Send queues msg for a single handle, used for direct replies.
func (r *Relay) Send(h *core.Handle, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "app.relay").Msg("sendJSON marshal")
		return err
	}
	if err := h.TrySend(data); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("sid", string(h.ID())).Msg("direct send failed")
		return err
	}
	return nil
}
