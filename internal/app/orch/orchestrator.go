// Package orch runs the per-connection room protocol: it decodes inbound
// events, updates the room registry and hands outbound messages to the relay.
package orch

import (
	"github.com/dkeye/Gateway/internal/app"
	"github.com/dkeye/Gateway/internal/core"
	"github.com/dkeye/Gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// previewLimit bounds how much of a malformed frame gets logged.
const previewLimit = 200

// Orchestrator methods for a given handle must be called from that handle's
// read loop; different handles may be served concurrently.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    app.RoomRegistry
	Relay    *app.Relay
	Joins    *app.RoomRateLimiter
}

func New(reg *app.Registry, rooms app.RoomRegistry, relay *app.Relay, joins *app.RoomRateLimiter) *Orchestrator {
	return &Orchestrator{Registry: reg, Rooms: rooms, Relay: relay, Joins: joins}
}

// Attach registers a freshly accepted handle.
func (o *Orchestrator) Attach(h *core.Handle) {
	o.Registry.Bind(h)
	log.Info().Str("module", "orch").Str("sid", string(h.ID())).Msg("session attached")
}

// Dispatch handles one inbound frame. Errors are logged and never answered.
func (o *Orchestrator) Dispatch(h *core.Handle, data []byte) {
	if !h.Alive() {
		return
	}
	ev, err := domain.DecodeInbound(data)
	if err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(h.ID())).Str("raw", preview(data)).Msg("invalid json")
		return
	}

	if ev.Kind.Relayed() {
		o.Forward(h, ev)
		return
	}
	switch ev.Kind {
	case domain.KindJoin:
		o.Join(h, ev)
	case domain.KindLeave:
		o.Leave(h, ev)
	case domain.KindPing:
		o.handlePing(h)
	case domain.KindUnknown:
		log.Debug().Str("module", "orch").Str("sid", string(h.ID())).Str("type", ev.Type).Msg("unknown event type")
	}
}

func (o *Orchestrator) handlePing(h *core.Handle) {
	_ = o.Relay.Send(h, domain.Pong{Type: domain.TypePong})
}

func preview(data []byte) string {
	if len(data) > previewLimit {
		data = data[:previewLimit]
	}
	return string(data)
}
