package app

import (
	"sync"

	"github.com/dkeye/Gateway/internal/core"
	"github.com/rs/zerolog/log"
)

// Registry tracks the live handles of the process by session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*core.Handle
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*core.Handle),
	}
}

func (r *Registry) Bind(h *core.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[h.ID()] = h
	log.Debug().Str("module", "app.registry").Str("sid", string(h.ID())).Int("sessions", len(r.sessions)).Msg("bound session")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Debug().Str("module", "app.registry").Str("sid", string(sid)).Int("sessions", len(r.sessions)).Msg("unbind session")
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes the transport of every live session. Adapters run the
// normal teardown when their read loops fail.
func (r *Registry) CloseAll() int {
	r.mu.RLock()
	hs := make([]*core.Handle, 0, len(r.sessions))
	for _, h := range r.sessions {
		hs = append(hs, h)
	}
	r.mu.RUnlock()

	for _, h := range hs {
		h.Conn().Close()
	}
	log.Info().Str("module", "app.registry").Int("closed", len(hs)).Msg("closed all sessions")
	return len(hs)
}
