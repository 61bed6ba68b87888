package core

import (
	"iter"
	"slices"
	"sync"

	"github.com/dkeye/Gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	name    domain.RoomName
	mu      sync.Mutex
	bySID   map[SessionID]*Handle
	retired bool
}

func NewRoomService(name domain.RoomName) RoomService {
	return &roomImpl{
		name:  name,
		bySID: make(map[SessionID]*Handle),
	}
}

func (r *roomImpl) Name() domain.RoomName { return r.name }

func (r *roomImpl) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySID)
}

func (r *roomImpl) AddMember(h *Handle) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.retired {
		return false, ErrRoomRetired
	}
	if _, ok := r.bySID[h.ID()]; ok {
		return false, nil
	}
	r.bySID[h.ID()] = h
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(h.ID())).Int("members", len(r.bySID)).Msg("member added")
	return true, nil
}

func (r *roomImpl) RemoveMember(sid SessionID) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.bySID[sid]
	if ok {
		delete(r.bySID, sid)
		log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("sid", string(sid)).Int("members", len(r.bySID)).Msg("member removed")
	}
	return ok, len(r.bySID)
}

func (r *roomImpl) Retire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.bySID) > 0 {
		return false
	}
	r.retired = true
	return true
}

func (r *roomImpl) MembersExcept(sid SessionID) iter.Seq[*Handle] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersExcept(sid)
}

// membersExcept must be called with r.mu held. The returned sequence walks a
// copy, so it stays valid after the lock is released.
func (r *roomImpl) membersExcept(sid SessionID) iter.Seq[*Handle] {
	out := make([]*Handle, 0, len(r.bySID))
	for id, h := range r.bySID {
		if id == sid {
			continue
		}
		out = append(out, h)
	}
	return slices.Values(out)
}

// Broadcast runs one fan-out pass while holding the room lock, so every
// recipient sees the room's broadcasts in the same order. Sends never block.
func (r *roomImpl) Broadcast(from SessionID, data Frame) PublishResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := PublishResult{}
	for m := range r.membersExcept(from) {
		if err := m.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, Dropped{Member: m, Err: err})
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.name)).Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) MembersSnapshot() []MemberDTO {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemberDTO, 0, len(r.bySID))
	for sid, h := range r.bySID {
		out = append(out, MemberDTO{SID: sid, ID: h.ClientID(), State: h.State().String()})
	}
	return out
}
