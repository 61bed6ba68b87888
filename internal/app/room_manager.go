package app

import (
	"errors"
	"iter"
	"slices"
	"sync"

	"github.com/dkeye/Gateway/internal/core"
	"github.com/dkeye/Gateway/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomRegistry maps room names to rooms. A missing room is an empty room,
// so no method fails on an unknown name.
type RoomRegistry interface {
	Join(name domain.RoomName, h *core.Handle) bool
	Leave(name domain.RoomName, h *core.Handle) bool
	MembersExcept(name domain.RoomName, h *core.Handle) iter.Seq[*core.Handle]
	Broadcast(name domain.RoomName, from *core.Handle, data core.Frame) core.PublishResult
	Get(name domain.RoomName) (core.RoomService, bool)
	List() []core.RoomInfo
}

type RoomManagerImpl struct {
	mu    sync.RWMutex
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager() *RoomManagerImpl {
	return &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService)}
}

func (f *RoomManagerImpl) getOrCreate(name domain.RoomName) core.RoomService {
	f.mu.RLock()
	room, ok := f.rooms[name]
	f.mu.RUnlock()
	if ok {
		return room
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if room, ok = f.rooms[name]; ok {
		return room
	}
	room = core.NewRoomService(name)
	f.rooms[name] = room
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room created")
	return room
}

// Join adds h to the room, creating it if needed. It reports whether h was
// newly added; joining twice keeps a single membership entry.
func (f *RoomManagerImpl) Join(name domain.RoomName, h *core.Handle) bool {
	for {
		room := f.getOrCreate(name)
		added, err := room.AddMember(h)
		if errors.Is(err, core.ErrRoomRetired) {
			// Lost a race with the last leave; the retired room is gone from the map.
			continue
		}
		return added
	}
}

// Leave removes h from the room and drops the room once it is empty.
func (f *RoomManagerImpl) Leave(name domain.RoomName, h *core.Handle) bool {
	room, ok := f.Get(name)
	if !ok {
		return false
	}
	removed, remaining := room.RemoveMember(h.ID())
	if remaining == 0 {
		f.collect(name, room)
	}
	return removed
}

// collect deletes room if it is still the registered instance and still empty.
func (f *RoomManagerImpl) collect(name domain.RoomName, room core.RoomService) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cur, ok := f.rooms[name]; !ok || cur != room {
		return
	}
	if !room.Retire() {
		return
	}
	delete(f.rooms, name)
	log.Info().Str("module", "app.rooms").Str("room", string(name)).Msg("room removed")
}

func (f *RoomManagerImpl) MembersExcept(name domain.RoomName, h *core.Handle) iter.Seq[*core.Handle] {
	room, ok := f.Get(name)
	if !ok {
		return slices.Values([]*core.Handle(nil))
	}
	return room.MembersExcept(h.ID())
}

func (f *RoomManagerImpl) Broadcast(name domain.RoomName, from *core.Handle, data core.Frame) core.PublishResult {
	room, ok := f.Get(name)
	if !ok {
		return core.PublishResult{}
	}
	return room.Broadcast(from.ID(), data)
}

func (f *RoomManagerImpl) Get(name domain.RoomName) (core.RoomService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	room, ok := f.rooms[name]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(f.rooms))
	for name, r := range f.rooms {
		out = append(out, core.RoomInfo{Name: name, MemberCount: r.MemberCount()})
	}
	return out
}
