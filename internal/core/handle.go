package core

import (
	"sync"

	"github.com/dkeye/Gateway/internal/domain"
)

// SessionID is the transport-assigned identity of a connection.
type SessionID string

// State is the protocol state of a handle.
type State int32

const (
	StateUnjoined State = iota
	StateJoined
	StateLeft
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateLeft:
		return "left"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Handle is the core view of one client connection. Rooms hold handles by
// reference; the adapter that created the handle owns its transport.
type Handle struct {
	id   SessionID
	conn SignalConnection

	mu     sync.RWMutex
	room   domain.RoomName
	client domain.ClientID
	state  State
}

func NewHandle(id SessionID, conn SignalConnection) *Handle {
	return &Handle{id: id, conn: conn}
}

func (h *Handle) ID() SessionID { return h.id }

// Conn returns the adapter-owned transport.
func (h *Handle) Conn() SignalConnection { return h.conn }

// Room returns the room the handle is in, if any.
func (h *Handle) Room() (domain.RoomName, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.room, h.room != ""
}

// ClientID returns the last id the client declared.
func (h *Handle) ClientID() domain.ClientID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Alive reports whether the handle has not been torn down.
func (h *Handle) Alive() bool {
	return h.State() != StateClosed
}

// Enter records a join and returns the room and id the handle held before.
// It is a no-op on a closed handle.
func (h *Handle) Enter(room domain.RoomName, client domain.ClientID) (prevRoom domain.RoomName, prevClient domain.ClientID, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return "", "", false
	}
	prevRoom, prevClient = h.room, h.client
	h.room = room
	h.client = client
	h.state = StateJoined
	return prevRoom, prevClient, true
}

// Exit clears the stored room if it equals room. It reports whether it did.
func (h *Handle) Exit(room domain.RoomName) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed || h.room == "" || h.room != room {
		return false
	}
	h.room = ""
	h.state = StateLeft
	return true
}

// MarkClosed moves the handle to StateClosed. Only the first call reports
// first=true; it also returns the room and id the handle held at that moment.
func (h *Handle) MarkClosed() (room domain.RoomName, client domain.ClientID, first bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateClosed {
		return "", "", false
	}
	room, client = h.room, h.client
	h.room = ""
	h.state = StateClosed
	return room, client, true
}

// TrySend forwards f to the transport unless the handle is closed.
func (h *Handle) TrySend(f Frame) error {
	if !h.Alive() {
		return ErrHandleClosed
	}
	return h.conn.TrySend(f)
}
