package core

import (
	"errors"
	"iter"

	"github.com/dkeye/Gateway/internal/domain"
)

// ErrRoomRetired is returned by AddMember on a room that was dropped from its
// registry after becoming empty. Callers look the room up again.
var ErrRoomRetired = errors.New("room retired")

// PublishResult reports delivery stats/backpressure to the relay.
type PublishResult struct {
	SendTo  int
	Dropped []Dropped
}

// Dropped is a recipient a frame could not be queued for.
type Dropped struct {
	Member *Handle
	Err    error
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	SID   SessionID       `json:"sid"`
	ID    domain.ClientID `json:"id"`
	State string          `json:"state"`
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources.
type RoomService interface {
	Name() domain.RoomName
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(h *Handle) (added bool, err error)
	RemoveMember(sid SessionID) (removed bool, remaining int)
	// MembersExcept yields a snapshot of the members taken at call time, minus sid.
	MembersExcept(sid SessionID) iter.Seq[*Handle]
	Broadcast(from SessionID, data Frame) PublishResult
	// Retire marks an empty room as dead so it accepts no more members.
	Retire() bool
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}
