package core

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomAddRemove(t *testing.T) {
	r := NewRoomService("r1")
	a := NewHandle("a", &fakeConn{})

	added, err := r.AddMember(a)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = r.AddMember(a)
	require.NoError(t, err)
	assert.False(t, added, "second add keeps one entry")
	assert.Equal(t, 1, r.MemberCount())

	removed, remaining := r.RemoveMember("a")
	assert.True(t, removed)
	assert.Equal(t, 0, remaining)

	removed, _ = r.RemoveMember("a")
	assert.False(t, removed)
}

func TestRoomRetire(t *testing.T) {
	r := NewRoomService("r1")
	a := NewHandle("a", &fakeConn{})
	_, _ = r.AddMember(a)

	assert.False(t, r.Retire(), "non-empty room stays alive")

	r.RemoveMember("a")
	assert.True(t, r.Retire())

	_, err := r.AddMember(a)
	assert.ErrorIs(t, err, ErrRoomRetired)
}

func TestRoomBroadcastExcludesSender(t *testing.T) {
	r := NewRoomService("r1")
	ca, cb, cc := &fakeConn{}, &fakeConn{}, &fakeConn{}
	_, _ = r.AddMember(NewHandle("a", ca))
	_, _ = r.AddMember(NewHandle("b", cb))
	_, _ = r.AddMember(NewHandle("c", cc))

	res := r.Broadcast("a", Frame("hello"))
	assert.Equal(t, 2, res.SendTo)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, ca.sent())
	assert.Equal(t, []string{"hello"}, cb.sent())
	assert.Equal(t, []string{"hello"}, cc.sent())
}

func TestRoomBroadcastIsolatesFailures(t *testing.T) {
	r := NewRoomService("r1")
	slow := &fakeConn{err: ErrBackpressure}
	ok := &fakeConn{}
	_, _ = r.AddMember(NewHandle("a", &fakeConn{}))
	_, _ = r.AddMember(NewHandle("slow", slow))
	_, _ = r.AddMember(NewHandle("ok", ok))

	res := r.Broadcast("a", Frame("x"))
	assert.Equal(t, 1, res.SendTo)
	require.Len(t, res.Dropped, 1)
	assert.Equal(t, SessionID("slow"), res.Dropped[0].Member.ID())
	assert.True(t, errors.Is(res.Dropped[0].Err, ErrBackpressure))
	assert.Equal(t, []string{"x"}, ok.sent())
}

func TestRoomMembersExceptIsSnapshot(t *testing.T) {
	r := NewRoomService("r1")
	_, _ = r.AddMember(NewHandle("a", &fakeConn{}))
	_, _ = r.AddMember(NewHandle("b", &fakeConn{}))

	seq := r.MembersExcept("a")
	_, _ = r.AddMember(NewHandle("c", &fakeConn{}))

	var ids []SessionID
	for h := range seq {
		ids = append(ids, h.ID())
	}
	assert.Equal(t, []SessionID{"b"}, ids)
}

func TestRoomMembersSnapshot(t *testing.T) {
	r := NewRoomService("r1")
	h := NewHandle("a", &fakeConn{})
	h.Enter("r1", "alice")
	_, _ = r.AddMember(h)

	snap := r.MembersSnapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, MemberDTO{SID: "a", ID: "alice", State: "joined"}, snap[0])
	assert.True(t, slices.ContainsFunc(snap, func(m MemberDTO) bool { return m.SID == "a" }))
}
