package app

import (
	"errors"
	"fmt"

	"github.com/dkeye/Gateway/internal/core"
)

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a recipient whose send failed.
type Policy interface {
	OnBackPressure(room core.RoomService, member *core.Handle, err error) BackpressureAction
}

// DropPolicy drops the frame for the slow recipient and keeps it connected.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(core.RoomService, *core.Handle, error) BackpressureAction {
	return DropFrame
}

// KickPolicy disconnects recipients whose queue is full.
type KickPolicy struct{}

func (KickPolicy) OnBackPressure(_ core.RoomService, _ *core.Handle, err error) BackpressureAction {
	if errors.Is(err, core.ErrBackpressure) {
		return KickMember
	}
	return DropFrame
}

// PolicyByName maps the slow_consumer config value to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "drop":
		return DropPolicy{}, nil
	case "kick":
		return KickPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown slow consumer policy %q", name)
	}
}
