package core

import "errors"

var (
	// ErrBackpressure means the recipient's outbound queue is full.
	ErrBackpressure = errors.New("backpressure")
	// ErrHandleClosed means the recipient's transport is already closing.
	ErrHandleClosed = errors.New("connection closed")
)

// Frame is one serialized outbound message.
type Frame []byte

// SignalConnection abstracts a message transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	// TrySend queues f without blocking.
	TrySend(Frame) error
	Close()
}
