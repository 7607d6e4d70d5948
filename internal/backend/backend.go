// Package backend connects the bridge to the chat network behind it.
package backend

import (
	"context"
	"errors"

	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

// ErrNotConnected is returned by Send while no backend link is up.
var ErrNotConnected = errors.New("backend not connected")

// Backend exchanges envelopes with the chat network.
type Backend interface {
	// Send delivers one envelope.
	Send(ctx context.Context, msg protocol.Message) error
	// Events yields envelopes arriving from the network.
	Events() <-chan protocol.Message
	// Run maintains the link until ctx is done.
	Run(ctx context.Context) error
}

// Loopback is an in-process backend that hands every sent envelope
// straight back as an event. The transaction id is dropped on the way so
// the echo is delivered like a message from another client.
type Loopback struct {
	events chan protocol.Message
	done   chan struct{}
}

// NewLoopback returns a loopback buffering up to size envelopes.
func NewLoopback(size int) *Loopback {
	return &Loopback{
		events: make(chan protocol.Message, size),
		done:   make(chan struct{}),
	}
}

func (l *Loopback) Send(ctx context.Context, msg protocol.Message) error {
	select {
	case <-l.done:
		return ErrNotConnected
	default:
	}

	msg.TxnID = ""
	select {
	case l.events <- msg:
		return nil
	case <-l.done:
		return ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loopback) Events() <-chan protocol.Message {
	return l.events
}

func (l *Loopback) Run(ctx context.Context) error {
	<-ctx.Done()
	close(l.done)
	return nil
}
