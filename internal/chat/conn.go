// Package chat provides the connection abstractions and session hub shared by all transports.
package chat

import (
	"context"
	"time"

	"github.com/omochice/toy-irc-bridge/internal/irc"
)

// Source is the receive half of a client connection.
type Source interface {
	// Recv returns the next decoded message.
	// Returns io.EOF when the peer has gone away.
	Recv(ctx context.Context) (irc.Message, error)
}

// Sink is the send half of a client connection.
type Sink interface {
	// Send writes a single message.
	Send(ctx context.Context, msg irc.Message) error

	// Close closes the send direction only.
	Close() error
}

// Conn abstracts a client connection for both TCP and WebSocket.
// Split is called once; each half is then owned by exactly one goroutine.
type Conn interface {
	Split() (Source, Sink)

	// SetReadDeadline bounds the next Recv calls.
	SetReadDeadline(t time.Time) error

	// Close tears down both directions.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
