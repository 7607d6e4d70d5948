// Package ws provides the IRC-over-WebSocket transport: one protocol line per text frame.
package ws

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
)

// Subprotocol is the IRCv3 WebSocket subprotocol for UTF-8 text frames.
const Subprotocol = "text.ircv3.net"

// Conn adapts an upgraded WebSocket net.Conn to chat.Conn using gobwas/ws.
type Conn struct {
	conn net.Conn
	src  io.Reader

	// control frame replies from the reader share the socket with Send
	wmu sync.Mutex

	pending []string
}

// NewConn wraps an already upgraded connection.
func NewConn(conn net.Conn) *Conn {
	return NewConnWithReader(conn, conn)
}

// NewConnWithReader wraps an upgraded connection whose reads go through r,
// used when the handshake was read from a peeked buffer.
func NewConnWithReader(conn net.Conn, r io.Reader) *Conn {
	return &Conn{conn: conn, src: r}
}

// Split implements chat.Conn.
func (c *Conn) Split() (chat.Source, chat.Sink) {
	return &Reader{c: c}, &Writer{c: c}
}

// SetReadDeadline implements chat.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

type lockedWriter struct {
	c *Conn
}

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return w.c.conn.Write(p)
}

// readData returns the payload of the next data frame, answering control
// frames on the way.
func (c *Conn) readData() ([]byte, error) {
	control := wsutil.ControlFrameHandler(lockedWriter{c: c}, ws.StateServerSide)
	rd := wsutil.Reader{
		Source:         c.src,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(&rd)
	}
}

// Reader is the receive half of a Conn.
type Reader struct {
	c *Conn
}

// Recv implements chat.Source. A frame carrying several lines is split.
func (r *Reader) Recv(_ context.Context) (irc.Message, error) {
	for len(r.c.pending) == 0 {
		data, err := r.c.readData()
		if err != nil {
			var closed wsutil.ClosedError
			if errors.As(err, &closed) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return irc.Message{}, io.EOF
			}
			return irc.Message{}, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) != "" {
				r.c.pending = append(r.c.pending, line)
			}
		}
	}

	line := r.c.pending[0]
	r.c.pending = r.c.pending[1:]
	return irc.Decode(line)
}

// Writer is the send half of a Conn.
type Writer struct {
	c *Conn
}

// Send implements chat.Sink.
func (w *Writer) Send(_ context.Context, msg irc.Message) error {
	line, err := irc.Encode(msg)
	if err != nil {
		return err
	}
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return wsutil.WriteServerMessage(w.c.conn, ws.OpText, []byte(strings.TrimRight(line, "\r\n")))
}

// Close implements chat.Sink by sending a normal closure frame.
func (w *Writer) Close() error {
	w.c.wmu.Lock()
	defer w.c.wmu.Unlock()
	return wsutil.WriteServerMessage(w.c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
}
