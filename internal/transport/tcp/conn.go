// Package tcp provides the plain TCP line transport for IRC clients.
package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
)

// MaxLineLength bounds a single inbound line including message tags.
const MaxLineLength = 16 * 1024

// Conn adapts net.Conn to chat.Conn with CRLF line framing.
type Conn struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return NewConnWithReader(conn, conn)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already
// buffered by r during protocol detection.
func NewConnWithReader(conn net.Conn, r io.Reader) *Conn {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024), MaxLineLength)
	return &Conn{conn: conn, scanner: sc}
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

// Reader is the receive half of a Conn.
type Reader struct {
	c *Conn
}

// Recv implements chat.Source. Blank lines are skipped.
func (r *Reader) Recv(_ context.Context) (irc.Message, error) {
	for r.c.scanner.Scan() {
		line := r.c.scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		return irc.Decode(line)
	}
	if err := r.c.scanner.Err(); err != nil && !isClosed(err) {
		return irc.Message{}, err
	}
	return irc.Message{}, io.EOF
}

// isClosed reports errors caused by the connection being closed on our side.
func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}

// Writer is the send half of a Conn.
type Writer struct {
	c *Conn
}

// Send implements chat.Sink. A context deadline becomes the write deadline.
func (w *Writer) Send(ctx context.Context, msg irc.Message) error {
	line, err := irc.Encode(msg)
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := w.c.conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer w.c.conn.SetWriteDeadline(time.Time{})
	}
	_, err = io.WriteString(w.c.conn, line)
	return err
}

// Close implements chat.Sink by half-closing when the connection supports it.
func (w *Writer) Close() error {
	if hc, ok := w.c.conn.(interface{ CloseWrite() error }); ok {
		return hc.CloseWrite()
	}
	return w.c.conn.Close()
}
