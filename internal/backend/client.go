package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/omochice/toy-irc-bridge/pkg/logger"
	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

// Client is a Backend reached over a WebSocket carrying one binary
// protocol.Message per frame. It redials after the link drops.
type Client struct {
	url            string
	reconnectDelay time.Duration
	dialer         *websocket.Dialer
	events         chan protocol.Message
	log            logger.Logger

	mu   sync.RWMutex
	conn *websocket.Conn

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

// NewClient returns a client for the backend at url. It dials once Run is called.
func NewClient(url string, reconnectDelay time.Duration, log logger.Logger) *Client {
	return &Client{
		url:            url,
		reconnectDelay: reconnectDelay,
		dialer:         websocket.DefaultDialer,
		events:         make(chan protocol.Message, 64),
		log:            log,
	}
}

// Connected reports whether the link is currently up.
func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) Events() <-chan protocol.Message {
	return c.events
}

// Send implements Backend.
func (c *Client) Send(ctx context.Context, msg protocol.Message) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		defer conn.SetWriteDeadline(time.Time{})
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Run dials the backend and receives until ctx is done, reconnecting
// after reconnectDelay whenever the link fails.
func (c *Client) Run(ctx context.Context) error {
	for {
		if err := c.connectAndReceive(ctx); err != nil {
			c.log.Warn("Backend link down", slog.String("url", c.url), slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Client) connectAndReceive(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.log.Info("Connected to backend", slog.String("url", c.url))

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return fmt.Errorf("closed by backend: %w", err)
			}
			return fmt.Errorf("read: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		var msg protocol.Message
		if err := msg.Decode(data); err != nil {
			c.log.Warn("Failed to decode backend message", slog.String("error", err.Error()))
			continue
		}

		select {
		case c.events <- msg:
		case <-ctx.Done():
			return nil
		}
	}
}
