package server_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/ircd"
	"github.com/omochice/toy-irc-bridge/internal/server"
	wstransport "github.com/omochice/toy-irc-bridge/internal/transport/ws"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

type recordingRouter struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingRouter) ToBackend(_ context.Context, target string, _ protocol.Kind, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, target+" "+text)
	return nil
}

func (r *recordingRouter) Channels() []string { return []string{"#general"} }

func (r *recordingRouter) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func startServer(t *testing.T) (*server.Server, *chat.Hub, *recordingRouter, context.CancelFunc, <-chan error) {
	t.Helper()
	hub := chat.NewHub(logger.NewNop())
	router := &recordingRouter{}
	srv := server.New("127.0.0.1:0", hub, router, ircd.Config{
		ServerName:          "irc.test",
		BridgeNick:          "bridge",
		QueueSize:           16,
		RegistrationTimeout: 2 * time.Second,
		ShutdownGrace:       500 * time.Millisecond,
	}, logger.NewNop())
	require.NoError(t, srv.Listen())
	require.NotEmpty(t, srv.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(cancel)
	return srv, hub, router, cancel, done
}

// lineClient reads and writes IRC lines over any transport.
type lineClient interface {
	send(t *testing.T, line string)
	next(t *testing.T) (string, error)
}

func expectLine(t *testing.T, c lineClient, contains string) string {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		line, err := c.next(t)
		require.NoError(t, err, "waiting for %q", contains)
		if strings.Contains(line, contains) {
			return line
		}
	}
	t.Fatalf("no line containing %q", contains)
	return ""
}

type tcpClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func dialTCP(t *testing.T, addr string) *tcpClient {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &tcpClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *tcpClient) send(t *testing.T, line string) {
	t.Helper()
	_, err := io.WriteString(c.conn, line+"\r\n")
	require.NoError(t, err)
}

func (c *tcpClient) next(t *testing.T) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	line, err := c.r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

type wsClient struct {
	conn net.Conn
	rw   io.ReadWriter
}

func dialWS(t *testing.T, addr string) *wsClient {
	t.Helper()
	dialer := ws.Dialer{Protocols: []string{wstransport.Subprotocol}}
	conn, br, hs, err := dialer.Dial(context.Background(), "ws://"+addr+"/")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	assert.Equal(t, wstransport.Subprotocol, hs.Protocol)

	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return &wsClient{conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{r, conn}}
}

func (c *wsClient) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, wsutil.WriteClientText(c.conn, []byte(line)))
}

func (c *wsClient) next(t *testing.T) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	data, err := wsutil.ReadServerText(c.rw)
	return string(data), err
}

func register(t *testing.T, c lineClient, nick string) {
	t.Helper()
	c.send(t, "NICK "+nick)
	c.send(t, "USER "+nick+" 0 * :"+nick)
	expectLine(t, c, " 001 "+nick+" ")
	expectLine(t, c, "JOIN #general")
}

func TestServer_TCPAndWebSocketClients(t *testing.T) {
	srv, hub, router, _, _ := startServer(t)

	tcpc := dialTCP(t, srv.Addr())
	register(t, tcpc, "alice")
	wsc := dialWS(t, srv.Addr())
	register(t, wsc, "bob")

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	tcpc.send(t, "PRIVMSG #general :from tcp")
	wsc.send(t, "PRIVMSG #general :from ws")
	require.Eventually(t, func() bool { return len(router.Sent()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"#general from tcp", "#general from ws"}, router.Sent())

	hub.Broadcast(context.Background(), irc.ChatEvent{From: "carol", Target: "#general", Text: "hello all"})
	assert.Contains(t, expectLine(t, tcpc, "PRIVMSG #general"), "hello all")
	assert.Contains(t, expectLine(t, wsc, "PRIVMSG #general"), "hello all")

	wsc.send(t, "PING :ws-keepalive")
	assert.Contains(t, expectLine(t, wsc, "PONG"), "ws-keepalive")
}

func TestServer_ShutdownNotifiesClients(t *testing.T) {
	srv, hub, _, cancel, done := startServer(t)

	c := dialTCP(t, srv.Addr())
	register(t, c, "alice")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.Contains(t, expectLine(t, c, "ERROR"), "Bridge shutting down")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after shutdown")
	}
	assert.Equal(t, 0, hub.ClientCount())

	_, err := net.DialTimeout("tcp", srv.Addr(), 200*time.Millisecond)
	assert.Error(t, err, "listener must be closed")
}

func TestServer_ClientDisconnectUnregisters(t *testing.T) {
	srv, hub, _, _, _ := startServer(t)

	c := dialTCP(t, srv.Addr())
	register(t, c, "alice")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	c.send(t, "QUIT :bye")
	_ = c.conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_ServeWithoutListen(t *testing.T) {
	srv := server.New("127.0.0.1:0", chat.NewHub(logger.NewNop()), &recordingRouter{}, ircd.Config{}, logger.NewNop())
	assert.Error(t, srv.Serve(context.Background()))
	assert.Empty(t, srv.Addr())
}
