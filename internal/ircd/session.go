package ircd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

var errQuit = errors.New("client quit before registering")

// Router is the routing registry as seen by a session.
type Router interface {
	Forwarder

	// Channels lists the channel names a client is joined to on connect.
	Channels() []string
}

// Config holds the per-session settings.
type Config struct {
	ServerName          string
	BridgeNick          string
	QueueSize           int
	RegistrationTimeout time.Duration
	ShutdownGrace       time.Duration
}

// Session supervises one client connection: registration first, then the
// read and write loops until either of them ends.
type Session struct {
	conn   chat.Conn
	hub    *chat.Hub
	router Router
	cfg    Config
	log    logger.Logger
}

// NewSession wraps an accepted connection. Nothing is read until Serve.
func NewSession(conn chat.Conn, hub *chat.Hub, router Router, cfg Config, log logger.Logger) *Session {
	return &Session{
		conn:   conn,
		hub:    hub,
		router: router,
		cfg:    cfg,
		log:    log,
	}
}

// Serve runs the session until the connection is finished.
//
// Cancelling ctx queues an ERROR so the client is told why it is dropped;
// the connection is closed regardless once ShutdownGrace has passed.
func (s *Session) Serve(ctx context.Context) error {
	src, sink := s.conn.Split()

	nick, err := s.register(ctx, src, sink)
	switch {
	case errors.Is(err, errQuit):
		_ = sink.Send(ctx, irc.ErrorMsg("Closing link"))
		_ = s.conn.Close()
		return nil
	case errors.Is(err, io.EOF):
		_ = s.conn.Close()
		return nil
	}
	if err != nil {
		_ = s.conn.Close()
		return fmt.Errorf("registration: %w", err)
	}
	s.log.Info("Client registered", slog.String("nick", nick), slog.String("addr", s.conn.RemoteAddr()))

	queue := NewQueue(s.cfg.QueueSize)
	client := &chat.Client{Nick: nick, Addr: s.conn.RemoteAddr(), Sender: queue}
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	stop := context.AfterFunc(ctx, func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
		defer cancel()
		if err := queue.Send(sendCtx, irc.ErrorMsg("Bridge shutting down")); err != nil {
			_ = s.conn.Close()
			return
		}
		time.AfterFunc(s.cfg.ShutdownGrace, func() { _ = s.conn.Close() })
	})
	defer stop()

	// the loops only stop through the connection or the queue, never ctx
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.Go(func() error {
		defer queue.Close()
		defer s.conn.Close()
		return RunWriteLoop(gctx, sink, queue.Receive(), s.log)
	})
	g.Go(func() error {
		defer queue.Close()
		defer s.hub.Unregister(client)
		return RunReadLoop(gctx, src, ReadDeps{
			Sender:         queue,
			Forwarder:      s.router,
			BridgeNick:     s.cfg.BridgeNick,
			FallbackTarget: s.cfg.BridgeNick,
			Log:            s.log,
		})
	})

	err = g.Wait()
	s.log.Info("Client disconnected", slog.String("nick", nick))
	return err
}

// register waits for NICK and USER, then sends the welcome burst and joins
// the client to every mapped channel.
func (s *Session) register(ctx context.Context, src chat.Source, sink chat.Sink) (string, error) {
	if s.cfg.RegistrationTimeout > 0 {
		if err := s.conn.SetReadDeadline(time.Now().Add(s.cfg.RegistrationTimeout)); err != nil {
			return "", err
		}
		defer s.conn.SetReadDeadline(time.Time{})
	}

	var nick, user string
	for nick == "" || user == "" {
		msg, err := src.Recv(ctx)
		if err != nil {
			return "", err
		}

		var reply string
		switch c := msg.Command.(type) {
		case irc.Ping:
			if err := sink.Send(ctx, irc.PongMsg(c.Token, c.Token2)); err != nil {
				return "", err
			}
		case irc.Other:
			switch c.Verb {
			case "NICK":
				if len(c.Params) == 0 || c.Params[0] == "" {
					reply = s.numeric("431", "*", "No nickname given")
					break
				}
				nick = c.Params[0]
			case "USER":
				if len(c.Params) == 0 {
					reply = s.numeric("461", "* USER", "Not enough parameters")
					break
				}
				user = c.Params[0]
			case "QUIT":
				return "", errQuit
			case "CAP", "PASS":
				s.log.Debug("Ignoring command during registration", slog.String("verb", c.Verb))
			default:
				reply = s.numeric("451", "*", "You have not registered")
			}
		default:
			reply = s.numeric("451", "*", "You have not registered")
		}

		if reply != "" {
			if err := sink.Send(ctx, irc.RawMsg(reply)); err != nil {
				return "", err
			}
		}
	}

	burst := []string{
		s.numeric("001", nick, "Welcome to the bridge, "+nick),
		s.numeric("002", nick, "Your host is "+s.cfg.ServerName),
		s.numeric("003", nick, "This server relays chat to its backend"),
		fmt.Sprintf(":%s 004 %s %s toy-irc-bridge o o", s.cfg.ServerName, nick, s.cfg.ServerName),
		s.numeric("422", nick, "MOTD File is missing"),
	}
	self := irc.Prefix{Nick: nick, User: irc.ShortUser(nick), Host: irc.BridgeHost}
	for _, channel := range s.router.Channels() {
		burst = append(burst, fmt.Sprintf(":%s JOIN %s", self.String(), channel))
	}
	for _, line := range burst {
		if err := sink.Send(ctx, irc.RawMsg(line)); err != nil {
			return "", err
		}
	}
	return nick, nil
}

func (s *Session) numeric(code, target, text string) string {
	return fmt.Sprintf(":%s %s %s :%s", s.cfg.ServerName, code, target, text)
}
