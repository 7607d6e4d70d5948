package ircd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/metrics"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

// actionMarker starts a CTCP ACTION (/me) message.
const actionMarker = "\x01ACTION "

// Forwarder relays client chat content to the backend conversation behind target.
type Forwarder interface {
	ToBackend(ctx context.Context, target string, kind protocol.Kind, text string) error
}

// ReadDeps are the collaborators of RunReadLoop.
type ReadDeps struct {
	// Sender is the producer handle of the connection's outbound queue.
	Sender    chat.Sender
	Forwarder Forwarder
	// BridgeNick is the identity failure notices are sent from.
	BridgeNick string
	// FallbackTarget receives failure notices for messages without a reply target.
	FallbackTarget string
	Log            logger.Logger
}

// RunReadLoop consumes src until the client goes away. PINGs are answered
// through the outbound queue, PRIVMSG and NOTICE are forwarded to the backend
// and everything else is logged and dropped.
//
// A failure to queue a PONG is fatal. Forwarding failures are reported to
// the client with a NOTICE and never end the loop.
func RunReadLoop(ctx context.Context, src chat.Source, deps ReadDeps) error {
	for {
		msg, err := src.Recv(ctx)
		if errors.Is(err, io.EOF) {
			deps.Log.Info("Stopping read loop, stream closed")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		deps.Log.Trace("Got message", slog.String("verb", msg.Verb()))

		switch c := msg.Command.(type) {
		case irc.Ping:
			if err := deps.Sender.Send(ctx, irc.PongMsg(c.Token, c.Token2)); err != nil {
				return fmt.Errorf("queue PONG: %w", err)
			}
		case irc.PrivMsg:
			kind, text := classify(c.Text)
			deps.forward(ctx, msg, c.Target, kind, text)
		case irc.Notice:
			deps.forward(ctx, msg, c.Target, protocol.KindNotice, c.Text)
		case irc.Pong, irc.Error, irc.Raw, irc.Other:
			deps.Log.Info("Unhandled message", slog.String("verb", msg.Verb()))
		default:
			deps.Log.Info("Unhandled message", slog.String("type", fmt.Sprintf("%T", c)))
		}
	}
}

// classify detects a CTCP ACTION and strips its markers.
func classify(text string) (protocol.Kind, string) {
	if emote, ok := strings.CutPrefix(text, actionMarker); ok {
		return protocol.KindEmote, strings.TrimSuffix(emote, "\x01")
	}
	return protocol.KindText, text
}

func (d ReadDeps) forward(ctx context.Context, msg irc.Message, target string, kind protocol.Kind, text string) {
	err := d.Forwarder.ToBackend(ctx, target, kind, text)
	if err == nil {
		metrics.ForwardedMessages.WithLabelValues(kind.String()).Inc()
		return
	}

	metrics.ForwardFailures.Inc()
	d.Log.Warn("Could not forward message", slog.String("target", target), slog.String("error", err.Error()))

	replyTo, ok := msg.ResponseTarget()
	if !ok {
		replyTo = d.FallbackTarget
	}
	notice := irc.NoticeFrom(d.BridgeNick, replyTo, fmt.Sprintf("Could not forward: %v", err))
	if err := d.Sender.Send(ctx, notice); err != nil {
		metrics.NoticeFailures.Inc()
		d.Log.Warn("Furthermore, failure notice could not be queued", slog.String("target", replyTo), slog.String("error", err.Error()))
	}
}
