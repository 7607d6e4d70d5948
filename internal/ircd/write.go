package ircd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/metrics"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

// RunWriteLoop drains queue onto sink in order until the queue is closed or
// an ERROR message has been written; after an ERROR the send half is closed
// and nothing else is written. A failed write ends the loop with that error.
func RunWriteLoop(ctx context.Context, sink chat.Sink, queue <-chan irc.Message, log logger.Logger) error {
	for msg := range queue {
		if err := sink.Send(ctx, msg); err != nil {
			return fmt.Errorf("write %s: %w", msg.Verb(), err)
		}
		metrics.WireMessagesSent.WithLabelValues(msg.Verb()).Inc()

		if e, ok := msg.Command.(irc.Error); ok {
			if err := sink.Close(); err != nil {
				return fmt.Errorf("close after ERROR: %w", err)
			}
			log.Info("Stopping write loop to quit", slog.String("reason", e.Reason))
			return nil
		}
	}

	log.Info("Stopping write loop, queue closed")
	return nil
}
