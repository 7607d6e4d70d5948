package ircd_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/ircd"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

func queued(msgs ...irc.Message) <-chan irc.Message {
	ch := make(chan irc.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return ch
}

func TestRunWriteLoop_StopsAfterError(t *testing.T) {
	sink := &fakeSink{}
	queue := queued(
		irc.PrivMsgFrom("alice", "#room", "first"),
		irc.ErrorMsg("bye"),
		irc.PrivMsgFrom("alice", "#room", "never sent"),
	)

	err := ircd.RunWriteLoop(context.Background(), sink, queue, logger.NewNop())
	require.NoError(t, err)

	sent := sink.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, irc.PrivMsg{Target: "#room", Text: "first"}, sent[0].Command)
	assert.Equal(t, irc.Error{Reason: "bye"}, sent[1].Command)
	assert.True(t, sink.Closed())
}

func TestRunWriteLoop_QueueClosed(t *testing.T) {
	sink := &fakeSink{}
	queue := queued(irc.PongMsg("a", ""), irc.RawMsg(":bridge 001 bob :hi"), irc.NoticeFrom("x", "y", "z"))

	err := ircd.RunWriteLoop(context.Background(), sink, queue, logger.NewNop())
	require.NoError(t, err)

	assert.Len(t, sink.Sent(), 3)
	assert.False(t, sink.Closed(), "queue closure must not close the transport")
}

func TestRunWriteLoop_PreservesOrder(t *testing.T) {
	sink := &fakeSink{}
	var msgs []irc.Message
	for _, text := range []string{"1", "2", "3", "4", "5"} {
		msgs = append(msgs, irc.PrivMsgFrom("a", "#r", text))
	}

	require.NoError(t, ircd.RunWriteLoop(context.Background(), sink, queued(msgs...), logger.NewNop()))
	assert.Equal(t, msgs, sink.Sent())
}

func TestRunWriteLoop_WriteFailure(t *testing.T) {
	boom := errors.New("broken pipe")
	sink := &fakeSink{sendErr: boom}

	err := ircd.RunWriteLoop(context.Background(), sink, queued(irc.PongMsg("a", ""), irc.PongMsg("b", "")), logger.NewNop())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, sink.Closed())
}
