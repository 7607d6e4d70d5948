package chat_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-bridge/internal/chat"
	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
)

// recordingSender collects queued messages.
type recordingSender struct {
	mu   sync.Mutex
	msgs []irc.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg irc.Message) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) Messages() []irc.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]irc.Message(nil), r.msgs...)
}

func TestHub_Register(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())
	client := &chat.Client{Nick: "testuser", Sender: &recordingSender{}}

	hub.Register(client)
	hub.Register(client)

	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func TestHub_Register_MultipleClients(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())

	for _, nick := range []string{"carol", "alice", "bob"} {
		hub.Register(&chat.Client{Nick: nick, Sender: &recordingSender{}})
	}

	if got := hub.ClientCount(); got != 3 {
		t.Errorf("ClientCount() = %d, want 3", got)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, hub.Nicks())
}

func TestHub_Unregister(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())
	client := &chat.Client{Nick: "bob", Sender: &recordingSender{}}

	hub.Register(client)
	hub.Unregister(client)
	hub.Unregister(client)

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())
	alice := &recordingSender{}
	bob := &recordingSender{}
	hub.Register(&chat.Client{Nick: "alice", Sender: alice})
	hub.Register(&chat.Client{Nick: "bob", Sender: bob})

	hub.Broadcast(context.Background(), irc.ChatEvent{
		Kind:   irc.EventMessage,
		From:   "carol",
		Target: "#room",
		Text:   "one\ntwo",
	})

	for _, s := range []*recordingSender{alice, bob} {
		msgs := s.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, irc.PrivMsg{Target: "#room", Text: "one"}, msgs[0].Command)
		assert.Equal(t, irc.PrivMsg{Target: "#room", Text: "two"}, msgs[1].Command)
	}
}

func TestHub_Broadcast_QueryTargetsOwnNick(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())
	alice := &recordingSender{}
	hub.Register(&chat.Client{Nick: "alice", Sender: alice})

	hub.Broadcast(context.Background(), irc.ChatEvent{Kind: irc.EventNotice, From: "dave", Text: "psst"})

	msgs := alice.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, irc.Notice{Target: "alice", Text: "psst"}, msgs[0].Command)
	assert.Equal(t, "dave", msgs[0].Prefix.Nick)
}

func TestHub_Broadcast_FailingClientDoesNotBlockOthers(t *testing.T) {
	hub := chat.NewHub(logger.NewNop())
	broken := &recordingSender{err: errors.New("queue closed")}
	ok := &recordingSender{}
	hub.Register(&chat.Client{Nick: "broken", Sender: broken})
	hub.Register(&chat.Client{Nick: "ok", Sender: ok})

	hub.Broadcast(context.Background(), irc.ChatEvent{Kind: irc.EventMessage, From: "x", Target: "#r", Text: "a\nb"})

	assert.Len(t, ok.Messages(), 2)
	assert.Empty(t, broken.Messages())
}
