package ircd_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

type recvResult struct {
	msg irc.Message
	err error
}

// fakeSource replays scripted results, then io.EOF.
type fakeSource struct {
	results chan recvResult
}

func newFakeSource(results ...recvResult) *fakeSource {
	ch := make(chan recvResult, len(results))
	for _, r := range results {
		ch <- r
	}
	close(ch)
	return &fakeSource{results: ch}
}

func (f *fakeSource) Recv(ctx context.Context) (irc.Message, error) {
	select {
	case <-ctx.Done():
		return irc.Message{}, ctx.Err()
	case r, ok := <-f.results:
		if !ok {
			return irc.Message{}, io.EOF
		}
		return r.msg, r.err
	}
}

func msgOf(cmd irc.Command) recvResult {
	return recvResult{msg: irc.Message{Command: cmd}}
}

// fakeSink records written messages and the close call.
type fakeSink struct {
	mu      sync.Mutex
	sent    []irc.Message
	closed  bool
	sendErr error
}

func (f *fakeSink) Send(_ context.Context, msg irc.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	if f.closed {
		return fmt.Errorf("send after close: %s", msg.Verb())
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) Sent() []irc.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]irc.Message(nil), f.sent...)
}

func (f *fakeSink) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// recordingSender stands in for the outbound queue.
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

type forwarded struct {
	Target string
	Kind   protocol.Kind
	Text   string
}

// fakeRouter records forwarded content and fails for targets in failFor.
type fakeRouter struct {
	mu       sync.Mutex
	got      []forwarded
	failFor  map[string]error
	channels []string
}

func (f *fakeRouter) ToBackend(_ context.Context, target string, kind protocol.Kind, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, forwarded{Target: target, Kind: kind, Text: text})
	if err, ok := f.failFor[target]; ok {
		return err
	}
	return nil
}

func (f *fakeRouter) Channels() []string {
	return f.channels
}

func (f *fakeRouter) Forwarded() []forwarded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]forwarded(nil), f.got...)
}

// recordingLogger keeps warn and info messages for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *recordingLogger) SetLogLevel(string)   {}
func (l *recordingLogger) GetLogLevel() string  { return "trace" }
func (l *recordingLogger) Trace(string, ...any) {}
func (l *recordingLogger) Debug(string, ...any) {}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(string, error, ...any) {}
func (l *recordingLogger) Fatal(string, error, ...any) {}

func (l *recordingLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func (l *recordingLogger) Infos() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.infos...)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}
