// Package mappings resolves client-side names to backend rooms and back.
package mappings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"
	"golang.org/x/time/rate"

	"github.com/omochice/toy-irc-bridge/internal/irc"
	"github.com/omochice/toy-irc-bridge/internal/metrics"
	"github.com/omochice/toy-irc-bridge/pkg/logger"
	"github.com/omochice/toy-irc-bridge/pkg/protocol"
)

var (
	// ErrUnknownTarget is returned when a client addresses a name with no room behind it.
	ErrUnknownTarget = errors.New("no room mapped to target")
	// ErrRateLimited is returned when the backend send budget is exhausted.
	ErrRateLimited = errors.New("backend rate limit exceeded")
)

// Room binds a backend room id to the name clients see. Names starting with
// a channel prefix are channels, any other name is a direct conversation.
type Room struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// IsQuery reports whether the room is a direct conversation.
func (r Room) IsQuery() bool {
	return !irc.IsChannelName(r.Name)
}

// Sender delivers envelopes to the backend.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

// Publisher fans a chat event out to the connected clients.
type Publisher interface {
	Broadcast(ctx context.Context, ev irc.ChatEvent)
}

// Options tunes a Registry. Zero values select the defaults.
type Options struct {
	// Identity is the backend user the bridge posts as.
	Identity      string
	RatePerSecond float64
	Burst         int
	EchoTTL       time.Duration
}

// Registry is the routing table between client names and backend rooms.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Room
	byID   map[string]Room

	backend  Sender
	identity string
	limiter  *rate.Limiter
	issued   *otter.Cache[string, struct{}]
	log      logger.Logger
}

func New(backend Sender, rooms []Room, opts Options, log logger.Logger) (*Registry, error) {
	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := opts.EchoTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	r := &Registry{
		byName:   make(map[string]Room),
		byID:     make(map[string]Room),
		backend:  backend,
		identity: opts.Identity,
		limiter:  rate.NewLimiter(limit, burst),
		issued: otter.Must(&otter.Options[string, struct{}]{
			MaximumSize:      10_000,
			ExpiryCalculator: otter.ExpiryWriting[string, struct{}](ttl),
		}),
		log: log,
	}
	for _, room := range rooms {
		if err := r.Add(room); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add maps a room. Names are matched case-insensitively.
func (r *Registry) Add(room Room) error {
	if room.ID == "" || room.Name == "" {
		return fmt.Errorf("room %q/%q: id and name are required", room.ID, room.Name)
	}
	if strings.ContainsAny(room.Name, " ,\x07\r\n\x00") {
		return fmt.Errorf("room %s: invalid name %q", room.ID, room.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(room.Name)
	if other, ok := r.byName[key]; ok && other.ID != room.ID {
		return fmt.Errorf("room %s: name %s already mapped to %s", room.ID, room.Name, other.ID)
	}
	if old, ok := r.byID[room.ID]; ok {
		delete(r.byName, strings.ToLower(old.Name))
	}
	r.byName[key] = room
	r.byID[room.ID] = room
	return nil
}

// Rooms lists every mapping ordered by name.
func (r *Registry) Rooms() []Room {
	r.mu.RLock()
	rooms := make([]Room, 0, len(r.byID))
	for _, room := range r.byID {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b Room) int { return strings.Compare(a.Name, b.Name) })
	return rooms
}

// Channels lists the channel names clients are joined to.
func (r *Registry) Channels() []string {
	var names []string
	for _, room := range r.Rooms() {
		if !room.IsQuery() {
			names = append(names, room.Name)
		}
	}
	return names
}

func (r *Registry) lookupName(name string) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.byName[strings.ToLower(name)]
	return room, ok
}

// ToBackend sends client content to the room mapped to target.
func (r *Registry) ToBackend(ctx context.Context, target string, kind protocol.Kind, text string) error {
	room, ok := r.lookupName(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
	}
	if !r.limiter.Allow() {
		return ErrRateLimited
	}

	txnID := uuid.NewString()
	r.issued.Set(txnID, struct{}{})

	err := r.backend.Send(ctx, protocol.Message{
		Kind:   kind,
		Room:   room.ID,
		Sender: r.identity,
		Body:   text,
		TxnID:  txnID,
	})
	if err != nil {
		r.issued.Invalidate(txnID)
		return fmt.Errorf("send to room %s: %w", room.ID, err)
	}
	return nil
}

// FromBackend converts a backend envelope into a chat event. It reports false
// for echoes of envelopes this registry sent. A room seen for the first time
// is mapped to a channel derived from its id.
func (r *Registry) FromBackend(msg protocol.Message) (irc.ChatEvent, bool) {
	if msg.TxnID != "" {
		if _, ok := r.issued.GetIfPresent(msg.TxnID); ok {
			return irc.ChatEvent{}, false
		}
	}

	room := r.roomFor(msg.Room)

	ev := irc.ChatEvent{Kind: irc.EventMessage, Text: msg.Body}
	switch msg.Kind {
	case protocol.KindNotice:
		ev.Kind = irc.EventNotice
	case protocol.KindEmote:
		ev.Text = "\x01ACTION " + strings.ReplaceAll(msg.Body, "\n", " ") + "\x01"
	}

	if room.IsQuery() {
		ev.From = room.Name
		return ev, true
	}
	ev.From = SanitizeNick(msg.Sender)
	ev.Target = room.Name
	return ev, true
}

func (r *Registry) roomFor(id string) Room {
	r.mu.RLock()
	room, ok := r.byID[id]
	r.mu.RUnlock()
	if ok {
		return room
	}
	if id == "" {
		return Room{Name: "#unknown"}
	}

	room = Room{ID: id, Name: "#" + SanitizeName(id)}
	for i := 2; ; i++ {
		err := r.Add(room)
		if err == nil {
			break
		}
		room.Name = fmt.Sprintf("#%s-%d", SanitizeName(id), i)
	}
	r.log.Info("Mapped new backend room", slog.String("room", id), slog.String("name", room.Name))
	return room
}

// Dispatch relays backend envelopes to pub until events is closed or ctx is done.
func (r *Registry) Dispatch(ctx context.Context, events <-chan protocol.Message, pub Publisher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			ev, deliver := r.FromBackend(msg)
			if !deliver {
				metrics.BackendEvents.WithLabelValues("echo").Inc()
				r.log.Trace("Dropped echo", slog.String("txn", msg.TxnID))
				continue
			}
			metrics.BackendEvents.WithLabelValues("delivered").Inc()
			pub.Broadcast(ctx, ev)
		}
	}
}

// SanitizeName lowercases id and replaces anything unsafe in a channel name.
func SanitizeName(id string) string {
	var b strings.Builder
	for _, c := range strings.ToLower(id) {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// SanitizeNick makes a backend display name usable as a prefix nickname.
func SanitizeNick(name string) string {
	if name == "" {
		return "backend"
	}
	return strings.Map(func(c rune) rune {
		switch c {
		case ' ', '!', '@', ':', ',', '*', '?', '\r', '\n', '\x00':
			return '_'
		}
		return c
	}, name)
}
