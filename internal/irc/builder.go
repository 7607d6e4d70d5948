package irc

import "strings"

// shortUserLen bounds the user part derived from a nickname.
const shortUserLen = 6

// EventKind selects the wire command a chat event is delivered as.
type EventKind int

const (
	EventMessage EventKind = iota
	EventNotice
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// ChatEvent is a backend chat event on its way to the client.
//
// Target is a channel name, or for direct messages the nick the client
// knows itself by. Text may span several lines.
type ChatEvent struct {
	Kind   EventKind
	From   string
	Target string
	Text   string
}

// Lines converts ev into one wire message per line of its text.
// An empty text still yields a single empty message.
func Lines(ev ChatEvent) []Message {
	lines := strings.Split(ev.Text, "\n")
	msgs := make([]Message, 0, len(lines))
	for _, line := range lines {
		switch ev.Kind {
		case EventNotice:
			msgs = append(msgs, NoticeFrom(ev.From, ev.Target, line))
		default:
			msgs = append(msgs, PrivMsgFrom(ev.From, ev.Target, line))
		}
	}
	return msgs
}

// ShortUser derives the user part of a prefix from a nickname.
// Truncation counts bytes, so a multi-byte character may be cut.
func ShortUser(nick string) string {
	return nick[:min(len(nick), shortUserLen)]
}

func prefixed(from string, cmd Command) Message {
	return Message{
		Prefix: &Prefix{
			Nick: from,
			User: ShortUser(from),
			Host: BridgeHost,
		},
		Command: cmd,
	}
}

// PongMsg answers a PING.
func PongMsg(token, token2 string) Message {
	return Message{Command: Pong{Token: token, Token2: token2}}
}

// PrivMsgFrom is a PRIVMSG to target appearing to come from from.
func PrivMsgFrom(from, target, text string) Message {
	return prefixed(from, PrivMsg{Target: target, Text: text})
}

// NoticeFrom is a NOTICE to target appearing to come from from.
func NoticeFrom(from, target, text string) Message {
	return prefixed(from, Notice{Target: target, Text: text})
}

// ErrorMsg builds an ERROR. Queuing one shuts the connection down once it is written.
func ErrorMsg(reason string) Message {
	return Message{Command: Error{Reason: reason}}
}

// RawMsg sends text to the client as is.
func RawMsg(text string) Message {
	return Message{Command: Raw{Text: text}}
}
