// Package irc models the subset of the IRC wire protocol the bridge relays.
package irc

import "strings"

// BridgeHost is the host part of every prefix the bridge emits.
const BridgeHost = "bridge"

// Prefix identifies the origin of a message as nick!user@host.
type Prefix struct {
	Nick string
	User string
	Host string
}

// String renders the prefix without the leading colon.
func (p Prefix) String() string {
	var b strings.Builder
	b.WriteString(p.Nick)
	if p.User != "" {
		b.WriteByte('!')
		b.WriteString(p.User)
	}
	if p.Host != "" {
		b.WriteByte('@')
		b.WriteString(p.Host)
	}
	return b.String()
}

// Command is one of the wire commands below. The set is closed.
type Command interface {
	command()
}

// Ping asks the peer to answer with a Pong carrying the same tokens.
type Ping struct {
	Token  string
	Token2 string
}

// Pong answers a Ping.
type Pong struct {
	Token  string
	Token2 string
}

// PrivMsg is a chat message to a channel or nick.
type PrivMsg struct {
	Target string
	Text   string
}

// Notice is a message that must never trigger an automatic reply.
type Notice struct {
	Target string
	Text   string
}

// Error tells the client the link is about to close.
type Error struct {
	Reason string
}

// Raw is a preformatted protocol line sent verbatim.
type Raw struct {
	Text string
}

// Other carries any inbound command outside the relay subset.
type Other struct {
	Verb   string
	Params []string
}

func (Ping) command()    {}
func (Pong) command()    {}
func (PrivMsg) command() {}
func (Notice) command()  {}
func (Error) command()   {}
func (Raw) command()     {}
func (Other) command()   {}

// Message is a single wire message. Prefix is nil for messages without an
// originating identity.
type Message struct {
	Prefix  *Prefix
	Command Command
}

// Verb returns the protocol verb of the message command.
func (m Message) Verb() string {
	switch c := m.Command.(type) {
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case PrivMsg:
		return "PRIVMSG"
	case Notice:
		return "NOTICE"
	case Error:
		return "ERROR"
	case Raw:
		return "RAW"
	case Other:
		return c.Verb
	default:
		return "UNKNOWN"
	}
}

// ResponseTarget returns where a reply to m should go: the channel for
// channel-addressed PRIVMSG/NOTICE, otherwise the prefix nickname.
func (m Message) ResponseTarget() (string, bool) {
	switch c := m.Command.(type) {
	case PrivMsg:
		if IsChannelName(c.Target) {
			return c.Target, true
		}
	case Notice:
		if IsChannelName(c.Target) {
			return c.Target, true
		}
	}
	if m.Prefix != nil && m.Prefix.Nick != "" {
		return m.Prefix.Nick, true
	}
	return "", false
}

// IsChannelName reports whether name uses one of the RFC 2812 channel prefixes.
func IsChannelName(name string) bool {
	if name == "" {
		return false
	}
	switch name[0] {
	case '#', '&', '+', '!':
		return true
	}
	return false
}
