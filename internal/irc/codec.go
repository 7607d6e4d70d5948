package irc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ergochat/irc-go/ircmsg"
)

// ErrMalformed is returned by Decode for lines that are not valid IRC.
var ErrMalformed = errors.New("malformed irc line")

var paramCleaner = strings.NewReplacer("\r", "", "\n", "", "\x00", "")

// Encode renders m as a CRLF terminated protocol line.
func Encode(m Message) (string, error) {
	if raw, ok := m.Command.(Raw); ok {
		return strings.TrimRight(raw.Text, "\r\n") + "\r\n", nil
	}

	var verb string
	var params []string
	switch c := m.Command.(type) {
	case Ping:
		verb, params = "PING", tokens(c.Token, c.Token2)
	case Pong:
		verb, params = "PONG", tokens(c.Token, c.Token2)
	case PrivMsg:
		verb, params = "PRIVMSG", []string{c.Target, c.Text}
	case Notice:
		verb, params = "NOTICE", []string{c.Target, c.Text}
	case Error:
		verb, params = "ERROR", []string{c.Reason}
	case Other:
		verb, params = c.Verb, append([]string(nil), c.Params...)
	default:
		return "", fmt.Errorf("encode: unsupported command %T", m.Command)
	}

	for i := range params {
		params[i] = paramCleaner.Replace(params[i])
	}

	source := ""
	if m.Prefix != nil {
		source = m.Prefix.String()
	}

	msg := ircmsg.MakeMessage(nil, source, verb, params...)
	line, err := msg.Line()
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", verb, err)
	}
	return line, nil
}

// Decode parses one protocol line, with or without its line terminator.
func Decode(line string) (Message, error) {
	msg, err := ircmsg.ParseLine(strings.TrimRight(line, "\r\n"))
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var m Message
	if msg.Source != "" {
		m.Prefix = parsePrefix(msg.Source)
	}

	verb := strings.ToUpper(msg.Command)
	p := msg.Params
	switch {
	case verb == "PING" && len(p) >= 1:
		m.Command = Ping{Token: p[0], Token2: param(p, 1)}
	case verb == "PONG" && len(p) >= 1:
		m.Command = Pong{Token: p[0], Token2: param(p, 1)}
	case verb == "PRIVMSG" && len(p) >= 2:
		m.Command = PrivMsg{Target: p[0], Text: p[1]}
	case verb == "NOTICE" && len(p) >= 2:
		m.Command = Notice{Target: p[0], Text: p[1]}
	case verb == "ERROR" && len(p) >= 1:
		m.Command = Error{Reason: p[0]}
	default:
		m.Command = Other{Verb: verb, Params: p}
	}
	return m, nil
}

func parsePrefix(source string) *Prefix {
	p := &Prefix{}
	rest, host, hasHost := strings.Cut(source, "@")
	if hasHost {
		p.Host = host
	}
	nick, user, hasUser := strings.Cut(rest, "!")
	p.Nick = nick
	if hasUser {
		p.User = user
	}
	return p
}

func tokens(token, token2 string) []string {
	if token2 == "" {
		return []string{token}
	}
	return []string{token, token2}
}

func param(p []string, i int) string {
	if i < len(p) {
		return p[i]
	}
	return ""
}
