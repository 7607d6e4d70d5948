// Package protocol defines the envelope exchanged with the chat backend.
package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// Kind is the backend delivery semantics of a chat message.
type Kind int

const (
	KindText Kind = iota
	KindNotice
	KindEmote
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindNotice:
		return "NOTICE"
	case KindEmote:
		return "EMOTE"
	default:
		return "UNKNOWN"
	}
}

// Message is one chat message travelling to or from the backend.
// TxnID is set by the bridge on outgoing messages and echoed back by the
// backend so the bridge can recognise its own messages.
type Message struct {
	Kind   Kind
	Room   string
	Sender string
	Body   string
	TxnID  string
}

// Field numbers of the envelope on the wire.
const (
	fieldKind   protowire.Number = 1
	fieldRoom   protowire.Number = 2
	fieldSender protowire.Number = 3
	fieldBody   protowire.Number = 4
	fieldTxnID  protowire.Number = 5
)

// wire kind values; 0 is left unset so a missing field decodes as text.
const (
	wireKindUnspecified uint64 = iota
	wireKindText
	wireKindNotice
	wireKindEmote
)

var ErrInvalidUTF8 = errors.New("string field is not valid UTF-8")

// Encode encodes the message into protobuf wire format
func (m *Message) Encode() ([]byte, error) {
	for _, s := range []string{m.Room, m.Sender, m.Body, m.TxnID} {
		if !utf8.ValidString(s) {
			return nil, fmt.Errorf("failed to encode message: %w", ErrInvalidUTF8)
		}
	}

	var b []byte
	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, kindToWire(m.Kind))
	b = appendString(b, fieldRoom, m.Room)
	b = appendString(b, fieldSender, m.Sender)
	b = appendString(b, fieldBody, m.Body)
	b = appendString(b, fieldTxnID, m.TxnID)
	return b, nil
}

// Decode decodes protobuf wire format into a message.
// Unknown fields are skipped.
func (m *Message) Decode(data []byte) error {
	*m = Message{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("failed to decode message: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("failed to decode kind: %w", protowire.ParseError(n))
			}
			m.Kind = kindFromWire(v)
			data = data[n:]
		case typ == protowire.BytesType && num >= fieldRoom && num <= fieldTxnID:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return fmt.Errorf("failed to decode field %d: %w", num, protowire.ParseError(n))
			}
			if !utf8.ValidString(v) {
				return fmt.Errorf("failed to decode field %d: %w", num, ErrInvalidUTF8)
			}
			m.setString(num, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("failed to skip field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func (m *Message) setString(num protowire.Number, v string) {
	switch num {
	case fieldRoom:
		m.Room = v
	case fieldSender:
		m.Sender = v
	case fieldBody:
		m.Body = v
	case fieldTxnID:
		m.TxnID = v
	}
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// kindToWire converts Kind to its wire value.
// Unknown kinds are sent as text so a peer never sees an unspecified kind.
func kindToWire(k Kind) uint64 {
	switch k {
	case KindText:
		return wireKindText
	case KindNotice:
		return wireKindNotice
	case KindEmote:
		return wireKindEmote
	default:
		return wireKindText
	}
}

// kindFromWire converts a wire value to Kind, defaulting to text.
func kindFromWire(v uint64) Kind {
	switch v {
	case wireKindNotice:
		return KindNotice
	case wireKindEmote:
		return KindEmote
	default:
		return KindText
	}
}
