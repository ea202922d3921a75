package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MessageType identifies in-session control payloads sent over the
// realtime data channel.
type MessageType string

const (
	TypeUserDisconnect MessageType = "user_disconnect"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrInvalidEncoding = errors.New("control message is not valid UTF-8")
)

type Envelope struct {
	Type MessageType `json:"type"`
}

// DisconnectSignal asks the client to leave the session.
type DisconnectSignal struct {
	Type   MessageType `json:"type"`
	Reason string      `json:"reason,omitempty"`
}

// ParseControlMessage decodes a data-channel payload. Callers log and drop
// any error; a bad message never ends the session.
func ParseControlMessage(raw []byte) (any, error) {
	if !utf8.Valid(raw) {
		return nil, ErrInvalidEncoding
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserDisconnect:
		var msg DisconnectSignal
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, env.Type)
	}
}

// IsDisconnect reports whether raw parses as a disconnect signal.
func IsDisconnect(raw []byte) bool {
	msg, err := ParseControlMessage(raw)
	if err != nil {
		return false
	}
	_, ok := msg.(DisconnectSignal)
	return ok
}

// EncodeDisconnect builds the payload an agent sends to end the session.
func EncodeDisconnect(reason string) []byte {
	b, _ := json.Marshal(DisconnectSignal{Type: TypeUserDisconnect, Reason: reason})
	return b
}
