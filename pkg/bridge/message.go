package bridge

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/gregLibert/hce-card/pkg/hce"
)

// ErrMalformedMessage marks a frame that was read completely but whose
// payload cannot be decoded. The link stays usable after it.
var ErrMalformedMessage = errors.New("malformed message")

// MessageType is the first payload byte of a frame.
type MessageType byte

const (
	// MsgCommand carries a command APDU from the reader.
	MsgCommand MessageType = 0x01
	// MsgResponse carries the response APDU back to the reader.
	MsgResponse MessageType = 0x02
	// MsgDeactivated reports that the field was lost. One reason byte follows.
	MsgDeactivated MessageType = 0x03
)

func (t MessageType) String() string {
	switch t {
	case MsgCommand:
		return "COMMAND"
	case MsgResponse:
		return "RESPONSE"
	case MsgDeactivated:
		return "DEACTIVATED"
	default:
		return fmt.Sprintf("MessageType(0x%02X)", byte(t))
	}
}

// Message is one decoded frame payload.
type Message struct {
	Type   MessageType
	APDU   []byte
	Reason hce.DeactivationReason
}

// CommandMessage wraps a command APDU.
func CommandMessage(apdu []byte) Message {
	return Message{Type: MsgCommand, APDU: apdu}
}

// ResponseMessage wraps a response APDU.
func ResponseMessage(apdu []byte) Message {
	return Message{Type: MsgResponse, APDU: apdu}
}

// DeactivatedMessage reports a link deactivation.
func DeactivatedMessage(reason hce.DeactivationReason) Message {
	return Message{Type: MsgDeactivated, Reason: reason}
}

// MarshalBinary encodes the frame payload.
func (m Message) MarshalBinary() ([]byte, error) {
	switch m.Type {
	case MsgCommand, MsgResponse:
		out := make([]byte, 0, 1+len(m.APDU))
		out = append(out, byte(m.Type))
		return append(out, m.APDU...), nil
	case MsgDeactivated:
		if m.Reason < 0 || m.Reason > 0xFF {
			return nil, errors.Errorf("deactivation reason %d does not fit in a byte", int(m.Reason))
		}
		return []byte{byte(m.Type), byte(m.Reason)}, nil
	default:
		return nil, errors.Errorf("unknown message type %s", m.Type)
	}
}

// ParseMessage decodes a frame payload. Errors wrap ErrMalformedMessage.
func ParseMessage(payload []byte) (Message, error) {
	if len(payload) == 0 {
		return Message{}, errors.Wrap(ErrMalformedMessage, "empty payload")
	}

	m := Message{Type: MessageType(payload[0])}
	body := payload[1:]

	switch m.Type {
	case MsgCommand, MsgResponse:
		m.APDU = append([]byte(nil), body...)
	case MsgDeactivated:
		if len(body) != 1 {
			return Message{}, errors.Wrapf(ErrMalformedMessage, "deactivation body has %d bytes, want 1", len(body))
		}
		m.Reason = hce.DeactivationReason(body[0])
	default:
		return Message{}, errors.Wrapf(ErrMalformedMessage, "unknown message type 0x%02X", payload[0])
	}

	return m, nil
}
