package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/hce-card/pkg/hce"
)

func TestMessageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want []byte
	}{
		{"Command", CommandMessage([]byte{0x00, 0xB2, 0x01, 0x0C}), []byte{0x01, 0x00, 0xB2, 0x01, 0x0C}},
		{"Empty Command", CommandMessage(nil), []byte{0x01}},
		{"Response", ResponseMessage([]byte{0x90, 0x00}), []byte{0x02, 0x90, 0x00}},
		{"Deselected", DeactivatedMessage(hce.DeactivationDeselected), []byte{0x03, 0x01}},
		{"Link Loss", DeactivatedMessage(hce.DeactivationLinkLoss), []byte{0x03, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.msg.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, tt.want, raw)

			got, err := ParseMessage(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.Type, got.Type)
			assert.Equal(t, tt.msg.Reason, got.Reason)
			assert.Equal(t, len(tt.msg.APDU), len(got.APDU))
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	for name, raw := range map[string][]byte{
		"Empty":           {},
		"Unknown Type":    {0x7F, 0x00},
		"Reason Missing":  {0x03},
		"Reason Too Long": {0x03, 0x00, 0x01},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseMessage(raw)
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestMarshalBinaryErrors(t *testing.T) {
	_, err := Message{Type: 0x09}.MarshalBinary()
	assert.Error(t, err)

	_, err = DeactivatedMessage(hce.DeactivationReason(256)).MarshalBinary()
	assert.Error(t, err)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "COMMAND", MsgCommand.String())
	assert.Equal(t, "RESPONSE", MsgResponse.String())
	assert.Equal(t, "DEACTIVATED", MsgDeactivated.String())
	assert.Equal(t, "MessageType(0x7F)", MessageType(0x7F).String())
}
