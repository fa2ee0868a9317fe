package iso7816

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// scriptedCard replies with canned responses in order and records commands.
type scriptedCard struct {
	replies [][]byte
	sent    [][]byte
	err     error
}

func (s *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	s.sent = append(s.sent, cmd)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.replies) == 0 {
		return []byte{0x6F, 0x00}, nil
	}
	r := s.replies[0]
	s.replies = s.replies[1:]
	return r, nil
}

func TestClient_Send(t *testing.T) {
	tests := []struct {
		name     string
		cla      byte
		replies  [][]byte
		wantSent [][]byte
		wantSW   StatusWord
	}{
		{
			name:     "Direct Success",
			cla:      0x00,
			replies:  [][]byte{tlv.Hex("0102 9000")},
			wantSent: [][]byte{tlv.Hex("00 A4 04 00 02 A000")},
			wantSW:   SW_NO_ERROR,
		},
		{
			name:    "61XX Triggers GET RESPONSE",
			cla:     0x00,
			replies: [][]byte{tlv.Hex("61 02"), tlv.Hex("CAFE 9000")},
			wantSent: [][]byte{
				tlv.Hex("00 A4 04 00 02 A000"),
				tlv.Hex("00 C0 00 00 02"),
			},
			wantSW: SW_NO_ERROR,
		},
		{
			name:    "6CXX Re-sends With Le",
			cla:     0x00,
			replies: [][]byte{tlv.Hex("6C 04"), tlv.Hex("01020304 9000")},
			wantSent: [][]byte{
				tlv.Hex("00 A4 04 00 02 A000"),
				tlv.Hex("00 A4 04 00 02 A000 04"),
			},
			wantSW: SW_NO_ERROR,
		},
		{
			name:    "Proprietary Class Falls Back To Interindustry GET RESPONSE",
			cla:     0x80,
			replies: [][]byte{tlv.Hex("61 00"), tlv.Hex("9000")},
			wantSent: [][]byte{
				tlv.Hex("80 A4 04 00 02 A000"),
				tlv.Hex("00 C0 00 00 00"),
			},
			wantSW: SW_NO_ERROR,
		},
		{
			name:     "Error Status Ends Exchange",
			cla:      0x00,
			replies:  [][]byte{tlv.Hex("6A 82")},
			wantSent: [][]byte{tlv.Hex("00 A4 04 00 02 A000")},
			wantSW:   SW_ERR_FILE_NOT_FOUND,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := &scriptedCard{replies: tt.replies}
			cls, _ := NewClass(tt.cla)
			cmd := SelectByAID(cls, []byte{0xA0, 0x00})

			trace, err := NewClient(card).Send(cmd)
			if err != nil {
				t.Fatalf("Send failed: %v", err)
			}

			if diff := cmp.Diff(tt.wantSent, card.sent); diff != "" {
				t.Errorf("Sent commands mismatch (-want +got):\n%s", diff)
			}
			if got := trace.Last().Response.Status; got != tt.wantSW {
				t.Errorf("Final status = %s, want %s", got.Verbose(), tt.wantSW.Verbose())
			}
			if len(trace) != len(tt.wantSent) {
				t.Errorf("Trace length = %d, want %d", len(trace), len(tt.wantSent))
			}
		})
	}
}

func TestClient_Send_Errors(t *testing.T) {
	cls, _ := NewClass(0x00)

	t.Run("Transmit Error", func(t *testing.T) {
		card := &scriptedCard{err: errors.New("reader removed")}
		if _, err := NewClient(card).Send(SelectByAID(cls, []byte("2PAY.SYS.DDF01"))); err == nil {
			t.Error("Expected transmission error, got nil")
		}
	})

	t.Run("Short Response", func(t *testing.T) {
		card := &scriptedCard{replies: [][]byte{{0x90}}}
		if _, err := NewClient(card).Send(SelectByAID(cls, []byte("2PAY.SYS.DDF01"))); err == nil {
			t.Error("Expected parse error, got nil")
		}
	})

	t.Run("Endless 61XX Is Cut Off", func(t *testing.T) {
		replies := make([][]byte, 20)
		for i := range replies {
			replies[i] = tlv.Hex("61 01")
		}
		card := &scriptedCard{replies: replies}
		client := &Client{Card: card, MaxSteps: 3}

		trace, err := client.Send(SelectByAID(cls, []byte("2PAY.SYS.DDF01")))
		if err == nil {
			t.Fatal("Expected protocol loop error, got nil")
		}
		if len(trace) != 3 {
			t.Errorf("Trace length = %d, want 3", len(trace))
		}
	})
}

func TestClient_SendResult(t *testing.T) {
	cls, _ := NewClass(0x00)
	card := &scriptedCard{replies: [][]byte{tlv.Hex("48454C4C4F 9000")}}

	res, err := NewClient(card).SendResult(ReadRecord(cls, 1, 1))
	if err != nil {
		t.Fatalf("SendResult failed: %v", err)
	}

	payload, err := res.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if string(payload) != "HELLO" {
		t.Errorf("Payload = %q, want %q", payload, "HELLO")
	}
}
