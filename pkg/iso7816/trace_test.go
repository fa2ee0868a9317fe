package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

func makeTx(sw StatusWord) Transaction {
	return Transaction{
		Command:  &CommandAPDU{},
		Response: &ResponseAPDU{Status: sw},
	}
}

func TestTrace_IsSuccess(t *testing.T) {
	tests := []struct {
		name  string
		trace Trace
		want  bool
	}{
		{"Empty", nil, false},
		{"9000", Trace{makeTx(SW_NO_ERROR)}, true},
		{"61XX Alone", Trace{makeTx(NewStatusWord(0x61, 0x10))}, true},
		{"61XX Then 9000", Trace{makeTx(NewStatusWord(0x61, 0x10)), makeTx(SW_NO_ERROR)}, true},
		{"9000 Then 6A82", Trace{makeTx(SW_NO_ERROR), makeTx(SW_ERR_FILE_NOT_FOUND)}, false},
		{"Missing Response", Trace{{Command: &CommandAPDU{}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.trace.IsSuccess(); got != tt.want {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrace_Last(t *testing.T) {
	var empty Trace
	if empty.Last() != nil {
		t.Error("Last() of an empty trace should be nil")
	}

	tr := Trace{makeTx(NewStatusWord(0x61, 0x0E)), makeTx(SW_ERR_RECORD_NOT_FOUND)}
	if got := tr.Last().Response.Status; got != SW_ERR_RECORD_NOT_FOUND {
		t.Errorf("Last() status = %s", got)
	}
}

func TestTrace_String(t *testing.T) {
	cls, _ := NewClass(0x00)
	read := ReadRecordNoLe(cls, 1, 1)
	getResp := NewCommandAPDU(cls, mustInstruction(INS_GET_RESPONSE), 0, 0, nil, 4)

	tr := Trace{
		{Command: read, Response: NewResponseAPDU(nil, NewStatusWord(0x61, 0x04))},
		{Command: getResp, Response: NewResponseAPDU(tlv.Hex("70 02 5A 00"), SW_NO_ERROR)},
		{Command: getResp},
	}

	want := ">> 00 B2 01 0C\n" +
		"<< 61 04\n" +
		">> 00 C0 00 00 04\n" +
		"<< 70 02 5A 00 90 00\n" +
		">> 00 C0 00 00 04\n" +
		"<< (none)"

	if diff := cmp.Diff(want, tr.String()); diff != "" {
		t.Errorf("String() mismatch (-want +got):\n%s", diff)
	}
}
