package iso7816

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestCommandAPDU_Bytes(t *testing.T) {
	cls, _ := NewClass(0x00)
	sel := mustInstruction(INS_SELECT)
	rd := mustInstruction(INS_READ_BINARY)
	long := make([]byte, 260)

	tests := []struct {
		name string
		cmd  *CommandAPDU
		want string
	}{
		{"Case 1", NewCommandAPDU(cls, mustInstruction(INS_READ_RECORD), 0x01, 0x0C, nil, 0), "00B2010C"},
		{"Case 2S Le 256", NewCommandAPDU(cls, rd, 0x00, 0x00, nil, MaxShortLe), "00B0000000"},
		{"Case 3S", NewCommandAPDU(cls, sel, 0x04, 0x00, []byte{0xF0, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, 0), "00A4040007F0010203040506"},
		{"Case 4S", NewCommandAPDU(cls, sel, 0x04, 0x00, []byte{0x01}, 10), "00A4040001010A"},
		{"Case 2E Le 65536", NewCommandAPDU(cls, rd, 0x00, 0x00, nil, MaxExtendedLe), "00B00000000000"},
		{"Case 2E Le 257", NewCommandAPDU(cls, rd, 0x00, 0x00, nil, 257), "00B00000000101"},
		{"Case 3E", NewCommandAPDU(cls, sel, 0x00, 0x00, long, 0), "00A40000000104" + strings.Repeat("00", 260)},
		{"Case 4E", NewCommandAPDU(cls, sel, 0x00, 0x00, long, 2), "00A40000000104" + strings.Repeat("00", 260) + "0002"},
		{"Case 4E From Le", NewCommandAPDU(cls, sel, 0x00, 0x00, []byte{0xAA}, 300), "00A40000000001AA012C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Bytes()
			if err != nil {
				t.Fatalf("Bytes failed: %v", err)
			}
			if h := strings.ToUpper(hex.EncodeToString(got)); h != tt.want {
				t.Errorf("Bytes() = %s\nwant      %s", h, tt.want)
			}
		})
	}
}

func TestCommandAPDU_BytesErrors(t *testing.T) {
	cls, _ := NewClass(0x00)
	ins := mustInstruction(INS_UPDATE_BINARY)

	for name, cmd := range map[string]*CommandAPDU{
		"Data Too Long": NewCommandAPDU(cls, ins, 0, 0, make([]byte, MaxExtendedLc+1), 0),
		"Negative Ne":   NewCommandAPDU(cls, ins, 0, 0, nil, -1),
		"Ne Too Large":  NewCommandAPDU(cls, ins, 0, 0, nil, MaxExtendedLe+1),
	} {
		if _, err := cmd.Bytes(); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestParseResponseAPDU(t *testing.T) {
	tests := []struct {
		raw      string
		wantData string
		wantSW   StatusWord
		wantErr  bool
	}{
		{raw: "700C570A33393236393938373330" + "9000", wantData: "700C570A33393236393938373330", wantSW: SW_NO_ERROR},
		{raw: "6A83", wantData: "", wantSW: SW_ERR_RECORD_NOT_FOUND},
		{raw: "90", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		raw, _ := hex.DecodeString(tt.raw)
		resp, err := ParseResponseAPDU(raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseResponseAPDU(%s) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if got := strings.ToUpper(hex.EncodeToString(resp.Data)); got != tt.wantData {
			t.Errorf("Data = %s, want %s", got, tt.wantData)
		}
		if resp.Status != tt.wantSW {
			t.Errorf("Status = %s, want %s", resp.Status, tt.wantSW)
		}
	}
}

func TestParseCommandAPDU(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantCLA  byte
		wantINS  InsCode
		wantData string
		wantNe   int
	}{
		{"Case 1", "00B2010C", 0x00, INS_READ_RECORD, "", 0},
		{"Case 2 Short", "00B2010C00", 0x00, INS_READ_RECORD, "", 256},
		{"Case 3 Short", "00A4040007F0010203040506", 0x00, INS_SELECT, "F0010203040506", 0},
		{"Case 4 Short", "80A8000002830000", 0x80, INS_GET_PROCESSING_OPTIONS, "8300", 256},
		{"Case 2 Extended", "00B0000000FFFF", 0x00, INS_READ_BINARY, "", 65535},
		{"Case 2 Extended 65536", "00B00000000000", 0x00, INS_READ_BINARY, "", 65536},
		{"Case 3 Extended", "00D6000000000201FF", 0x00, INS_UPDATE_BINARY, "01FF", 0},
		{"Case 4 Extended", "00D6000000000201FF0100", 0x00, INS_UPDATE_BINARY, "01FF", 256},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := hex.DecodeString(tt.raw)
			cmd, err := ParseCommandAPDU(raw)
			if err != nil {
				t.Fatalf("ParseCommandAPDU(%s) failed: %v", tt.raw, err)
			}
			if cmd.Class.Raw != tt.wantCLA {
				t.Errorf("CLA = %02X, want %02X", cmd.Class.Raw, tt.wantCLA)
			}
			if cmd.Instruction.Raw != tt.wantINS {
				t.Errorf("INS = %s, want %s", cmd.Instruction.Raw, tt.wantINS)
			}
			if got := strings.ToUpper(hex.EncodeToString(cmd.Data)); got != tt.wantData {
				t.Errorf("Data = %s, want %s", got, tt.wantData)
			}
			if cmd.Ne != tt.wantNe {
				t.Errorf("Ne = %d, want %d", cmd.Ne, tt.wantNe)
			}
		})
	}
}

func TestParseCommandAPDU_RoundTrip(t *testing.T) {
	for _, raw := range []string{
		"00A4040007F0010203040506",
		"80A8000002830000",
		"00B2010C00",
		"00A40000000104" + strings.Repeat("00", 260),
	} {
		in, _ := hex.DecodeString(raw)
		cmd, err := ParseCommandAPDU(in)
		if err != nil {
			t.Fatalf("ParseCommandAPDU failed: %v", err)
		}
		out, err := cmd.Bytes()
		if err != nil {
			t.Fatalf("Bytes failed: %v", err)
		}
		if !strings.EqualFold(hex.EncodeToString(out), raw) {
			t.Errorf("Round trip mismatch: got %X, want %s", out, raw)
		}
	}
}

func TestParseCommandAPDU_Errors(t *testing.T) {
	for name, raw := range map[string]string{
		"Empty":                  "",
		"Truncated Header":       "00A404",
		"Reserved CLA":           "FFA40400",
		"Reserved INS":           "00600000",
		"Short Lc Too Long":      "00A4040005F001",
		"Short Lc Trailing":      "00A4040001F00102",
		"Extended Lc Zero":       "00D600000000000102",
		"Extended Lc Mismatched": "00D60000000005AA",
		"Truncated Extended":     "00B0000000FF",
	} {
		t.Run(name, func(t *testing.T) {
			in, _ := hex.DecodeString(raw)
			if _, err := ParseCommandAPDU(in); err == nil {
				t.Errorf("ParseCommandAPDU(%s) expected error, got nil", raw)
			}
		})
	}
}

func TestResponseAPDU_Bytes(t *testing.T) {
	data := []byte("3926998730")
	resp := NewResponseAPDU(data, SW_NO_ERROR)

	got := resp.Bytes()
	want := append([]byte("3926998730"), 0x90, 0x00)
	if string(got) != string(want) {
		t.Errorf("Bytes() = %X, want %X", got, want)
	}

	got[0] = 'X'
	if data[0] != '3' {
		t.Error("Bytes() must not alias the data slice")
	}

	if b := NewResponseAPDU(nil, SW_ERR_FILE_NOT_FOUND).Bytes(); string(b) != "\x6A\x82" {
		t.Errorf("Status-only Bytes() = %X, want 6A82", b)
	}
}

func TestCommandAPDU_String(t *testing.T) {
	cls, _ := NewClass(0x80)
	cmd := NewCommandAPDU(cls, mustInstruction(INS_GET_PROCESSING_OPTIONS), 0, 0, []byte{0x83, 0x00}, MaxShortLe)

	want := "CLA 80 (proprietary) | A8 GET PROCESSING OPTIONS | P1: 00, P2: 00 | Lc: 2 | Le: 256"
	if got := cmd.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
