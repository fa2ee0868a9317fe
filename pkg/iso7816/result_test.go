package iso7816

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

func mustInstruction(code InsCode) Instruction {
	i, _ := NewInstruction(code)
	return i
}

func TestNewResult_Errors(t *testing.T) {
	if _, err := NewResult(nil); err == nil {
		t.Error("Expected error for empty trace, got nil")
	}

	incomplete := Trace{{Command: &CommandAPDU{}}}
	if _, err := NewResult(incomplete); err == nil {
		t.Error("Expected error for transaction without response, got nil")
	}
}

func TestResult_Describe_SelectWithGetResponse(t *testing.T) {
	cls, _ := NewClass(0x00)
	aid := []byte("2PAY.SYS.DDF01")

	trace := Trace{
		{
			Command:  SelectByAID(cls, aid),
			Response: &ResponseAPDU{Status: NewStatusWord(0x61, 0x05)},
		},
		{
			Command: NewCommandAPDU(cls, mustInstruction(INS_GET_RESPONSE), 0, 0, nil, 5),
			Response: &ResponseAPDU{
				Data:   tlv.Hex("6F 03 880101"),
				Status: SW_NO_ERROR,
			},
		},
	}

	res, err := NewResult(trace)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	expectedLines := []string{
		"=== SELECT COMMAND REPORT ===",
		"[1] Command: SELECT",
		"    + Method:  04 -> Select by DF name (AID)",
		"    + Control: 00 -> First/Only | Return FCI",
		`    + Data:    325041592E5359532E4444463031 ("2PAY.SYS.DDF01")`,
		"    + Result:  [61 05] [OK] 05 (5) bytes still available",
		"",
		"[2] Protocol: Auto-handling (Sequence of 2 steps)",
		"    + Action:  Sending GET RESPONSE",
		"    + Result:  [90 00] [OK] SW_NO_ERROR",
		"",
		"[=] DATA OUTCOME:",
		"    + Length: 5 bytes",
		"    + Dump:   6F03880101",
		`    + ASCII:  "o...."`,
	}

	if diff := cmp.Diff(expectedLines, strings.Split(res.Describe(), "\n")); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}

	payload, err := res.Payload()
	if err != nil {
		t.Fatalf("Payload failed: %v", err)
	}
	if diff := cmp.Diff(tlv.Hex("6F 03 880101"), payload); diff != "" {
		t.Errorf("Payload mismatch (-want +got):\n%s", diff)
	}
}

func TestResult_Describe_ReadRecord(t *testing.T) {
	trace := Trace{
		{
			Command:  ReadRecord(Class{}, 1, 1),
			Response: &ResponseAPDU{Data: []byte("HELLO"), Status: SW_NO_ERROR},
		},
	}

	res, _ := NewResult(trace)

	expectedLines := []string{
		"=== READ RECORD COMMAND REPORT ===",
		"[1] Command: READ RECORD",
		"    + Target:  SFI 01 (1)",
		"    + P1:      01 -> Record Number 1",
		"    + Mode:    04 -> Record number P1",
		"    + Result:  [90 00] [OK] SW_NO_ERROR",
		"",
		"[=] DATA OUTCOME:",
		"    + Length: 5 bytes",
		"    + Dump:   48454C4C4F",
		`    + ASCII:  "HELLO"`,
	}

	if diff := cmp.Diff(expectedLines, strings.Split(res.Describe(), "\n")); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}
}

func TestResult_Describe_ReadRecordNotFound(t *testing.T) {
	trace := Trace{
		{
			Command:  NewReadRecordCommand(Class{}, 2, 0xFE, RecordIDNext),
			Response: &ResponseAPDU{Status: SW_ERR_RECORD_NOT_FOUND},
		},
	}

	res, _ := NewResult(trace)

	expectedLines := []string{
		"=== READ RECORD COMMAND REPORT ===",
		"[1] Command: READ RECORD",
		"    + Target:  SFI 02 (2)",
		"    + P1:      FE -> Record Identifier FE",
		"    + Mode:    02 -> Next record with ID P1",
		"    + Result:  [6A 83] [!!] [6A83] SW_ERR_RECORD_NOT_FOUND: record not found",
		"",
		"[=] DATA OUTCOME:",
		"    - No Data Received.",
	}

	if diff := cmp.Diff(expectedLines, strings.Split(res.Describe(), "\n")); diff != "" {
		t.Errorf("Report mismatch (-want +got):\n%s", diff)
	}

	if _, err := res.Payload(); err == nil {
		t.Error("Expected Payload error for failed command, got nil")
	}
}

func TestResult_Describe_WrongLengthRetry(t *testing.T) {
	cls, _ := NewClass(0x80)
	gpo := NewCommandAPDU(cls, mustInstruction(INS_GET_PROCESSING_OPTIONS), 0, 0, []byte{0x83, 0x00}, 0)
	retry := *gpo
	retry.Ne = 0x10

	trace := Trace{
		{Command: gpo, Response: &ResponseAPDU{Status: NewStatusWord(0x6C, 0x10)}},
		{Command: &retry, Response: &ResponseAPDU{Data: tlv.Hex("80 02 2000"), Status: SW_NO_ERROR}},
	}

	res, _ := NewResult(trace)
	report := res.Describe()

	for _, line := range []string{
		"=== GET PROCESSING OPTIONS COMMAND REPORT ===",
		"    + Params:  P1=00 P2=00",
		"    + Data:    8300",
		"    + Result:  [6C 10] [!!] Wrong length, correct is 10 (16)",
		"    + Action:  Sending RE-GET-PROCESSING-OPTIONS (Le=16)",
		"    + Dump:   80022000",
	} {
		if !strings.Contains(report, line) {
			t.Errorf("Report missing line %q\n%s", line, report)
		}
	}
}
