package iso7816

import (
	"fmt"
	"strings"
)

// READ RECORD (INS 'B2'). EMV only reads by record number from an SFI named
// in the AFL, so P2 is (SFI << 3) | 0b100 and P1 is the record number. The
// other modes are kept for the report.
//
// P2 bits 8-4 carry the SFI (0 = current EF), bits 3-1 the mode.

// ReadRecordMode is bits 3-1 of the READ RECORD P2.
type ReadRecordMode byte

const (
	// P1 is a record identifier.
	RecordIDFirst    ReadRecordMode = 0b000
	RecordIDLast     ReadRecordMode = 0b001
	RecordIDNext     ReadRecordMode = 0b010
	RecordIDPrevious ReadRecordMode = 0b011

	// P1 is a record number, 00 meaning the current record.
	RecordNumber            ReadRecordMode = 0b100
	RecordsFromNumber       ReadRecordMode = 0b101
	RecordsFromLastToNumber ReadRecordMode = 0b110
)

var readRecordModeNames = [...]string{
	RecordIDFirst:           "First record with ID P1",
	RecordIDLast:            "Last record with ID P1",
	RecordIDNext:            "Next record with ID P1",
	RecordIDPrevious:        "Previous record with ID P1",
	RecordNumber:            "Record number P1",
	RecordsFromNumber:       "All records from P1 to last",
	RecordsFromLastToNumber: "All records from last to P1",
}

func (m ReadRecordMode) String() string {
	if int(m) < len(readRecordModeNames) {
		return readRecordModeNames[m]
	}
	return fmt.Sprintf("Unknown Mode (0x%X)", byte(m))
}

// ByNumber reports whether P1 is a record number rather than an identifier.
func (m ReadRecordMode) ByNumber() bool {
	return m&0b100 != 0
}

// ReadRecordP2 splits a READ RECORD P2.
func ReadRecordP2(p2 byte) (sfi byte, mode ReadRecordMode) {
	return p2 >> 3, ReadRecordMode(p2 & 0b111)
}

// NewReadRecordCommand creates a READ RECORD command. It is a case 2 command
// asking for up to 256 bytes.
func NewReadRecordCommand(cla Class, sfi byte, p1 byte, mode ReadRecordMode) *CommandAPDU {
	ins, _ := NewInstruction(INS_READ_RECORD)
	return NewCommandAPDU(cla, ins, p1, sfi<<3|byte(mode), nil, MaxShortLe)
}

// ReadRecord reads record number rec of sfi.
func ReadRecord(cla Class, sfi byte, rec byte) *CommandAPDU {
	return NewReadRecordCommand(cla, sfi, rec, RecordNumber)
}

// ReadRecordNoLe is ReadRecord encoded as a case 1 command, the short
// four-byte form some emulated cards match on.
func ReadRecordNoLe(cla Class, sfi byte, rec byte) *CommandAPDU {
	cmd := ReadRecord(cla, sfi, rec)
	cmd.Ne = 0
	return cmd
}

func describeReadRecord(sb *strings.Builder, cmd *CommandAPDU) {
	sfi, mode := ReadRecordP2(cmd.P2)

	target := "Current EF"
	if sfi > 0 {
		target = fmt.Sprintf("SFI %02X (%d)", sfi, sfi)
	}
	fmt.Fprintf(sb, "    + Target:  %s\n", target)

	var p1 string
	switch {
	case !mode.ByNumber():
		p1 = fmt.Sprintf("Record Identifier %02X", cmd.P1)
	case cmd.P1 == 0:
		p1 = "Current Record"
	default:
		p1 = fmt.Sprintf("Record Number %d", cmd.P1)
	}
	fmt.Fprintf(sb, "    + P1:      %02X -> %s\n", cmd.P1, p1)
	fmt.Fprintf(sb, "    + Mode:    %02X -> %s\n", byte(mode), mode)
}
