package iso7816

import (
	"fmt"
	"strings"
)

// SELECT (INS 'A4'). A payment terminal only ever selects by DF name: the
// PPSE first, then each AID it lists. Partial AIDs are walked with the
// "next occurrence" bits of P2 until the card answers '6A 82'.
//
// P2 layout: bits 4-3 say what comes back, bits 2-1 which occurrence.

// SelectionMethod is the P1 of a SELECT.
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04
	SelectPathFromMF        SelectionMethod = 0x08
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

var selectionMethodNames = map[SelectionMethod]string{
	SelectByFileID:          "File ID",
	SelectChildDF:           "Child DF",
	SelectEFUnderCurrentDF:  "EF under current DF",
	SelectParentDF:          "Parent DF",
	SelectByDFName:          "DF name (AID)",
	SelectPathFromMF:        "Path from MF",
	SelectPathFromCurrentDF: "Path from current DF",
}

func (s SelectionMethod) String() string {
	if n, ok := selectionMethodNames[s]; ok {
		return "Select by " + n
	}
	return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
}

// FileOccurrence is bits 2-1 of the SELECT P2.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0b00
	LastOccurrence        FileOccurrence = 0b01
	NextOccurrence        FileOccurrence = 0b10
	PreviousOccurrence    FileOccurrence = 0b11
)

func (f FileOccurrence) String() string {
	return [...]string{"First/Only", "Last", "Next", "Previous"}[f&0b11]
}

// SelectionControl is bits 4-3 of the SELECT P2.
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b0000
	ReturnFCP    SelectionControl = 0b0100
	ReturnFMD    SelectionControl = 0b1000
	ReturnNoData SelectionControl = 0b1100
)

func (s SelectionControl) String() string {
	return [...]string{"Return FCI", "Return FCP", "Return FMD", "No Response Data"}[(s>>2)&0b11]
}

// SplitSelectP2 separates a SELECT P2 into its two fields. Bits 8-5 are
// ignored.
func SplitSelectP2(p2 byte) (FileOccurrence, SelectionControl) {
	return FileOccurrence(p2 & 0b0011), SelectionControl(p2 & 0b1100)
}

// NewSelectCommand creates a generic SELECT command.
//
// With a body the command is sent as case 3 (no Le), which is what T=0
// readers and the emulated card expect; the data then comes back through
// '61 XX' and GET RESPONSE. Without a body, Le asks for up to 256 bytes
// unless no data is wanted at all.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_SELECT)

	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}

	return NewCommandAPDU(cla, ins, byte(method), byte(ctrl)|byte(occurrence), data, ne)
}

// SelectByAID selects the first application whose name starts with aid.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCI, aid)
}

// SelectNextByAID moves to the next application matching a partial aid.
func SelectNextByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, NextOccurrence, ReturnFCI, aid)
}

func describeSelect(sb *strings.Builder, cmd *CommandAPDU) {
	occ, ctrl := SplitSelectP2(cmd.P2)
	fmt.Fprintf(sb, "    + Method:  %02X -> %s\n", cmd.P1, SelectionMethod(cmd.P1))
	fmt.Fprintf(sb, "    + Control: %02X -> %s | %s\n", cmd.P2, occ, ctrl)
}
