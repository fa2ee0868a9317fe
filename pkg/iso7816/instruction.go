package iso7816

import (
	"fmt"

	"github.com/gregLibert/hce-card/pkg/bits"
)

// INS byte (ISO/IEC 7816-4, 5.4.2).
//
// In the interindustry class, bit 1 of an even/odd pair marks the BER-TLV
// variant of a command (READ BINARY 'B0' vs 'B1'). Values '6X' and '9X' are
// never instructions: T=0 reserves them for procedure bytes.

// InsCode is a raw instruction byte.
type InsCode byte

// Instructions met during a payment session. The EMV ones (Book 3, 6.5) run
// in class '80' except READ RECORD, SELECT and GET RESPONSE.
const (
	INS_CARD_BLOCK                      InsCode = 0x16 // EMV
	INS_APPLICATION_UNBLOCK             InsCode = 0x18 // EMV
	INS_APPLICATION_BLOCK               InsCode = 0x1E // EMV
	INS_VERIFY                          InsCode = 0x20
	INS_CHANGE_REFERENCE_DATA           InsCode = 0x24 // EMV PIN CHANGE/UNBLOCK
	INS_COMPUTE_CRYPTOGRAPHIC_CHECKSUM  InsCode = 0x2A // contactless mag-stripe mode
	INS_MANAGE_CHANNEL                  InsCode = 0x70
	INS_EXTERNAL_AUTHENTICATE           InsCode = 0x82
	INS_GET_CHALLENGE                   InsCode = 0x84
	INS_INTERNAL_AUTHENTICATE           InsCode = 0x88
	INS_SELECT                          InsCode = 0xA4
	INS_GET_PROCESSING_OPTIONS          InsCode = 0xA8 // EMV
	INS_GENERATE_APPLICATION_CRYPTOGRAM InsCode = 0xAE // EMV
	INS_READ_BINARY                     InsCode = 0xB0
	INS_READ_BINARY_BER                 InsCode = 0xB1
	INS_READ_RECORD                     InsCode = 0xB2
	INS_GET_RESPONSE                    InsCode = 0xC0
	INS_ENVELOPE                        InsCode = 0xC2
	INS_GET_DATA                        InsCode = 0xCA
	INS_UPDATE_BINARY                   InsCode = 0xD6
	INS_PUT_DATA                        InsCode = 0xDA
	INS_UPDATE_RECORD                   InsCode = 0xDC
)

// insTitles maps each known instruction to the command name used in reports.
var insTitles = map[InsCode]string{
	INS_CARD_BLOCK:                      "CARD BLOCK",
	INS_APPLICATION_UNBLOCK:             "APPLICATION UNBLOCK",
	INS_APPLICATION_BLOCK:               "APPLICATION BLOCK",
	INS_VERIFY:                          "VERIFY",
	INS_CHANGE_REFERENCE_DATA:           "CHANGE REFERENCE DATA",
	INS_COMPUTE_CRYPTOGRAPHIC_CHECKSUM:  "COMPUTE CRYPTOGRAPHIC CHECKSUM",
	INS_MANAGE_CHANNEL:                  "MANAGE CHANNEL",
	INS_EXTERNAL_AUTHENTICATE:           "EXTERNAL AUTHENTICATE",
	INS_GET_CHALLENGE:                   "GET CHALLENGE",
	INS_INTERNAL_AUTHENTICATE:           "INTERNAL AUTHENTICATE",
	INS_SELECT:                          "SELECT",
	INS_GET_PROCESSING_OPTIONS:          "GET PROCESSING OPTIONS",
	INS_GENERATE_APPLICATION_CRYPTOGRAM: "GENERATE AC",
	INS_READ_BINARY:                     "READ BINARY",
	INS_READ_BINARY_BER:                 "READ BINARY (BER-TLV)",
	INS_READ_RECORD:                     "READ RECORD",
	INS_GET_RESPONSE:                    "GET RESPONSE",
	INS_ENVELOPE:                        "ENVELOPE",
	INS_GET_DATA:                        "GET DATA",
	INS_UPDATE_BINARY:                   "UPDATE BINARY",
	INS_PUT_DATA:                        "PUT DATA",
	INS_UPDATE_RECORD:                   "UPDATE RECORD",
}

// Title is the command name, e.g. "GET PROCESSING OPTIONS", or "INS XX" for
// an instruction this package does not know.
func (i InsCode) Title() string {
	if t, ok := insTitles[i]; ok {
		return t
	}
	return fmt.Sprintf("INS %02X", byte(i))
}

func (i InsCode) String() string {
	return fmt.Sprintf("%02X %s", byte(i), i.Title())
}

// Instruction is a validated INS byte.
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction rejects the '6X' and '9X' ranges.
func NewInstruction(ins InsCode) (Instruction, error) {
	switch byte(ins) & 0xF0 {
	case 0x60, 0x90:
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{Raw: ins, IsBERTLV: bits.IsSet(byte(ins), 1)}, nil
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw.Title(), format)
}
