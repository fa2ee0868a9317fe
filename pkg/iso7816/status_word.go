package iso7816

import (
	"fmt"

	"github.com/gregLibert/hce-card/pkg/bits"
)

// StatusWord is the SW1-SW2 trailer of a response.
//
// Some ranges carry a value in SW2 instead of a fixed meaning:
//   - '61XX': XX more bytes wait for GET RESPONSE.
//   - '6CXX': wrong Le, XX is the right one.
//   - '62XX' and '64XX' with XX in 02..80: triggering by the card, XX bytes.
//   - '63CX': X is a counter, usually the PIN tries left after VERIFY.
type StatusWord uint16

// NewStatusWord creates a StatusWord from its two bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

func (sw StatusWord) SW1() byte { return byte(sw >> 8) }
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsTriggeringByCard reports a '62XX' or '64XX' with XX in 02..80.
func (sw StatusWord) IsTriggeringByCard() bool {
	sw1, sw2 := sw.SW1(), sw.SW2()
	return (sw1 == 0x62 || sw1 == 0x64) && sw2 >= 0x02 && sw2 <= 0x80
}

// IsCounter reports a '63CX'.
func (sw StatusWord) IsCounter() bool {
	return sw.SW1() == 0x63 && bits.Field(sw.SW2(), 8, 5) == 0x0C
}

// IsSuccess is true for '90 00' and '61 XX'.
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning is true for '62XX' and '63XX'.
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError is true for '64XX' through '6FXX'.
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

// Status words a payment terminal runs into. Meanings are the EMV ones where
// EMV narrows the ISO/IEC 7816-4 text.
const (
	SW_NO_ERROR StatusWord = 0x9000

	SW_WARN_NO_INFO            StatusWord = 0x6200
	SW_WARN_TRIGGERING_BY_CARD StatusWord = 0x6202
	SW_WARN_DATA_CORRUPTED     StatusWord = 0x6281
	SW_WARN_EOF_REACHED        StatusWord = 0x6282
	SW_WARN_FILE_DEACTIVATED   StatusWord = 0x6283
	SW_WARN_FCI_BAD_FORMAT     StatusWord = 0x6284
	SW_WARN_NV_CHANGED_NO_INFO StatusWord = 0x6300
	SW_WARN_COUNTER_0          StatusWord = 0x63C0

	SW_ERR_EXEC_NO_INFO        StatusWord = 0x6400
	SW_ERR_MEMORY_FAILURE      StatusWord = 0x6581
	SW_ERR_WRONG_LENGTH        StatusWord = 0x6700
	SW_ERR_CHANNEL_NOT_SUPP    StatusWord = 0x6881
	SW_ERR_SM_NOT_SUPP         StatusWord = 0x6882
	SW_ERR_CMD_NOT_ALLOWED     StatusWord = 0x6900
	SW_ERR_INCOMPATIBLE_FILE   StatusWord = 0x6981
	SW_ERR_SECURITY_NOT_SAT    StatusWord = 0x6982
	SW_ERR_AUTH_BLOCKED        StatusWord = 0x6983
	SW_ERR_REF_DATA_NOT_USABLE StatusWord = 0x6984
	SW_ERR_COND_OF_USE_NOT_SAT StatusWord = 0x6985
	SW_ERR_INCORRECT_DATA      StatusWord = 0x6A80
	SW_ERR_FUNC_NOT_SUPPORTED  StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND      StatusWord = 0x6A82
	SW_ERR_RECORD_NOT_FOUND    StatusWord = 0x6A83
	SW_ERR_INCORRECT_P1P2      StatusWord = 0x6A86
	SW_ERR_REF_DATA_NOT_FOUND  StatusWord = 0x6A88
	SW_ERR_WRONG_P1P2          StatusWord = 0x6B00
	SW_ERR_INS_INVALID         StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPPORTED   StatusWord = 0x6E00
	SW_ERR_UNKNOWN             StatusWord = 0x6F00
)

type swInfo struct {
	name    string
	meaning string
}

var statusWords = map[StatusWord]swInfo{
	SW_NO_ERROR:                {"SW_NO_ERROR", ""},
	SW_WARN_NO_INFO:            {"SW_WARN_NO_INFO", "no information given"},
	SW_WARN_TRIGGERING_BY_CARD: {"SW_WARN_TRIGGERING_BY_CARD", "triggering by the card"},
	SW_WARN_DATA_CORRUPTED:     {"SW_WARN_DATA_CORRUPTED", "returned data may be corrupted"},
	SW_WARN_EOF_REACHED:        {"SW_WARN_EOF_REACHED", "end of file reached before Le bytes"},
	SW_WARN_FILE_DEACTIVATED:   {"SW_WARN_FILE_DEACTIVATED", "application blocked"},
	SW_WARN_FCI_BAD_FORMAT:     {"SW_WARN_FCI_BAD_FORMAT", "FCI not formatted"},
	SW_WARN_NV_CHANGED_NO_INFO: {"SW_WARN_NV_CHANGED_NO_INFO", "verification failed"},
	SW_WARN_COUNTER_0:          {"SW_WARN_COUNTER_0", "no tries left"},
	SW_ERR_EXEC_NO_INFO:        {"SW_ERR_EXEC_NO_INFO", "execution error"},
	SW_ERR_MEMORY_FAILURE:      {"SW_ERR_MEMORY_FAILURE", "memory failure"},
	SW_ERR_WRONG_LENGTH:        {"SW_ERR_WRONG_LENGTH", "wrong length"},
	SW_ERR_CHANNEL_NOT_SUPP:    {"SW_ERR_CHANNEL_NOT_SUPP", "logical channel not supported"},
	SW_ERR_SM_NOT_SUPP:         {"SW_ERR_SM_NOT_SUPP", "secure messaging not supported"},
	SW_ERR_CMD_NOT_ALLOWED:     {"SW_ERR_CMD_NOT_ALLOWED", "command not allowed"},
	SW_ERR_INCOMPATIBLE_FILE:   {"SW_ERR_INCOMPATIBLE_FILE", "command incompatible with file structure"},
	SW_ERR_SECURITY_NOT_SAT:    {"SW_ERR_SECURITY_NOT_SAT", "security status not satisfied"},
	SW_ERR_AUTH_BLOCKED:        {"SW_ERR_AUTH_BLOCKED", "PIN try limit exceeded"},
	SW_ERR_REF_DATA_NOT_USABLE: {"SW_ERR_REF_DATA_NOT_USABLE", "referenced data not usable"},
	SW_ERR_COND_OF_USE_NOT_SAT: {"SW_ERR_COND_OF_USE_NOT_SAT", "conditions of use not satisfied"},
	SW_ERR_INCORRECT_DATA:      {"SW_ERR_INCORRECT_DATA", "incorrect data field"},
	SW_ERR_FUNC_NOT_SUPPORTED:  {"SW_ERR_FUNC_NOT_SUPPORTED", "card or application blocked"},
	SW_ERR_FILE_NOT_FOUND:      {"SW_ERR_FILE_NOT_FOUND", "application not found"},
	SW_ERR_RECORD_NOT_FOUND:    {"SW_ERR_RECORD_NOT_FOUND", "record not found"},
	SW_ERR_INCORRECT_P1P2:      {"SW_ERR_INCORRECT_P1P2", "incorrect P1 P2"},
	SW_ERR_REF_DATA_NOT_FOUND:  {"SW_ERR_REF_DATA_NOT_FOUND", "referenced data not found"},
	SW_ERR_WRONG_P1P2:          {"SW_ERR_WRONG_P1P2", "wrong P1 P2"},
	SW_ERR_INS_INVALID:         {"SW_ERR_INS_INVALID", "instruction not supported"},
	SW_ERR_CLA_NOT_SUPPORTED:   {"SW_ERR_CLA_NOT_SUPPORTED", "class not supported"},
	SW_ERR_UNKNOWN:             {"SW_ERR_UNKNOWN", "no precise diagnosis"},
}

func (sw StatusWord) String() string {
	if info, ok := statusWords[sw]; ok {
		return info.name
	}
	return fmt.Sprintf("StatusWord(%04X)", uint16(sw))
}

// Verbose describes the status word. Ranges with a value in SW2 are decoded
// first, then the named codes, then the SW1 category.
func (sw StatusWord) Verbose() string {
	sw1, sw2 := sw.SW1(), sw.SW2()

	switch {
	case sw.IsTriggeringByCard():
		action := "Warning (Triggering)"
		if sw1 == 0x64 {
			action = "Error/Abort (Triggering)"
		}
		return fmt.Sprintf("%s: Card expects query of %d bytes", action, sw2)
	case sw.IsCounter():
		return fmt.Sprintf("Warning: State changed, counter = %d", bits.Field(sw2, 4, 1))
	case sw1 == 0x61:
		return fmt.Sprintf("Process completed, %d bytes available", sw2)
	case sw1 == 0x6C:
		return fmt.Sprintf("Wrong length, correct Le is %d", sw2)
	}

	if info, ok := statusWords[sw]; ok {
		if info.meaning == "" {
			return fmt.Sprintf("[%04X] %s", uint16(sw), info.name)
		}
		return fmt.Sprintf("[%04X] %s: %s", uint16(sw), info.name, info.meaning)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), category(sw1))
}

func category(sw1 byte) string {
	switch sw1 {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}
