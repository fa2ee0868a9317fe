package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// A Transaction is one command frame and the frame the card sent back. A
// Trace holds every transaction made for one logical command: the original
// command, then any GET RESPONSE ('61 XX') or Le correction ('6C XX').

// Transaction is a command paired with its response.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess is false when the response is missing.
func (t *Transaction) IsSuccess() bool {
	return t.Response != nil && t.Response.Status.IsSuccess()
}

// String renders the transaction as it went over the wire:
//
//	>> 00 B2 01 0C
//	<< 70 0C 57 0A ... 90 00
func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString(">> ")
	if t.Command == nil {
		sb.WriteString("(none)")
	} else if raw, err := t.Command.Bytes(); err != nil {
		fmt.Fprintf(&sb, "(unencodable: %v)", err)
	} else {
		sb.WriteString(tlv.FormatHex(raw))
	}

	sb.WriteString("\n<< ")
	if t.Response == nil {
		sb.WriteString("(none)")
	} else {
		sb.WriteString(tlv.FormatHex(t.Response.Bytes()))
	}
	return sb.String()
}

// Trace is the ordered list of transactions of one logical command.
type Trace []Transaction

// Last returns nil for an empty trace.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess looks at the final transaction only. A '61 XX' earlier in the
// trace does not count.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	return last != nil && last.IsSuccess()
}

// String joins the wire form of every transaction.
func (t Trace) String() string {
	parts := make([]string, len(t))
	for i := range t {
		parts[i] = t[i].String()
	}
	return strings.Join(parts, "\n")
}
