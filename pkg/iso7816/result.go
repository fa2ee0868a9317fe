package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// COMMAND RESULT ANALYSIS:
// A Result wraps the trace produced by Client.Send for one logical command.
// It hides the protocol retries (GET RESPONSE, Le correction) behind Payload()
// and renders a line-oriented report with Describe(). The report layout depends
// on the first instruction: SELECT and READ RECORD get a decoded parameter
// section, anything else a raw P1/P2 dump.

// Result represents the outcome of a command execution.
type Result struct {
	Trace
}

// NewResult creates a Result from a raw transaction trace.
func NewResult(t Trace) (*Result, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}
	for i, tx := range t {
		if tx.Command == nil || tx.Response == nil {
			return nil, fmt.Errorf("transaction %d is incomplete", i)
		}
	}
	return &Result{Trace: t}, nil
}

// Command returns the initial command of the exchange.
func (r *Result) Command() *CommandAPDU {
	return r.Trace[0].Command
}

// Status returns the final status word.
func (r *Result) Status() StatusWord {
	return r.Last().Response.Status
}

// Payload returns the response data of the final transaction, or an error if
// the exchange did not end successfully.
func (r *Result) Payload() ([]byte, error) {
	if !r.IsSuccess() {
		return nil, fmt.Errorf("command failed: %s", r.Status().Verbose())
	}
	return r.Last().Response.Data, nil
}

// Describe generates a detailed, ASCII-formatted report of the exchange.
func (r *Result) Describe() string {
	var sb strings.Builder

	tx0 := r.Trace[0]
	cmd := tx0.Command
	title := cmd.Instruction.Raw.Title()

	sb.WriteString(fmt.Sprintf("=== %s COMMAND REPORT ===\n", title))
	sb.WriteString(fmt.Sprintf("[1] Command: %s\n", title))

	switch cmd.Instruction.Raw {
	case INS_SELECT:
		describeSelect(&sb, cmd)
	case INS_READ_RECORD:
		describeReadRecord(&sb, cmd)
	default:
		sb.WriteString(fmt.Sprintf("    + Params:  P1=%02X P2=%02X\n", cmd.P1, cmd.P2))
	}

	if len(cmd.Data) > 0 {
		if cmd.Instruction.Raw == INS_SELECT {
			sb.WriteString(fmt.Sprintf("    + Data:    %X (%q)\n", cmd.Data, tlv.MakeSafeASCII(cmd.Data)))
		} else {
			sb.WriteString(fmt.Sprintf("    + Data:    %X\n", cmd.Data))
		}
	}

	sb.WriteString(fmt.Sprintf("    + Result:  %s\n", describeStatus(tx0.Response.Status)))
	sb.WriteString("\n")

	last := r.Last()

	if len(r.Trace) > 1 {
		sb.WriteString(fmt.Sprintf("[2] Protocol: Auto-handling (Sequence of %d steps)\n", len(r.Trace)))

		action := "Unknown"
		switch last.Command.Instruction.Raw {
		case INS_GET_RESPONSE:
			action = "GET RESPONSE"
		case cmd.Instruction.Raw:
			action = fmt.Sprintf("RE-%s (Le=%d)", strings.ReplaceAll(title, " ", "-"), last.Command.Ne)
		}

		sb.WriteString(fmt.Sprintf("    + Action:  Sending %s\n", action))
		sb.WriteString(fmt.Sprintf("    + Result:  %s\n", describeStatus(last.Response.Status)))
		sb.WriteString("\n")
	}

	sb.WriteString("[=] DATA OUTCOME:\n")
	payload := last.Response.Data
	if len(payload) > 0 {
		sb.WriteString(fmt.Sprintf("    + Length: %d bytes\n", len(payload)))
		sb.WriteString(fmt.Sprintf("    + Dump:   %X\n", payload))
		sb.WriteString(fmt.Sprintf("    + ASCII:  %q\n", tlv.MakeSafeASCII(payload)))
	} else {
		sb.WriteString("    - No Data Received.\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

func describeStatus(sw StatusWord) string {
	sw1, sw2 := sw.SW1(), sw.SW2()
	swHex := fmt.Sprintf("[%02X %02X]", sw1, sw2)

	switch {
	case sw == SW_NO_ERROR:
		return swHex + " [OK] SW_NO_ERROR"
	case sw1 == 0x61:
		return fmt.Sprintf("%s [OK] %02X (%d) bytes still available", swHex, sw2, sw2)
	case sw1 == 0x6C:
		return fmt.Sprintf("%s [!!] Wrong length, correct is %02X (%d)", swHex, sw2, sw2)
	default:
		return fmt.Sprintf("%s [!!] %s", swHex, sw.Verbose())
	}
}
