package hce

import (
	"fmt"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// CommandKind identifies which handling path a command frame takes.
type CommandKind int

const (
	KindUnknown CommandKind = iota
	KindSelectAID
	KindReadRecord
	KindGetProcessingOptions
)

func (k CommandKind) String() string {
	switch k {
	case KindSelectAID:
		return "SELECT AID"
	case KindReadRecord:
		return "READ RECORD"
	case KindGetProcessingOptions:
		return "GET PROCESSING OPTIONS"
	case KindUnknown:
		return "UNKNOWN"
	default:
		return fmt.Sprintf("CommandKind(%d)", int(k))
	}
}

// DeactivationReason is the code reported by the host when the contactless
// link goes away.
type DeactivationReason int

const (
	// DeactivationLinkLoss means the reader left the field.
	DeactivationLinkLoss DeactivationReason = 0
	// DeactivationDeselected means another application was selected.
	DeactivationDeselected DeactivationReason = 1
)

func (r DeactivationReason) String() string {
	switch r {
	case DeactivationLinkLoss:
		return "LINK_LOSS"
	case DeactivationDeselected:
		return "DESELECTED"
	default:
		return fmt.Sprintf("Reason(%d)", int(r))
	}
}

// Exact command frames, matched in this order.
var (
	selectAIDCommand            = tlv.Hex("00 A4 04 00 07 F0 01 02 03 04 05 06")
	readRecordCommand           = tlv.Hex("00 B2 01 0C")
	getProcessingOptionsCommand = tlv.Hex("80 A8 00 00 02 83 00 00")
)

// SelectAIDCommand returns a copy of the recognized SELECT frame.
func SelectAIDCommand() []byte { return clone(selectAIDCommand) }

// ReadRecordCommand returns a copy of the recognized READ RECORD frame.
func ReadRecordCommand() []byte { return clone(readRecordCommand) }

// GetProcessingOptionsCommand returns a copy of the recognized GPO frame.
func GetProcessingOptionsCommand() []byte { return clone(getProcessingOptionsCommand) }

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
