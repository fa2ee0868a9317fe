package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hce-card/pkg/bits"
)

// CLA byte (ISO/IEC 7816-4, 5.4.1).
//
// With bit 8 set the class is proprietary: EMV runs GET PROCESSING OPTIONS
// and GENERATE AC in class '80'. Only the raw value is meaningful then.
// Otherwise bit 7 selects one of two interindustry layouts:
//
//	000c ssll   first interindustry: SM on 2 bits, channels 0-3
//	01sc llll   further interindustry: SM on 1 bit, channels 4-19 (llll + 4)
//
// where c (bit 5) flags command chaining.

// SecureMessaging is the SM indication of an interindustry class.
type SecureMessaging int

const (
	SMNone SecureMessaging = iota
	// SMProprietary exists in the first interindustry range only.
	SMProprietary
	// SMHeaderNoProc is ISO SM with the header not processed.
	SMHeaderNoProc
	// SMHeaderAuth is ISO SM with the header authenticated. First range only.
	SMHeaderAuth
)

var smNames = [...]string{
	SMNone:         "None",
	SMProprietary:  "Proprietary",
	SMHeaderNoProc: "ISO (Header not processed)",
	SMHeaderAuth:   "ISO (Header authenticated)",
}

func (sm SecureMessaging) String() string {
	if sm < 0 || int(sm) >= len(smNames) {
		return fmt.Sprintf("SecureMessaging(%d)", int(sm))
	}
	return smNames[sm]
}

// MaxChannel is the highest logical channel a CLA byte can address.
const MaxChannel = 19

// Class is a decoded CLA byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass decodes a raw CLA byte. 'FF' is reserved for PPS and rejected.
func NewClass(cla byte) (Class, error) {
	switch {
	case cla == 0xFF:
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	case bits.IsSet(cla, 8):
		return Class{Raw: cla, IsProprietary: true}, nil
	}

	c := Class{Raw: cla, IsChained: bits.IsSet(cla, 5)}

	if bits.IsSet(cla, 7) {
		c.Channel = bits.Field(cla, 4, 1) + 4
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
		return c, nil
	}

	c.SecureMessaging = SecureMessaging(bits.Field(cla, 4, 3))
	c.Channel = bits.Field(cla, 2, 1)
	return c, nil
}

// NewInterindustryClass builds the CLA for a channel, picking the first or
// further layout from the channel number.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > MaxChannel {
		return Class{}, fmt.Errorf("channel %d out of range (max %d)", channel, MaxChannel)
	}
	if channel >= 4 && (sm == SMProprietary || sm == SMHeaderAuth) {
		return Class{}, fmt.Errorf("SM indicator %s not supported on channel %d", sm, channel)
	}

	c := Class{IsChained: isChained, SecureMessaging: sm, Channel: channel}
	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw
	return c, nil
}

// Encode returns the CLA byte. Proprietary classes encode as Raw.
func (c Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > MaxChannel {
		return 0, fmt.Errorf("channel %d out of range (max %d)", c.Channel, MaxChannel)
	}

	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}

	if c.Channel <= 3 {
		return res | byte(c.SecureMessaging)<<2 | c.Channel, nil
	}

	res = bits.Set(res, 7)
	if c.SecureMessaging != SMNone {
		res = bits.Set(res, 6)
	}
	return res | (c.Channel - 4), nil
}

// String is the one-line form used in logs, e.g. "00" or "80 (proprietary)".
func (c Class) String() string {
	raw, err := c.Encode()
	if err != nil {
		return fmt.Sprintf("%02X (invalid)", c.Raw)
	}

	var extra []string
	switch {
	case c.IsProprietary:
		extra = append(extra, "proprietary")
	default:
		if c.Channel != 0 {
			extra = append(extra, fmt.Sprintf("channel %d", c.Channel))
		}
		if c.SecureMessaging != SMNone {
			extra = append(extra, "SM")
		}
		if c.IsChained {
			extra = append(extra, "chained")
		}
	}

	if len(extra) == 0 {
		return fmt.Sprintf("%02X", raw)
	}
	return fmt.Sprintf("%02X (%s)", raw, strings.Join(extra, ", "))
}

// Verbose returns a multi-line description of the CLA byte.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	rangeName := "First Interindustry (Ch 0-3)"
	if c.Channel >= 4 {
		rangeName = "Further Interindustry (Ch 4-19)"
	}
	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}

	return fmt.Sprintf(
		"Range: %s\nChaining: %s\nSecure Messaging: %s\nLogical Channel: %d",
		rangeName, chaining, c.SecureMessaging, c.Channel,
	)
}
