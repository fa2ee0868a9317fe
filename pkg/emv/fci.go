package emv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// FCI is the answer to SELECT: tag '6F' wrapping the DF name ('84') and a
// proprietary template ('A5').
//
// A contact PSE (1PAY.SYS.DDF01) points at its directory file through the SFI
// ('88'). A contactless PPSE (2PAY.SYS.DDF01) lists the applications inline,
// as '61' templates under 'BF0C'. An application FCI carries the label, the
// priority and the PDOL the terminal must fill for GET PROCESSING OPTIONS.
type FCI struct {
	DFName      []byte         `tlv:"84" fmt:"ascii"`
	Proprietary FCIProprietary `tlv:"A5"`
}

// FCIProprietary is the 'A5' template.
type FCIProprietary struct {
	ApplicationLabel         []byte `tlv:"50" fmt:"ascii"`
	Priority                 []byte `tlv:"87" fmt:"int"`
	DirectorySFI             []byte `tlv:"88"`
	PDOL                     []byte `tlv:"9F38"`
	LanguagePreference       []byte `tlv:"5F2D" fmt:"ascii"`
	IssuerCodeTableIndex     []byte `tlv:"9F11" fmt:"int"`
	ApplicationPreferredName []byte `tlv:"9F12" fmt:"ascii"`

	Discretionary *FCIDiscretionary `tlv:"BF0C"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FCIDiscretionary is the 'BF0C' template.
type FCIDiscretionary struct {
	Applications []ApplicationTemplate `tlv:"61"`

	LogEntry                []byte `tlv:"9F4D"`
	IssuerCountryCodeAlpha2 []byte `tlv:"5F55" fmt:"ascii"`
	IssuerURL               []byte `tlv:"5F50" fmt:"ascii"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// ParseFCI decodes a SELECT answer. The '6F' wrapper may be omitted. Bytes
// left over after the last object, or an object running past the end, are an
// error.
func ParseFCI(data []byte) (*FCI, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty FCI")
	}

	packets, err := tlv.DecodeExact(data)
	if err != nil {
		return nil, fmt.Errorf("FCI decode: %w", err)
	}
	if len(packets) == 1 && strings.EqualFold(packets[0].Tag, "6F") {
		packets = packets[0].TLVs
	}

	fci := &FCI{}
	if err := tlv.UnmarshalFromPackets(packets, fci); err != nil {
		return nil, fmt.Errorf("FCI mapping: %w", err)
	}
	return fci, nil
}

// DirectorySFI returns the SFI of the payment system directory, if any.
func (f *FCI) DirectorySFI() (byte, bool) {
	if sfi := f.Proprietary.DirectorySFI; len(sfi) == 1 {
		return sfi[0], true
	}
	return 0, false
}

// Applications returns the directory entries listed inline (PPSE).
func (f *FCI) Applications() []ApplicationTemplate {
	if f.Proprietary.Discretionary == nil {
		return nil
	}
	return f.Proprietary.Discretionary.Applications
}

// Describe renders every present field, one per line.
func (f *FCI) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV FCI TEMPLATE ===")

	tlv.WriteStructFields(&sb, "FCI", f)
	tlv.WriteStructFields(&sb, "A5", f.Proprietary)
	if dd := f.Proprietary.Discretionary; dd != nil {
		tlv.WriteStructFields(&sb, "BF0C", dd)
		writeApplications(&sb, dd.Applications)
	}

	return strings.TrimRight(sb.String(), "\n")
}
