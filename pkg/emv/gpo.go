package emv

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hce-card/pkg/bits"
	"github.com/gregLibert/hce-card/pkg/iso7816"
	"github.com/gregLibert/hce-card/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// GET PROCESSING OPTIONS (EMV Book 3, 6.5.8):
// The terminal sends PDOL related data in a '83' template; the card answers
// with its Application Interchange Profile (AIP) and Application File Locator
// (AFL), either as a primitive '80' (AIP || AFL) or as a '77' template holding
// '82' (AIP) and '94' (AFL).

// AIP is the Application Interchange Profile (tag '82').
type AIP [2]byte

// DefaultAIP advertises DDA only.
var DefaultAIP = AIP{0x20, 0x00}

// Bytes returns the two AIP bytes.
func (a AIP) Bytes() []byte {
	return []byte{a[0], a[1]}
}

// SDASupported reports static data authentication (byte 1, bit 7).
func (a AIP) SDASupported() bool {
	return bits.IsSet(a[0], 7)
}

// DDASupported reports dynamic data authentication (byte 1, bit 6).
func (a AIP) DDASupported() bool {
	return bits.IsSet(a[0], 6)
}

// CardholderVerificationSupported reports byte 1, bit 5.
func (a AIP) CardholderVerificationSupported() bool {
	return bits.IsSet(a[0], 5)
}

// TerminalRiskManagementRequired reports byte 1, bit 4.
func (a AIP) TerminalRiskManagementRequired() bool {
	return bits.IsSet(a[0], 4)
}

// IssuerAuthenticationSupported reports byte 1, bit 3.
func (a AIP) IssuerAuthenticationSupported() bool {
	return bits.IsSet(a[0], 3)
}

// CDASupported reports combined DDA / application cryptogram generation (byte 1, bit 1).
func (a AIP) CDASupported() bool {
	return bits.IsSet(a[0], 1)
}

// Describe lists the capabilities advertised by the profile.
func (a AIP) Describe() string {
	var caps []string
	for _, c := range []struct {
		set  bool
		name string
	}{
		{a.SDASupported(), "SDA"},
		{a.DDASupported(), "DDA"},
		{a.CardholderVerificationSupported(), "Cardholder verification"},
		{a.TerminalRiskManagementRequired(), "Terminal risk management"},
		{a.IssuerAuthenticationSupported(), "Issuer authentication"},
		{a.CDASupported(), "CDA"},
	} {
		if c.set {
			caps = append(caps, c.name)
		}
	}
	if len(caps) == 0 {
		caps = []string{"None"}
	}
	return fmt.Sprintf("%02X%02X (%s)", a[0], a[1], strings.Join(caps, ", "))
}

// AFLEntry locates a range of records in one short file.
type AFLEntry struct {
	SFI                byte
	FirstRecord        byte
	LastRecord         byte
	OfflineAuthRecords byte
}

// AFL is the Application File Locator (tag '94').
type AFL []AFLEntry

// DefaultAFL points at SFI 1 record 1, SFI 2 record 1 and SFI 3 records 1 to 2.
var DefaultAFL = AFL{
	{SFI: 1, FirstRecord: 1, LastRecord: 1},
	{SFI: 2, FirstRecord: 1, LastRecord: 1},
	{SFI: 3, FirstRecord: 1, LastRecord: 2},
}

// Bytes encodes the AFL, four bytes per entry. The SFI occupies bits 8-4 of
// the first byte.
func (a AFL) Bytes() []byte {
	out := make([]byte, 0, len(a)*4)
	for _, e := range a {
		out = append(out, bits.SetField(0, 8, 4, e.SFI), e.FirstRecord, e.LastRecord, e.OfflineAuthRecords)
	}
	return out
}

// Records returns the number of records the AFL asks the terminal to read.
func (a AFL) Records() int {
	n := 0
	for _, e := range a {
		n += int(e.LastRecord) - int(e.FirstRecord) + 1
	}
	return n
}

// ParseAFL decodes and validates an AFL value.
func ParseAFL(data []byte) (AFL, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("AFL length %d is not a multiple of 4", len(data))
	}

	afl := make(AFL, 0, len(data)/4)
	for i := 0; i < len(data); i += 4 {
		e := AFLEntry{
			SFI:                bits.Field(data[i], 8, 4),
			FirstRecord:        data[i+1],
			LastRecord:         data[i+2],
			OfflineAuthRecords: data[i+3],
		}

		switch {
		case bits.Field(data[i], 3, 1) != 0:
			return nil, fmt.Errorf("AFL entry %d: low bits of SFI byte %02X must be zero", i/4, data[i])
		case e.SFI < 1 || e.SFI > 30:
			return nil, fmt.Errorf("AFL entry %d: SFI %d out of range", i/4, e.SFI)
		case e.FirstRecord == 0:
			return nil, fmt.Errorf("AFL entry %d: first record cannot be 0", i/4)
		case e.LastRecord < e.FirstRecord:
			return nil, fmt.Errorf("AFL entry %d: last record %d before first %d", i/4, e.LastRecord, e.FirstRecord)
		case int(e.OfflineAuthRecords) > int(e.LastRecord)-int(e.FirstRecord)+1:
			return nil, fmt.Errorf("AFL entry %d: %d offline records exceed range", i/4, e.OfflineAuthRecords)
		}

		afl = append(afl, e)
	}
	return afl, nil
}

// responseFormat2 is the content of a '77' GPO response.
type responseFormat2 struct {
	AIP []byte `tlv:"82"`
	AFL []byte `tlv:"94"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// ProcessingOptions is the decoded answer to GET PROCESSING OPTIONS.
type ProcessingOptions struct {
	Format byte // 0x77 or 0x80
	AIP    AIP
	AFL    AFL

	Unknown []bertlv.TLV
}

// BuildProcessingOptions encodes a format 2 ('77') response.
func BuildProcessingOptions(aip AIP, afl AFL) ([]byte, error) {
	data, err := tlv.Marshal("77", responseFormat2{AIP: aip.Bytes(), AFL: afl.Bytes()})
	if err != nil {
		return nil, fmt.Errorf("processing options encode failed: %w", err)
	}
	return data, nil
}

// cannedProcessingOptions is answered byte for byte. The '77' and '94'
// lengths (14 and 10) are 4 bytes short of the three AFL entries that follow.
var cannedProcessingOptions = tlv.Hex(
	"77 0E",
	"82 02 2000",
	"94 0A 08010100 10010100 18010200",
)

// CannedProcessingOptions returns a fresh copy of the GPO response the
// emulated card answers. It carries DefaultAIP and DefaultAFL.
func CannedProcessingOptions() []byte {
	out := make([]byte, len(cannedProcessingOptions))
	copy(out, cannedProcessingOptions)
	return out
}

// ParseProcessingOptions decodes a GPO response in either format.
func ParseProcessingOptions(data []byte) (*ProcessingOptions, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty processing options")
	}

	packets, err := tlv.DecodeExact(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	if len(packets) != 1 {
		return nil, fmt.Errorf("expected a single response template, got %d objects", len(packets))
	}

	var aip, afl []byte
	po := &ProcessingOptions{}

	switch strings.ToUpper(packets[0].Tag) {
	case "80":
		po.Format = 0x80
		value := packets[0].Value
		if len(value) < 2 {
			return nil, fmt.Errorf("format 1 response too short: %d bytes", len(value))
		}
		aip, afl = value[:2], value[2:]

	case "77":
		po.Format = 0x77
		var body responseFormat2
		if err := tlv.UnmarshalFromPackets(packets[0].TLVs, &body); err != nil {
			return nil, fmt.Errorf("failed to map format 2 response: %w", err)
		}
		if len(body.AIP) != 2 {
			return nil, fmt.Errorf("AIP must be 2 bytes, got %d", len(body.AIP))
		}
		aip, afl = body.AIP, body.AFL
		po.Unknown = body.Unknown

	default:
		return nil, fmt.Errorf("unexpected response template %s", packets[0].Tag)
	}

	copy(po.AIP[:], aip)
	if po.AFL, err = ParseAFL(afl); err != nil {
		return nil, err
	}
	return po, nil
}

// Describe generates a report of the profile and of every AFL entry.
func (p *ProcessingOptions) Describe() string {
	var lines []string
	lines = append(lines, "=== EMV PROCESSING OPTIONS ===")
	lines = append(lines, fmt.Sprintf("    - Format: %02X", p.Format))
	lines = append(lines, fmt.Sprintf("    - AIP (82): %s", p.AIP.Describe()))

	for i, e := range p.AFL {
		lines = append(lines, fmt.Sprintf("    - AFL[%d] (94): SFI %d, records %d-%d, %d for offline auth",
			i+1, e.SFI, e.FirstRecord, e.LastRecord, e.OfflineAuthRecords))
	}
	for _, u := range p.Unknown {
		lines = append(lines, fmt.Sprintf("    - Unknown Tag %s: %X", u.Tag, u.Value))
	}

	return strings.Join(lines, "\n")
}

// GetProcessingOptions builds the GPO command (class '80', INS 'A8') with the
// PDOL related data wrapped in a '83' template.
func GetProcessingOptions(pdolData []byte) *iso7816.CommandAPDU {
	cls, _ := iso7816.NewClass(0x80)
	ins, _ := iso7816.NewInstruction(iso7816.INS_GET_PROCESSING_OPTIONS)

	data := make([]byte, 0, 2+len(pdolData))
	data = append(data, 0x83, byte(len(pdolData)))
	data = append(data, pdolData...)

	return iso7816.NewCommandAPDU(cls, ins, 0x00, 0x00, data, iso7816.MaxShortLe)
}
