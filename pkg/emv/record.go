package emv

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/hce-card/pkg/tlv"
)

// DirectoryDiscretionaryTemplate is the '73' template of a directory entry.
type DirectoryDiscretionaryTemplate struct {
	ApplicationSelectionRegisteredProprietaryData []byte `tlv:"9F0A"`
	IssuerCountryCodeAlpha3                       []byte `tlv:"5F56" fmt:"ascii"`
	IssuerCountryCodeAlpha2                       []byte `tlv:"5F55" fmt:"ascii"`
	BankIdentifierCode                            []byte `tlv:"5F54" fmt:"ascii"`
	IBAN                                          []byte `tlv:"5F53" fmt:"ascii"`
	IssuerURL                                     []byte `tlv:"5F50" fmt:"ascii"`
	IssuerIdentificationNumber                    []byte `tlv:"42"`
	IssuerIdentificationNumberExtended            []byte `tlv:"9F0C"`
	LogEntry                                      []byte `tlv:"9F4D"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// ApplicationTemplate is one '61' directory entry: what a terminal needs to
// offer and select an application. AID and label are mandatory.
type ApplicationTemplate struct {
	AID                          []byte                          `tlv:"4F"`
	ApplicationLabel             []byte                          `tlv:"50" fmt:"ascii"`
	ApplicationPriorityIndicator []byte                          `tlv:"87" fmt:"int"`
	DirectoryDiscretionaryData   *DirectoryDiscretionaryTemplate `tlv:"73"`
	ApplicationPreferredName     []byte                          `tlv:"9F12" fmt:"ascii"`
	DDFName                      []byte                          `tlv:"9D" fmt:"ascii"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// Record is the '70' template answered to READ RECORD. Application records
// carry Track 2 equivalent data and the PAN; directory records carry '61'
// entries. Fields are encoded in declaration order.
type Record struct {
	Track2         []byte `tlv:"57" fmt:"track2"`
	PAN            []byte `tlv:"5A" fmt:"bcd"`
	CardholderName []byte `tlv:"5F20" fmt:"ascii"`
	ExpirationDate []byte `tlv:"5F24" fmt:"bcd"`

	Applications []ApplicationTemplate `tlv:"61"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// Bytes encodes the record as a '70' template.
func (r *Record) Bytes() ([]byte, error) {
	data, err := tlv.Marshal("70", r)
	if err != nil {
		return nil, fmt.Errorf("record encode failed: %w", err)
	}
	return data, nil
}

// BuildRecord encodes a record holding only Track 2 equivalent data.
func BuildRecord(track2 []byte) ([]byte, error) {
	if len(track2) == 0 {
		return nil, fmt.Errorf("empty track 2 data")
	}
	return (&Record{Track2: track2}).Bytes()
}

// ParseRecord decodes a READ RECORD answer: exactly one '70' template with
// canonical lengths.
func ParseRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty record data")
	}

	packets, err := tlv.DecodeExact(data)
	if err != nil {
		return nil, fmt.Errorf("record decode: %w", err)
	}
	if len(packets) != 1 || !strings.EqualFold(packets[0].Tag, "70") {
		return nil, fmt.Errorf("record is not a single '70' template")
	}

	r := &Record{}
	if err := tlv.UnmarshalFromPackets(packets[0].TLVs, r); err != nil {
		return nil, fmt.Errorf("record mapping: %w", err)
	}
	return r, nil
}

// Describe lists the record fields, then each directory entry.
func (r *Record) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== EMV RECORD ===")

	tlv.WriteStructFields(&sb, "Record", r)
	writeApplications(&sb, r.Applications)

	return strings.TrimRight(sb.String(), "\n")
}

func writeApplications(sb *strings.Builder, apps []ApplicationTemplate) {
	for i := range apps {
		prefix := fmt.Sprintf("App[%d]", i+1)
		tlv.WriteStructFields(sb, prefix, &apps[i])
		tlv.WriteStructFields(sb, prefix+".Discretionary", apps[i].DirectoryDiscretionaryData)
	}
}
