package terminal

import (
	"fmt"
	"strings"

	"github.com/gregLibert/hce-card/pkg/emv"
	"github.com/gregLibert/hce-card/pkg/iso7816"
)

// MaxDirectoryRecords bounds the directory walk (records are numbered 1-30).
const MaxDirectoryRecords = 30

// Selection is the outcome of selecting one directory entry.
type Selection struct {
	Application emv.ApplicationTemplate
	FCI         *emv.FCI
}

// Discovery is the result of walking a payment system environment.
type Discovery struct {
	Steps []Step

	Environment  *emv.FCI
	SFI          byte
	Applications []emv.ApplicationTemplate
	Selections   []Selection

	Warnings []string
}

// Discover selects the payment system environment named pse (PSE or PPSE),
// collects the application templates it lists, either inline in the FCI or
// in the records of its directory file, and selects each of them.
func Discover(client *iso7816.Client, pse string) (*Discovery, error) {
	s := newSession(client)
	d := &Discovery{}
	defer s.fill(&d.Steps, &d.Warnings)

	payload, ok, err := s.run("SELECT "+pse, iso7816.SelectByAID(s.cls, []byte(pse)))
	if err != nil || !ok {
		return d, err
	}

	fci, err := emv.ParseFCI(payload)
	if err != nil {
		s.warnf("environment FCI not decodable: %v", err)
		return d, nil
	}
	d.Environment = fci
	d.SFI, _ = fci.DirectorySFI()
	d.Applications = append(d.Applications, fci.Applications()...)

	if d.SFI > 0 {
		if err := d.readDirectory(s); err != nil {
			return d, err
		}
	}

	for _, app := range d.Applications {
		if len(app.AID) == 0 {
			continue
		}
		payload, ok, err := s.run(fmt.Sprintf("SELECT %X", app.AID), iso7816.SelectByAID(s.cls, app.AID))
		if err != nil {
			return d, err
		}
		if !ok {
			continue
		}
		sel := Selection{Application: app}
		if fci, err := emv.ParseFCI(payload); err != nil {
			s.warnf("FCI of %X not decodable: %v", app.AID, err)
		} else {
			sel.FCI = fci
		}
		d.Selections = append(d.Selections, sel)
	}

	return d, nil
}

// readDirectory reads records until the card reports 6A 83.
func (d *Discovery) readDirectory(s *session) error {
	for rec := byte(1); rec <= MaxDirectoryRecords; rec++ {
		res, err := s.send(fmt.Sprintf("READ RECORD %d/%d", d.SFI, rec), iso7816.ReadRecord(s.cls, d.SFI, rec))
		if err != nil {
			return err
		}
		if res.Status() == iso7816.SW_ERR_RECORD_NOT_FOUND {
			return nil
		}

		payload, err := res.Payload()
		if err != nil {
			s.warnf("record %d: %v", rec, err)
			continue
		}
		record, err := emv.ParseRecord(payload)
		if err != nil {
			s.warnf("record %d not decodable: %v", rec, err)
			continue
		}
		d.Applications = append(d.Applications, record.Applications...)
	}
	return nil
}

// Describe renders the per-step reports and the list of applications found.
func (d *Discovery) Describe() string {
	var sb strings.Builder

	sb.WriteString("=== DISCOVERY REPORT ===\n")
	describeSteps(&sb, d.Steps)

	if d.Environment != nil {
		sb.WriteString("\n" + d.Environment.Describe() + "\n")
	}

	fmt.Fprintf(&sb, "\n[=] APPLICATIONS (%d found)\n", len(d.Applications))
	for _, app := range d.Applications {
		fmt.Fprintf(&sb, "  [+] %X (%s)\n", app.AID, app.ApplicationLabel)
	}
	for _, sel := range d.Selections {
		if sel.FCI != nil {
			sb.WriteString("\n" + sel.FCI.Describe() + "\n")
		}
	}

	describeWarnings(&sb, d.Warnings)

	return strings.TrimRight(sb.String(), "\n")
}
