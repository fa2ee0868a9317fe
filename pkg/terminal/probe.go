// Package terminal plays the reader side of a contactless session against a
// card, emulated or real, and reports what the card answered.
package terminal

import (
	"strings"

	"github.com/gregLibert/hce-card/pkg/emv"
	"github.com/gregLibert/hce-card/pkg/iso7816"
)

// Report collects everything a probe learned. Objects that could not be
// decoded stay nil and are explained in Warnings.
type Report struct {
	Steps []Step

	FCI               *emv.FCI
	ProcessingOptions *emv.ProcessingOptions
	Record            *emv.Record

	Warnings []string
}

// Track2 returns the Track 2 equivalent data read from the card, if any.
func (r *Report) Track2() []byte {
	if r.Record == nil {
		return nil
	}
	return r.Record.Track2
}

// Probe selects aid, asks for the processing options and reads record 1 of
// SFI 1. The steps are fixed: a card that answers with undecodable data is
// still driven to the end and the problems are listed as warnings. Only
// transport failures and a rejected SELECT stop the probe early.
func Probe(client *iso7816.Client, aid []byte) (*Report, error) {
	s := newSession(client)
	report := &Report{}
	defer s.fill(&report.Steps, &report.Warnings)

	// SELECT
	payload, ok, err := s.run("SELECT", iso7816.SelectByAID(s.cls, aid))
	if err != nil || !ok {
		return report, err
	}
	if fci, err := emv.ParseFCI(payload); err != nil {
		s.warnf("FCI not decodable: %v", err)
	} else {
		report.FCI = fci
	}

	// GET PROCESSING OPTIONS with an empty PDOL.
	payload, ok, err = s.run("GET PROCESSING OPTIONS", emv.GetProcessingOptions(nil))
	if err != nil {
		return report, err
	}
	if ok {
		if po, err := emv.ParseProcessingOptions(payload); err != nil {
			s.warnf("processing options not decodable: %v", err)
		} else {
			report.ProcessingOptions = po
		}
	}

	payload, ok, err = s.run("READ RECORD", iso7816.ReadRecordNoLe(s.cls, 1, 1))
	if err != nil {
		return report, err
	}
	if ok {
		if rec, err := emv.ParseRecord(payload); err != nil {
			s.warnf("record not decodable: %v", err)
		} else {
			report.Record = rec
			if len(rec.Track2) == 0 {
				s.warnf("record carries no Track 2 data")
			}
		}
	}

	return report, nil
}

// Describe renders the per-step reports followed by the decoded objects.
func (r *Report) Describe() string {
	var sb strings.Builder

	sb.WriteString("=== PROBE REPORT ===\n")
	describeSteps(&sb, r.Steps)

	if r.FCI != nil {
		sb.WriteString("\n" + r.FCI.Describe() + "\n")
	}
	if r.ProcessingOptions != nil {
		sb.WriteString("\n" + r.ProcessingOptions.Describe() + "\n")
	}
	if r.Record != nil {
		sb.WriteString("\n" + r.Record.Describe() + "\n")
	}

	describeWarnings(&sb, r.Warnings)

	return strings.TrimRight(sb.String(), "\n")
}
