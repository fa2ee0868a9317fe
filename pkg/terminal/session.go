package terminal

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/gregLibert/hce-card/pkg/iso7816"
)

// Step is one command of a session together with its outcome.
type Step struct {
	Name   string
	Result *iso7816.Result
}

type session struct {
	client   *iso7816.Client
	cls      iso7816.Class
	steps    []Step
	warnings []string
}

func newSession(client *iso7816.Client) *session {
	// 0x00 is always a valid interindustry class.
	cls, _ := iso7816.NewClass(0x00)
	return &session{client: client, cls: cls}
}

// send transmits cmd and records the step whatever its status.
func (s *session) send(name string, cmd *iso7816.CommandAPDU) (*iso7816.Result, error) {
	res, err := s.client.SendResult(cmd)
	if err != nil {
		return nil, errors.Wrap(err, strings.ToLower(name))
	}
	s.steps = append(s.steps, Step{Name: name, Result: res})
	return res, nil
}

// run is send for steps that must end in 90 00. ok is false, with a
// warning recorded, otherwise.
func (s *session) run(name string, cmd *iso7816.CommandAPDU) ([]byte, bool, error) {
	res, err := s.send(name, cmd)
	if err != nil {
		return nil, false, err
	}

	payload, err := res.Payload()
	if err != nil {
		s.warnf("%s: %v", name, err)
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *session) warnf(format string, args ...interface{}) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *session) fill(steps *[]Step, warnings *[]string) {
	*steps = s.steps
	*warnings = s.warnings
}

func describeSteps(sb *strings.Builder, steps []Step) {
	for i, st := range steps {
		fmt.Fprintf(sb, "\n--- Step %d: %s ---\n", i+1, st.Name)
		sb.WriteString(st.Result.Trace.String())
		sb.WriteString("\n\n")
		sb.WriteString(st.Result.Describe())
		sb.WriteString("\n")
	}
}

func describeWarnings(sb *strings.Builder, warnings []string) {
	if len(warnings) == 0 {
		return
	}
	sb.WriteString("\n[!] Warnings:\n")
	for _, w := range warnings {
		fmt.Fprintf(sb, "  - %s\n", w)
	}
}
