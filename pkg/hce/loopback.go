package hce

import "github.com/gregLibert/hce-card/pkg/iso7816"

// Loopback feeds command frames straight into a responder. It satisfies
// iso7816.Transmitter so terminal code can run against the emulated card
// without a reader.
type Loopback struct {
	Responder *Responder
}

var _ iso7816.Transmitter = (*Loopback)(nil)

// NewLoopback wraps r, or the default responder when r is nil.
func NewLoopback(r *Responder) *Loopback {
	if r == nil {
		r = Default()
	}
	return &Loopback{Responder: r}
}

// Transmit never fails.
func (l *Loopback) Transmit(cmd []byte) ([]byte, error) {
	return l.Responder.Dispatch(cmd), nil
}
