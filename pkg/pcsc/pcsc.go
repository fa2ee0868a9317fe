// Package pcsc connects the terminal side of the tool to a PC/SC reader,
// typically a contactless reader with a phone running the emulated card on it.
package pcsc

import (
	"strings"
	"sync"

	"github.com/ebfe/scard"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Reader is a connected card. It implements iso7816.Transmitter.
type Reader struct {
	mu   sync.Mutex
	name string
	ctx  *scard.Context
	card *scard.Card
}

// Readers lists the PC/SC readers attached to the host.
func Readers() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, errors.Wrap(err, "establish context")
	}
	defer func() { _ = ctx.Release() }()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, errors.Wrap(err, "list readers")
	}
	return readers, nil
}

// Connect opens the card present in the reader matching name (see
// PickReader).
func Connect(name string) (*Reader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, errors.Wrap(err, "establish context")
	}

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, multierr.Append(errors.Wrap(err, "list readers"), ctx.Release())
	}
	chosen, err := PickReader(name, readers)
	if err != nil {
		return nil, multierr.Append(err, ctx.Release())
	}

	// T=0|T=1 avoids "Parameter Incorrect" on readers that reject ProtocolAny.
	card, err := ctx.Connect(chosen, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "connect to %s", chosen), ctx.Release())
	}

	return &Reader{name: chosen, ctx: ctx, card: card}, nil
}

// PickReader chooses among readers. An empty want takes the first reader;
// otherwise an exact name wins, then a unique case-insensitive substring.
func PickReader(want string, readers []string) (string, error) {
	if len(readers) == 0 {
		return "", errors.New("no smart card reader found")
	}
	if want == "" {
		return readers[0], nil
	}

	var matches []string
	for _, r := range readers {
		if r == want {
			return r, nil
		}
		if strings.Contains(strings.ToLower(r), strings.ToLower(want)) {
			matches = append(matches, r)
		}
	}

	switch len(matches) {
	case 0:
		return "", errors.Errorf("no reader matches %q", want)
	case 1:
		return matches[0], nil
	default:
		msg := "multiple readers match " + `"` + want + `"` + ", please specify one of"
		for _, m := range matches {
			msg += "\n * '" + m + "'"
		}
		return "", errors.New(msg)
	}
}

func (r *Reader) Name() string {
	return r.name
}

func (r *Reader) Transmit(cmd []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp, err := r.card.Transmit(cmd)
	if err != nil {
		return nil, errors.Wrap(err, "transmit")
	}
	return resp, nil
}

// Close leaves the card in place and releases the PC/SC context.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return multierr.Combine(
		errors.Wrap(r.card.Disconnect(scard.LeaveCard), "disconnect card"),
		errors.Wrap(r.ctx.Release(), "release context"),
	)
}
