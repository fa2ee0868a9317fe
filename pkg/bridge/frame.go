package bridge

import (
	"context"
	"encoding/binary"
	"io"
	"math"

	"github.com/pkg/errors"
)

// Wire frame: 'H' 'C' | payload length (uint16, big endian) | payload.
var frameHeader = [2]byte{0x48, 0x43}

type readFullFunc func(buf []byte) error

func encodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > math.MaxUint16 {
		return nil, errors.Errorf("payload too large: %d", len(payload))
	}

	frame := make([]byte, 4+len(payload))
	frame[0] = frameHeader[0]
	frame[1] = frameHeader[1]
	// #nosec G115 -- length is bounded by math.MaxUint16 above.
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(payload)))
	copy(frame[4:], payload)

	return frame, nil
}

func readFrame(readFull readFullFunc) ([]byte, error) {
	if err := resyncToHeader(readFull); err != nil {
		return nil, err
	}

	var lenBuf [2]byte
	if err := readFull(lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "read frame length")
	}
	ln := int(binary.BigEndian.Uint16(lenBuf[:]))
	if ln == 0 {
		return nil, errors.Wrap(ErrMalformedMessage, "zero length frame")
	}

	payload := make([]byte, ln)
	if err := readFull(payload); err != nil {
		return nil, errors.Wrap(err, "read frame payload")
	}

	return payload, nil
}

// resyncToHeader drops bytes until the two header bytes have been seen in a row.
func resyncToHeader(readFull readFullFunc) error {
	buf := make([]byte, 1)
	matched := false
	for {
		if err := readFull(buf); err != nil {
			return errors.Wrap(err, "read frame header")
		}
		switch {
		case matched && buf[0] == frameHeader[1]:
			return nil
		case buf[0] == frameHeader[0]:
			matched = true
		default:
			matched = false
		}
	}
}

// ctxReadFull fills buf from r, checking ctx between reads. Readers with a
// read timeout (serial ports) return (0, nil) when idle, which keeps the
// loop responsive to cancellation.
func ctxReadFull(ctx context.Context, r io.Reader) readFullFunc {
	return func(buf []byte) error {
		read := 0
		for read < len(buf) {
			if err := ctx.Err(); err != nil {
				return err
			}
			n, err := r.Read(buf[read:])
			read += n
			if err != nil {
				if err == io.EOF && read > 0 {
					return io.ErrUnexpectedEOF
				}
				return err
			}
		}
		return nil
	}
}

func writeFull(ctx context.Context, w io.Writer, buf []byte) error {
	written := 0
	for written < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := w.Write(buf[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}
