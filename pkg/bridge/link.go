package bridge

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Link carries framed messages between the emulated card and a reader
// front end.
type Link interface {
	Name() string
	ReadMessage(ctx context.Context) (Message, error)
	WriteMessage(ctx context.Context, m Message) error
	Close() error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// StreamLink frames messages over any byte stream: a serial port, a TCP
// connection or one end of a pipe.
type StreamLink struct {
	name string
	rwc  io.ReadWriteCloser

	readMu  sync.Mutex
	writeMu sync.Mutex
}

// NewStreamLink wraps rwc. The link owns rwc and closes it on Close.
func NewStreamLink(name string, rwc io.ReadWriteCloser) *StreamLink {
	return &StreamLink{name: name, rwc: rwc}
}

func (l *StreamLink) Name() string {
	return l.name
}

// ReadMessage blocks until a whole frame has been read. Garbage before the
// frame header is skipped.
func (l *StreamLink) ReadMessage(ctx context.Context) (Message, error) {
	l.readMu.Lock()
	defer l.readMu.Unlock()

	if d, ok := l.rwc.(readDeadliner); ok {
		if deadline, has := ctx.Deadline(); has {
			_ = d.SetReadDeadline(deadline)
		} else {
			_ = d.SetReadDeadline(time.Time{})
		}
	}

	payload, err := readFrame(ctxReadFull(ctx, l.rwc))
	if err != nil {
		return Message{}, err
	}

	return ParseMessage(payload)
}

func (l *StreamLink) WriteMessage(ctx context.Context, m Message) error {
	payload, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	frame, err := encodeFrame(payload)
	if err != nil {
		return err
	}

	l.writeMu.Lock()
	defer l.writeMu.Unlock()

	if d, ok := l.rwc.(writeDeadliner); ok {
		if deadline, has := ctx.Deadline(); has {
			_ = d.SetWriteDeadline(deadline)
		} else {
			_ = d.SetWriteDeadline(time.Time{})
		}
	}

	return errors.Wrapf(writeFull(ctx, l.rwc, frame), "write %s frame", m.Type)
}

func (l *StreamLink) Close() error {
	return l.rwc.Close()
}
