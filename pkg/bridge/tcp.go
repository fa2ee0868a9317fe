package bridge

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// TCPListener accepts reader front ends over TCP.
type TCPListener struct {
	ln net.Listener
}

// ListenTCP listens on addr ("host:port").
func ListenTCP(addr string) (*TCPListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen on %s", addr)
	}
	return &TCPListener{ln: ln}, nil
}

func (l *TCPListener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next connection. Cancelling ctx closes the listener.
func (l *TCPListener) Accept(ctx context.Context) (*StreamLink, error) {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	conn, err := l.ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "accept")
	}
	return NewStreamLink("tcp:"+conn.RemoteAddr().String(), conn), nil
}

func (l *TCPListener) Close() error {
	return l.ln.Close()
}

// DialTCP connects to a bridge listening on addr. Reader front ends use it.
func DialTCP(ctx context.Context, addr string) (*StreamLink, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return NewStreamLink("tcp:"+addr, conn), nil
}
