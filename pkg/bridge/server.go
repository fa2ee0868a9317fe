package bridge

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gregLibert/hce-card/pkg/hce"
	"github.com/gregLibert/hce-card/pkg/tlv"
)

// Card is the emulated card behind a link. *hce.Responder implements it.
type Card interface {
	Dispatch(frame []byte) []byte
	OnLinkDeactivated(reason hce.DeactivationReason)
}

// Event describes one handled message. Response is nil for deactivations.
type Event struct {
	Time     time.Time
	Link     string
	Type     MessageType
	Command  []byte
	Response []byte
	Reason   hce.DeactivationReason
	Elapsed  time.Duration
}

// Observer is notified after every handled message, from the serving goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Server pumps messages from links into a Card.
type Server struct {
	card     Card
	log      *zap.Logger
	observer Observer
	now      func() time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

func WithServerLogger(l *zap.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

func WithObserver(o Observer) ServerOption {
	return func(s *Server) {
		s.observer = o
	}
}

func NewServer(card Card, opts ...ServerOption) *Server {
	s := &Server{
		card: card,
		log:  zap.NewNop(),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve handles messages from link until the peer goes away or ctx is
// cancelled, then closes link. A clean shutdown returns nil.
//
// Malformed messages are logged and skipped. A dropped link without a
// deactivation message is reported to the card as a link loss.
func (s *Server) Serve(ctx context.Context, link Link) error {
	log := s.log.With(zap.String("link", link.Name()))
	log.Info("link up")

	stop := context.AfterFunc(ctx, func() { _ = link.Close() })
	defer stop()
	defer func() { _ = link.Close() }()

	deactivated := false
	for {
		msg, err := link.ReadMessage(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrMalformedMessage):
			log.Warn("dropping malformed message", zap.Error(err))
			continue
		case ctx.Err() != nil:
			log.Info("link closed", zap.String("cause", "shutdown"))
			return nil
		case isClosed(err):
			if !deactivated {
				s.deactivate(link.Name(), hce.DeactivationLinkLoss, log)
			}
			log.Info("link closed", zap.String("cause", "peer"))
			return nil
		default:
			return errors.Wrapf(err, "read from %s", link.Name())
		}

		switch msg.Type {
		case MsgCommand:
			deactivated = false
			if err := s.exchange(ctx, link, msg.APDU); err != nil {
				if ctx.Err() != nil || isClosed(err) {
					return nil
				}
				return errors.Wrapf(err, "write to %s", link.Name())
			}
		case MsgDeactivated:
			deactivated = true
			s.deactivate(link.Name(), msg.Reason, log)
		default:
			log.Warn("ignoring unexpected message", zap.Stringer("type", msg.Type))
		}
	}
}

func (s *Server) exchange(ctx context.Context, link Link, cmd []byte) error {
	started := s.now()
	resp := s.card.Dispatch(cmd)
	elapsed := s.now().Sub(started)

	if err := link.WriteMessage(ctx, ResponseMessage(resp)); err != nil {
		return err
	}

	if ce := s.log.Check(zap.DebugLevel, "exchange"); ce != nil {
		ce.Write(
			zap.String("link", link.Name()),
			zap.String("command", tlv.FormatHex(cmd)),
			zap.String("response", tlv.FormatHex(resp)),
			zap.Duration("elapsed", elapsed),
		)
	}

	if s.observer != nil {
		s.observer.Observe(Event{
			Time:     started,
			Link:     link.Name(),
			Type:     MsgCommand,
			Command:  cmd,
			Response: resp,
			Elapsed:  elapsed,
		})
	}
	return nil
}

func (s *Server) deactivate(name string, reason hce.DeactivationReason, log *zap.Logger) {
	s.card.OnLinkDeactivated(reason)
	log.Debug("deactivation forwarded", zap.Stringer("reason", reason))

	if s.observer != nil {
		s.observer.Observe(Event{
			Time:   s.now(),
			Link:   name,
			Type:   MsgDeactivated,
			Reason: reason,
		})
	}
}

// ServeTCP accepts connections on l and serves them one at a time, the way a
// single NFC controller talks to one reader at a time. It returns when ctx is
// cancelled.
func (s *Server) ServeTCP(ctx context.Context, l *TCPListener) error {
	s.log.Info("listening", zap.Stringer("addr", l.Addr()))
	for {
		link, err := l.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.Serve(ctx, link); err != nil {
			s.log.Warn("link failed", zap.String("link", link.Name()), zap.Error(err))
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}
