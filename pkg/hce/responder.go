package hce

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/gregLibert/hce-card/pkg/emv"
	"github.com/gregLibert/hce-card/pkg/iso7816"
	"github.com/gregLibert/hce-card/pkg/tlv"
)

// MaxCardNumberLen keeps every TLV length of the record in one short-form byte.
const MaxCardNumberLen = 19

type route struct {
	kind     CommandKind
	pattern  []byte
	response []byte
}

// Responder answers command frames for the emulated card. It holds no
// mutable state after construction and is safe for concurrent use.
type Responder struct {
	routes     []route
	fallback   []byte
	cardNumber string
	log        *zap.Logger
}

type settings struct {
	log        *zap.Logger
	cardNumber string
}

// Option configures a Responder.
type Option func(*settings)

// WithLogger sets the logger used for the dispatch trace.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCardNumber replaces the emulated card number.
func WithCardNumber(number string) Option {
	return func(s *settings) {
		s.cardNumber = number
	}
}

// ValidateCardNumber checks that number is 1 to MaxCardNumberLen ASCII digits.
func ValidateCardNumber(number string) error {
	if len(number) == 0 || len(number) > MaxCardNumberLen {
		return errors.Errorf("card number must have 1 to %d digits, got %d", MaxCardNumberLen, len(number))
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return errors.Errorf("card number has non digit %q at offset %d", number[i], i)
		}
	}
	return nil
}

// NewResponder builds every response frame up front. It is the only place
// an error can be reported.
func NewResponder(opts ...Option) (*Responder, error) {
	s := settings{log: zap.NewNop(), cardNumber: emv.DefaultCardNumber}
	for _, opt := range opts {
		opt(&s)
	}

	if err := ValidateCardNumber(s.cardNumber); err != nil {
		return nil, err
	}

	record, err := emv.BuildRecord([]byte(s.cardNumber))
	if err != nil {
		return nil, errors.Wrap(err, "build record")
	}

	r := &Responder{
		routes: []route{
			{KindSelectAID, selectAIDCommand, success(emv.PaymentSystemFCI())},
			{KindReadRecord, readRecordCommand, success(record)},
			{KindGetProcessingOptions, getProcessingOptionsCommand, success(emv.CannedProcessingOptions())},
		},
		fallback:   success([]byte(s.cardNumber)),
		cardNumber: s.cardNumber,
		log:        s.log,
	}

	r.log.Debug("responder ready",
		zap.String("card_number", s.cardNumber),
		zap.String("read_record", tlv.FormatHex(r.routes[1].response)),
	)
	return r, nil
}

func success(payload []byte) []byte {
	return iso7816.NewResponseAPDU(payload, iso7816.SW_NO_ERROR).Bytes()
}

// CardNumber returns the emulated card number.
func (r *Responder) CardNumber() string {
	return r.cardNumber
}

// Classify compares the whole frame against the known commands in priority
// order. Prefixes and partial matches are KindUnknown.
func (r *Responder) Classify(frame []byte) CommandKind {
	kind, _ := r.match(frame)
	return kind
}

func (r *Responder) match(frame []byte) (CommandKind, []byte) {
	for _, rt := range r.routes {
		if bytes.Equal(frame, rt.pattern) {
			return rt.kind, rt.response
		}
	}
	return KindUnknown, r.fallback
}

// Dispatch returns the response frame for a command frame. It never fails:
// anything that is not a known command gets the card number followed by 90 00.
// The returned slice belongs to the caller.
func (r *Responder) Dispatch(frame []byte) []byte {
	kind, resp := r.match(frame)

	if ce := r.log.Check(zap.DebugLevel, "command dispatched"); ce != nil {
		fields := []zap.Field{
			zap.Stringer("kind", kind),
			zap.String("command", tlv.FormatHex(frame)),
			zap.String("response", tlv.FormatHex(resp)),
		}
		if cmd, err := iso7816.ParseCommandAPDU(frame); err == nil {
			fields = append(fields, zap.Stringer("apdu", cmd))
		}
		ce.Write(fields...)
	}

	return clone(resp)
}

// OnLinkDeactivated records that the contactless link went away. There is
// no session state to release.
func (r *Responder) OnLinkDeactivated(reason DeactivationReason) {
	r.log.Info("link deactivated", zap.Stringer("reason", reason), zap.Int("code", int(reason)))
}

var (
	defaultOnce      sync.Once
	defaultResponder *Responder
)

// Default returns the package responder using the default card number.
func Default() *Responder {
	defaultOnce.Do(func() {
		r, err := NewResponder()
		if err != nil {
			panic(errors.Wrap(err, "default responder"))
		}
		defaultResponder = r
	})
	return defaultResponder
}

// Dispatch answers frame with the default responder.
func Dispatch(frame []byte) []byte {
	return Default().Dispatch(frame)
}

// Classify classifies frame with the default responder.
func Classify(frame []byte) CommandKind {
	return Default().Classify(frame)
}
