package bridge

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gregLibert/hce-card/pkg/hce"
)

// DefaultExchangeTimeout bounds one command/response round trip.
const DefaultExchangeTimeout = 5 * time.Second

// Remote drives a card served on the other end of a link. It implements
// iso7816.Transmitter so a terminal can probe a bridged card.
type Remote struct {
	Link    Link
	Timeout time.Duration
}

func NewRemote(link Link) *Remote {
	return &Remote{Link: link, Timeout: DefaultExchangeTimeout}
}

func (r *Remote) Transmit(cmd []byte) ([]byte, error) {
	ctx := context.Background()
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	if err := r.Link.WriteMessage(ctx, CommandMessage(cmd)); err != nil {
		return nil, err
	}
	msg, err := r.Link.ReadMessage(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if msg.Type != MsgResponse {
		return nil, errors.Errorf("expected %s, got %s", MsgResponse, msg.Type)
	}
	return msg.APDU, nil
}

// Deactivate tells the card the field went away.
func (r *Remote) Deactivate(ctx context.Context, reason hce.DeactivationReason) error {
	return r.Link.WriteMessage(ctx, DeactivatedMessage(reason))
}
