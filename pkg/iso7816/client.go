package iso7816

import (
	"fmt"
)

// DefaultMaxSteps bounds the exchanges made for one logical command.
const DefaultMaxSteps = 8

// Transmitter carries one raw command to a card and returns its raw answer.
// The in-process responder implements it as well as real readers.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client runs commands against a Transmitter and resolves the T=0 transport
// statuses on the way: after '61 XX' it fetches the XX pending bytes with
// GET RESPONSE, after '6C XX' it repeats the command with Le = XX.
type Client struct {
	Card     Transmitter
	MaxSteps int
}

func NewClient(card Transmitter) *Client {
	return &Client{Card: card, MaxSteps: DefaultMaxSteps}
}

// Send runs cmd and every follow-up it triggers. The returned Trace holds
// each exchange, including the ones made before an error.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	limit := c.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}

	var trace Trace
	for next := cmd; next != nil; {
		if len(trace) >= limit {
			return trace, fmt.Errorf("protocol loop: no final status after %d exchanges", limit)
		}

		resp, err := c.exchange(next)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Transaction{Command: next, Response: resp})
		next = followUp(next, resp.Status)
	}
	return trace, nil
}

// SendResult runs Send and wraps the trace into a Result.
func (c *Client) SendResult(cmd *CommandAPDU) (*Result, error) {
	trace, err := c.Send(cmd)
	if err != nil {
		return nil, err
	}
	return NewResult(trace)
}

func (c *Client) exchange(cmd *CommandAPDU) (*ResponseAPDU, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	answer, err := c.Card.Transmit(raw)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	return ParseResponseAPDU(answer)
}

// followUp returns the command required by a transport status, or nil when
// the exchange is complete.
func followUp(cmd *CommandAPDU, sw StatusWord) *CommandAPDU {
	switch sw.SW1() {
	case 0x61:
		// Same logical channel, never chained.
		cls := cmd.Class
		cls.IsChained = false
		if cls.IsProprietary {
			// GET RESPONSE is interindustry even after a class '80' command.
			cls, _ = NewInterindustryClass(false, SMNone, 0)
		}
		ins, _ := NewInstruction(INS_GET_RESPONSE)
		return NewCommandAPDU(cls, ins, 0x00, 0x00, nil, decodeShortLe(sw.SW2()))

	case 0x6C:
		retry := *cmd
		retry.Ne = decodeShortLe(sw.SW2())
		return &retry
	}
	return nil
}
