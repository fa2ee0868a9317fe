package iso7816

import (
	"fmt"
)

// A command APDU is CLA INS P1 P2, optionally followed by Lc + data and by
// Le (ISO/IEC 7816-3, 12.1). Lc and Le use one byte each unless Nc exceeds
// 255 or Ne exceeds 256; the extended form then applies to both fields and
// is introduced by a single 00 byte.
//
// A response APDU is the data field followed by SW1 SW2.

// Length limits of the two encodings.
const (
	HeaderSize = 4

	MaxShortLc = 255
	MaxShortLe = 256 // encoded as 00

	MaxExtendedLc = 65535
	MaxExtendedLe = 65536 // encoded as 00 00
)

// CommandAPDU is a decoded command. Ne is the number of response bytes the
// sender accepts; 0 means no Le field.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int
}

func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{Class: cla, Instruction: ins, P1: p1, P2: p2, Data: data, Ne: ne}
}

// extended reports whether the command needs the extended length form.
func (c *CommandAPDU) extended() bool {
	return len(c.Data) > MaxShortLc || c.Ne > MaxShortLe
}

// Bytes encodes the command, picking the short form whenever Nc and Ne allow.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc, ne := len(c.Data), c.Ne
	switch {
	case nc > MaxExtendedLc:
		return nil, fmt.Errorf("data too long: %d bytes (max %d)", nc, MaxExtendedLc)
	case ne < 0 || ne > MaxExtendedLe:
		return nil, fmt.Errorf("invalid Ne %d (max %d)", ne, MaxExtendedLe)
	}

	cla, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}

	out := make([]byte, 0, HeaderSize+3+nc+2)
	out = append(out, cla, byte(c.Instruction.Raw), c.P1, c.P2)

	ext := c.extended()
	if ext {
		out = append(out, 0x00)
	}
	if nc > 0 {
		if ext {
			out = append(out, byte(nc>>8))
		}
		out = append(out, byte(nc))
		out = append(out, c.Data...)
	}
	if ne > 0 {
		// 256 and 65536 wrap to zero.
		if ext {
			out = append(out, byte(ne>>8))
		}
		out = append(out, byte(ne))
	}
	return out, nil
}

// ParseCommandAPDU decodes a command as received by the card. The seven
// forms of ISO/IEC 7816-3 are accepted (1, 2S, 3S, 4S, 2E, 3E, 4E). Length
// fields that disagree with the frame size are an error, as are CLA and INS
// bytes that cannot start a command.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("command too short: length %d", len(raw))
	}

	cla, err := NewClass(raw[0])
	if err != nil {
		return nil, err
	}
	ins, err := NewInstruction(InsCode(raw[1]))
	if err != nil {
		return nil, err
	}
	cmd := &CommandAPDU{Class: cla, Instruction: ins, P1: raw[2], P2: raw[3]}

	body := raw[HeaderSize:]
	if len(body) == 0 {
		return cmd, nil
	}
	if len(body) == 1 {
		cmd.Ne = decodeShortLe(body[0])
		return cmd, nil
	}

	if body[0] != 0x00 {
		nc := int(body[0])
		data, le, err := splitBody(body[1:], nc, 1)
		if err != nil {
			return nil, fmt.Errorf("short %w", err)
		}
		cmd.Data = data
		if le != nil {
			cmd.Ne = decodeShortLe(le[0])
		}
		return cmd, nil
	}

	if len(body) < 3 {
		return nil, fmt.Errorf("truncated extended length field")
	}
	if len(body) == 3 {
		cmd.Ne = decodeExtendedLe(body[1], body[2])
		return cmd, nil
	}

	nc := int(body[1])<<8 | int(body[2])
	if nc == 0 {
		return nil, fmt.Errorf("extended Lc cannot be zero")
	}
	data, le, err := splitBody(body[3:], nc, 2)
	if err != nil {
		return nil, fmt.Errorf("extended %w", err)
	}
	cmd.Data = data
	if le != nil {
		cmd.Ne = decodeExtendedLe(le[0], le[1])
	}
	return cmd, nil
}

// splitBody cuts rest into nc data bytes and an optional Le field of leLen
// bytes.
func splitBody(rest []byte, nc, leLen int) (data, le []byte, err error) {
	switch len(rest) {
	case nc:
		return rest, nil, nil
	case nc + leLen:
		return rest[:nc], rest[nc:], nil
	}
	return nil, nil, fmt.Errorf("Lc %d inconsistent with %d bytes after it", nc, len(rest))
}

func decodeShortLe(le byte) int {
	if le == 0 {
		return MaxShortLe
	}
	return int(le)
}

func decodeExtendedLe(hi, lo byte) int {
	if ne := int(hi)<<8 | int(lo); ne != 0 {
		return ne
	}
	return MaxExtendedLe
}

// String summarizes the header, e.g.
// "CLA 80 (proprietary) | A8 GET PROCESSING OPTIONS | P1: 00, P2: 00 | Lc: 2 | Le: 256".
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("CLA %s | %s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Class, c.Instruction.Raw, c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU is a reply: data field and trailer.
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

func NewResponseAPDU(data []byte, sw StatusWord) *ResponseAPDU {
	return &ResponseAPDU{Data: data, Status: sw}
}

// ParseResponseAPDU splits raw into data and status word. Data aliases raw.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	n := len(raw) - 2
	if n < 0 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}
	return NewResponseAPDU(raw[:n], NewStatusWord(raw[n], raw[n+1])), nil
}

// Bytes is data || SW1 || SW2 in a fresh slice.
func (r *ResponseAPDU) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	return append(out, r.Status.SW1(), r.Status.SW2())
}

func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
