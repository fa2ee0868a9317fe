package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings.
// Spaces are ignored so fixtures can be written as "00 A4 04 00".
// It panics on malformed input, which makes it suitable for package-level tables.
func Hex(parts ...string) []byte {
	cleanHex := strings.ReplaceAll(strings.Join(parts, ""), " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}

// FormatHex renders data as space separated upper case byte pairs
// ("00 A4 04 00"), the inverse of Hex. Empty input yields "".
func FormatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	const digits = "0123456789ABCDEF"
	out := make([]byte, 0, len(data)*3-1)
	for i, b := range data {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, digits[b>>4], digits[b&0x0F])
	}
	return string(out)
}
