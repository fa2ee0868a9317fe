package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

var unknownType = reflect.TypeOf([]bertlv.TLV(nil))

// valueFormats renders a field value according to its `fmt` struct tag.
// Every form starts with the upper-case hex dump.
var valueFormats = map[string]func([]byte) string{
	"ascii": func(b []byte) string { return fmt.Sprintf("%X (%q)", b, MakeSafeASCII(b)) },
	"int":   func(b []byte) string { return fmt.Sprintf("%X (Dec: %d)", b, bigEndianInt(b)) },
	"bcd":   func(b []byte) string { return fmt.Sprintf("%X (%s)", b, DecodeBCD(b)) },
	// Issued cards encode Track 2 in BCD; emulators often send ASCII digits.
	"track2": func(b []byte) string {
		if isDigits(b) {
			return fmt.Sprintf("%X (%q)", b, string(b))
		}
		return fmt.Sprintf("%X (%s)", b, DecodeBCD(b))
	},
}

// WriteStructFields writes one "    - prefix.Field (tag): value" line per
// non-empty byte field of s, then one line per unknown TLV. Lines are
// separated by newlines with no trailing newline; a newline is prepended
// when sb already holds text. A nil pointer writes nothing.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}

	var lines []string
	for i := 0; i < v.NumField(); i++ {
		f, sf := v.Field(i), v.Type().Field(i)
		switch {
		case f.Type() == unknownType:
			for _, t := range f.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, t.Tag, t.Value))
			}
		case f.Kind() == reflect.Slice && f.Type().Elem().Kind() == reflect.Uint8 && f.Len() > 0:
			name := sf.Name
			if tag := sf.Tag.Get("tlv"); tag != "" {
				name += " (" + tag + ")"
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, formatValue(f.Bytes(), sf.Tag.Get("fmt"))))
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteByte('\n')
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func formatValue(b []byte, format string) string {
	if f, ok := valueFormats[format]; ok {
		return f(b)
	}
	return fmt.Sprintf("%X", b)
}

func bigEndianInt(b []byte) int {
	n := 0
	for _, x := range b {
		n = n<<8 | int(x)
	}
	return n
}

// DecodeBCD renders packed BCD nibbles as text. The EMV field separator
// nibble 'D' becomes '=' and the 'F' padding nibble is dropped.
func DecodeBCD(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		for _, nibble := range []byte{b >> 4, b & 0x0F} {
			switch {
			case nibble <= 9:
				sb.WriteByte('0' + nibble)
			case nibble == 0x0D:
				sb.WriteByte('=')
			case nibble == 0x0F:
			default:
				sb.WriteByte('?')
			}
		}
	}
	return sb.String()
}

func isDigits(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	for _, b := range data {
		if b < '0' || b > '9' {
			return false
		}
	}
	return true
}

// MakeSafeASCII replaces every non printable byte with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
