// Package bits addresses bits the way ISO 7816 and EMV tables number them:
// b8 is the most significant bit of a byte and b1 the least.
package bits

// mask covers bits high down to low. An empty or out-of-range span gives 0.
func mask(high, low uint) byte {
	if low < 1 || high > 8 || high < low {
		return 0
	}
	return byte(0xFF>>(8-(high-low+1))) << (low - 1)
}

// Bit is the byte with only bn set.
func Bit(n uint) byte { return mask(n, n) }

// IsSet reports whether bn of b is set.
func IsSet(b byte, n uint) bool { return b&Bit(n) != 0 }

// Set returns b with bn set.
func Set(b byte, n uint) byte { return b | Bit(n) }

// Field reads bits high..low of b as an unsigned number, e.g. the SFI in
// b8-b4 of an AFL entry: Field(0x18, 8, 4) == 3.
func Field(b byte, high, low uint) byte {
	m := mask(high, low)
	if m == 0 {
		return 0
	}
	return (b & m) >> (low - 1)
}

// SetField stores v in bits high..low of b, dropping the bits of v that do
// not fit. An invalid span returns b unchanged.
func SetField(b byte, high, low uint, v byte) byte {
	m := mask(high, low)
	if m == 0 {
		return b
	}
	return b&^m | (v<<(low-1))&m
}
