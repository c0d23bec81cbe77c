// Package bits provides small helpers for reading and writing individual
// bits and bit ranges of a byte. Bits are numbered 1 (least significant)
// to 8 (most significant), matching the numbering used by ISO 7816 and
// the NFC Forum NDEF specification.
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet checks if the n-th bit is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with the n-th bit set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// GetRange extracts the value from a range of bits (e.g., bits 3 to 1).
// Example: GetRange(0b0000_0101, 3, 1) returns 5.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}
