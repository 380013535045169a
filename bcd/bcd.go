// Package bcd converts between unsigned integers and packed binary-coded decimal.
//
// Bytes are little-endian: byte 0 carries the two least significant decimal digits,
// with the lower digit in the low nibble. 1234 encodes as [0x34, 0x12].
package bcd

import (
	"errors"
	"fmt"
)

// ErrInvalidDigit is returned by Validate when a nibble is greater than 9.
var ErrInvalidDigit = errors.New("bcd: invalid digit")

// Encode returns the minimal little-endian BCD encoding of n.
// When n has an odd number of digits the most significant nibble is zero.
// Zero encodes as a single 0x00 byte.
func Encode(n uint64) []byte {
	out := make([]byte, 0, 10)
	for {
		lo := byte(n % 10)
		n /= 10
		hi := byte(n % 10)
		n /= 10
		out = append(out, hi<<4|lo)

		if n == 0 {
			return out
		}
	}
}

// Decode returns the integer for the little-endian BCD bytes b.
// Byte i contributes (high*10 + low) * 100^i. Nibbles above 9 are not rejected; use Validate first.
func Decode(b []byte) uint64 {
	var n uint64
	for i := len(b) - 1; i >= 0; i-- {
		n = n*100 + uint64(b[i]>>4)*10 + uint64(b[i]&0x0F)
	}

	return n
}

// Pad appends zero bytes to b until it is size bytes long. b is returned unchanged
// when it is already size bytes or longer.
func Pad(b []byte, size int) []byte {
	for len(b) < size {
		b = append(b, 0x00)
	}

	return b
}

// EncodeFixed encodes n into exactly size bytes.
// It fails when n needs more than size bytes.
func EncodeFixed(n uint64, size int) ([]byte, error) {
	b := Encode(n)
	if len(b) > size {
		return nil, fmt.Errorf("bcd: %d does not fit in %d bytes", n, size)
	}

	return Pad(b, size), nil
}

// Reverse returns a reversed copy of b. Some fields (levels, tones) are sent
// most significant byte first; Reverse(Pad(Encode(n), w)) yields that layout.
func Reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}

	return out
}

// Validate reports whether every nibble of b is a decimal digit.
func Validate(b []byte) error {
	for i, v := range b {
		if v>>4 > 9 || v&0x0F > 9 {
			return fmt.Errorf("%w: byte %d is 0x%02X", ErrInvalidDigit, i, v)
		}
	}

	return nil
}
