// Package text encodes and matches the ASCII command protocols used by Yaesu and Kenwood
// transceivers.
//
// Every message is an opcode, an optional fixed-width field and the ';' delimiter:
// "FA014250000;" sets (or reports) VFO A to 14.25 MHz, "FA;" queries it. The radio answers
// a query with a message carrying the same opcode, but it also sends unsolicited reports
// and answers to other queries, so decoders return false for anything they do not expect.
package text

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-cat/command"
)

// Delimiter ends every message.
const Delimiter = ';'

// Query returns the get message for op, e.g. "FA;".
func Query(op string) []byte {
	return []byte(op + string(Delimiter))
}

// Message concatenates parts and appends the delimiter.
func Message(parts ...string) []byte {
	return []byte(strings.Join(parts, "") + string(Delimiter))
}

// Uint returns op followed by n zero-padded to width digits, e.g. Uint("FA", 9, 14250000)
// is "FA014250000;". n must fit in width digits; schemas enforce that before encoding.
func Uint(op string, width int, n uint64) []byte {
	return []byte(fmt.Sprintf("%s%0*d%c", op, width, n, Delimiter))
}

// Signed returns op followed by a sign and |n| zero-padded to width digits, e.g.
// Signed("RU", 4, -50) is "RU-0050;".
func Signed(op string, width int, n int64) []byte {
	sign := '+'
	if n < 0 {
		sign = '-'
		n = -n
	}

	return []byte(fmt.Sprintf("%s%c%0*d%c", op, sign, width, n, Delimiter))
}

// Flag returns op followed by "1" for true or "0" for false.
func Flag(op string, on bool) []byte {
	if on {
		return Message(op, "1")
	}

	return Message(op, "0")
}

// Field extracts the text between prefix and the delimiter when frame is exactly
// prefix + width characters + delimiter. A width of -1 accepts any length.
func Field(frame []byte, prefix string, width int) (string, bool) {
	s := string(frame)
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, string(Delimiter)) {
		return "", false
	}

	body := s[len(prefix) : len(s)-1]
	if width >= 0 && len(body) != width {
		return "", false
	}

	return body, true
}

// ParseUint extracts the width-digit decimal value following prefix.
func ParseUint(frame []byte, prefix string, width int) (uint64, bool) {
	body, ok := Field(frame, prefix, width)
	if !ok || body == "" {
		return 0, false
	}

	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return 0, false
		}
	}

	n, err := strconv.ParseUint(body, 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

// DecodeUint returns a decoder for the width-digit value following prefix.
func DecodeUint(prefix string, width int) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		n, ok := ParseUint(frame, prefix, width)
		if !ok {
			return nil, false
		}

		return n, true
	}
}

// DecodeFlag returns a decoder for a one-digit 0/1 field following prefix.
func DecodeFlag(prefix string) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		body, ok := Field(frame, prefix, 1)
		if !ok {
			return nil, false
		}

		switch body {
		case "0":
			return false, true
		case "1":
			return true, true
		default:
			return nil, false
		}
	}
}

// DecodeChoice returns a decoder mapping the one-field value following prefix to a name.
func DecodeChoice(prefix string, width int, names map[string]string) command.DecodeFunc {
	return func(frame []byte) (any, bool) {
		body, ok := Field(frame, prefix, width)
		if !ok {
			return nil, false
		}

		name, ok := names[body]
		if !ok {
			return nil, false
		}

		return name, true
	}
}
