// Package tlv implements the BER-TLV dialect spoken by the Smart Tap wallet
// applet.
//
// WIRE FORMAT:
//
// The applet encodes data as a flat sequence of Tag-Length-Value triplets.
// The dialect is a restricted (and slightly divergent) profile of BER-TLV
// as defined by ISO/IEC 7816-4:
//
//  1. Tags are one byte, except tags whose first byte is 0xDF or 0xBF,
//     which carry exactly one additional tag byte (e.g. 'DF6D').
//     The general BER multi-byte tag continuation rule does not apply.
//
//  2. Length bytes 0x81, 0x82, 0x83 and 0x84 announce that the following
//     1, 2, 3 or 4 bytes (big-endian) encode the value length. ANY other
//     first length byte is itself the length. This differs from strict
//     BER, where 0x85..0xFF would announce 5..127 following length octets;
//     the applet never emits those forms and expects them to be read as
//     literal short-form lengths.
//
// Because of rule 2 a standards-conformant BER decoder would mis-frame
// real device payloads, so the decoder here is written against the applet
// behavior rather than the standard.
//
// Tags may repeat; decoded values for a repeated tag keep their order of
// appearance.
package tlv

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed is returned when a TLV sequence declares more data than the
// buffer holds, or is otherwise not decodable.
var ErrMalformed = errors.New("tlv: malformed data")

// Map is a multi-valued mapping from an uppercase hex tag (e.g. "DF6D") to
// the list of values decoded for that tag, in order of appearance.
type Map map[string][][]byte

// First returns the first value decoded for tag, if any.
func (m Map) First(tag string) ([]byte, bool) {
	values := m[strings.ToUpper(tag)]
	if len(values) == 0 {
		return nil, false
	}
	return values[0], true
}

// Values returns every value decoded for tag, in order of appearance.
func (m Map) Values(tag string) [][]byte {
	return m[strings.ToUpper(tag)]
}

// Decode parses data as a sequence of TLV triplets and returns the tag to
// values mapping. It fails with ErrMalformed as soon as a tag, length or
// value field would extend past the end of the buffer; no partial reads are
// returned.
func Decode(data []byte) (Map, error) {
	parsed := make(Map)

	i := 0
	for i < len(data) {
		tagStart := i

		// Tags starting with 0xDF or 0xBF have one additional byte.
		tagLen := 1
		if data[i] == 0xDF || data[i] == 0xBF {
			tagLen = 2
		}
		if i+tagLen > len(data) {
			return nil, fmt.Errorf("%w: tag at offset %d truncated", ErrMalformed, tagStart)
		}
		tag := strings.ToUpper(hex.EncodeToString(data[i : i+tagLen]))
		i += tagLen

		if i >= len(data) {
			return nil, fmt.Errorf("%w: tag %s has no length byte", ErrMalformed, tag)
		}

		// 0x81..0x84 announce a 1..4 byte big-endian length; anything
		// else is itself the length.
		var valueLen int
		lengthByte := data[i]
		i++

		extra := 0
		switch lengthByte {
		case 0x81:
			extra = 1
		case 0x82:
			extra = 2
		case 0x83:
			extra = 3
		case 0x84:
			extra = 4
		}

		if extra > 0 {
			if i+extra > len(data) {
				return nil, fmt.Errorf("%w: tag %s length field truncated", ErrMalformed, tag)
			}
			for _, b := range data[i : i+extra] {
				valueLen = valueLen<<8 | int(b)
			}
			i += extra
		} else {
			valueLen = int(lengthByte)
		}

		if i+valueLen > len(data) {
			return nil, fmt.Errorf("%w: tag %s declares %d value bytes, %d remain",
				ErrMalformed, tag, valueLen, len(data)-i)
		}

		value := make([]byte, valueLen)
		copy(value, data[i:i+valueLen])
		i += valueLen

		parsed[tag] = append(parsed[tag], value)
	}

	return parsed, nil
}

// TagValue is one tag-value pair for encoding.
type TagValue struct {
	Tag   string // uppercase or lowercase hex, 1 or 2 bytes
	Value []byte
}

// Encode serializes the given tag-value pairs in order, choosing the
// shortest length form the dialect allows: a literal length byte for values
// of up to 127 bytes, and the 0x81..0x84 long forms above that.
func Encode(items []TagValue) ([]byte, error) {
	var out []byte

	for _, item := range items {
		tag, err := hex.DecodeString(item.Tag)
		if err != nil || len(tag) < 1 || len(tag) > 2 {
			return nil, fmt.Errorf("%w: invalid tag %q", ErrMalformed, item.Tag)
		}
		if len(tag) == 2 && tag[0] != 0xDF && tag[0] != 0xBF {
			return nil, fmt.Errorf("%w: two-byte tag %q must start with DF or BF", ErrMalformed, item.Tag)
		}

		out = append(out, tag...)
		out = appendLength(out, len(item.Value))
		out = append(out, item.Value...)
	}

	return out, nil
}

// appendLength writes the shortest valid length encoding for n.
// Literal bytes 0x81..0x84 are reserved as long-form markers, so lengths
// above 0x80 use the long forms.
func appendLength(dst []byte, n int) []byte {
	switch {
	case n <= 0x80:
		return append(dst, byte(n))
	case n <= 0xFF:
		return append(dst, 0x81, byte(n))
	case n <= 0xFFFF:
		return append(dst, 0x82, byte(n>>8), byte(n))
	case n <= 0xFFFFFF:
		return append(dst, 0x83, byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(dst, 0x84, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}
