// Package ndef implements the NDEF (NFC Data Exchange Format) record
// container used by the Smart Tap wallet applet to carry its protocol
// payloads.
//
// WIRE FORMAT (NFC Forum NDEF 1.0):
//
// A message is a sequence of records. Each record starts with a header byte:
//
//	Bit 8: MB  (Message Begin)       - set on the first record
//	Bit 7: ME  (Message End)         - set on the last record
//	Bit 6: CF  (Chunk Flag)          - record is a chunk (not supported here)
//	Bit 5: SR  (Short Record)        - payload length fits in one byte
//	Bit 4: IL  (ID Length present)   - record carries an id field
//	Bits 3-1: TNF (Type Name Format) - namespace of the type field
//
// followed by: type length (1 byte), payload length (1 byte if SR, else
// 4 bytes big-endian), optional id length (1 byte, only if IL), then the
// type, id and payload fields.
//
// NESTING:
//
// The applet nests containers: a record's payload may itself be a full NDEF
// message (e.g. the service request record 'srs' wraps a record bundle
// 'reb'). Nesting is not announced on the wire, so payloads are decoded
// on demand via Record.Records rather than eagerly — a caller recurses only
// into the branches it needs, and a payload that turns out not to be a
// container fails only that branch.
//
// Chunked records (CF) are rejected: the applet chunks at the response level
// (status 91XX plus a supplementary fetch), never at the record level.
package ndef

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/bits"
)

// ErrMalformed is returned when a record's declared lengths exceed the
// remaining bytes, or a record uses a feature the applet never produces.
var ErrMalformed = errors.New("ndef: malformed record")

// Header flag bits and the TNF field range.
const (
	flagMB  uint = 8 // Message Begin
	flagME  uint = 7 // Message End
	flagCF  uint = 6 // Chunk Flag
	flagSR  uint = 5 // Short Record
	flagIL  uint = 4 // ID Length present
	tnfHigh uint = 3
	tnfLow  uint = 1
)

// TNF (Type Name Format) values relevant to the protocol.
const (
	TNFWellKnown byte = 0x01
	TNFExternal  byte = 0x04
	TNFUnknown   byte = 0x05
)

// Record is one NDEF record: a typed, optionally id-tagged byte payload.
// The payload is opaque until a caller that knows the record is a container
// decodes it with Records.
type Record struct {
	TNF     byte
	Type    []byte
	ID      []byte
	Payload []byte
}

// Records decodes the record's payload as a nested NDEF message.
func (r Record) Records() ([]Record, error) {
	return Decode(r.Payload)
}

// Decode parses data as an NDEF message and returns its records in order.
// It fails with ErrMalformed if any declared length runs past the end of
// the buffer; out-of-range access is an error, never a truncated read.
func Decode(data []byte) ([]Record, error) {
	var records []Record

	i := 0
	for i < len(data) {
		header := data[i]
		i++

		if bits.IsSet(header, flagCF) {
			return nil, fmt.Errorf("%w: chunked records not supported", ErrMalformed)
		}

		if i >= len(data) {
			return nil, fmt.Errorf("%w: type length missing", ErrMalformed)
		}
		typeLen := int(data[i])
		i++

		var payloadLen int
		if bits.IsSet(header, flagSR) {
			if i >= len(data) {
				return nil, fmt.Errorf("%w: payload length missing", ErrMalformed)
			}
			payloadLen = int(data[i])
			i++
		} else {
			if i+4 > len(data) {
				return nil, fmt.Errorf("%w: payload length missing", ErrMalformed)
			}
			payloadLen = int(data[i])<<24 | int(data[i+1])<<16 | int(data[i+2])<<8 | int(data[i+3])
			i += 4
		}

		idLen := 0
		if bits.IsSet(header, flagIL) {
			if i >= len(data) {
				return nil, fmt.Errorf("%w: id length missing", ErrMalformed)
			}
			idLen = int(data[i])
			i++
		}

		if payloadLen < 0 || i+typeLen+idLen+payloadLen > len(data) {
			return nil, fmt.Errorf("%w: record declares %d bytes, %d remain",
				ErrMalformed, typeLen+idLen+payloadLen, len(data)-i)
		}

		rec := Record{
			TNF:     bits.GetRange(header, tnfHigh, tnfLow),
			Type:    copyBytes(data[i : i+typeLen]),
			ID:      copyBytes(data[i+typeLen : i+typeLen+idLen]),
			Payload: copyBytes(data[i+typeLen+idLen : i+typeLen+idLen+payloadLen]),
		}
		i += typeLen + idLen + payloadLen

		records = append(records, rec)
	}

	return records, nil
}

// Encode serializes records as one NDEF message. MB/ME are set on the first
// and last record, the short-record form is chosen whenever the payload
// fits, and the id field is emitted only when present.
func Encode(records []Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrMalformed)
	}

	var out []byte
	for n, rec := range records {
		if len(rec.Type) > 0xFF {
			return nil, fmt.Errorf("%w: type field of %d bytes", ErrMalformed, len(rec.Type))
		}
		if len(rec.ID) > 0xFF {
			return nil, fmt.Errorf("%w: id field of %d bytes", ErrMalformed, len(rec.ID))
		}

		shortRecord := len(rec.Payload) <= 0xFF

		header := bits.GetRange(rec.TNF, tnfHigh, tnfLow)
		if n == 0 {
			header = bits.Set(header, flagMB)
		}
		if n == len(records)-1 {
			header = bits.Set(header, flagME)
		}
		if shortRecord {
			header = bits.Set(header, flagSR)
		}
		if len(rec.ID) > 0 {
			header = bits.Set(header, flagIL)
		}

		out = append(out, header, byte(len(rec.Type)))
		if shortRecord {
			out = append(out, byte(len(rec.Payload)))
		} else {
			n := len(rec.Payload)
			out = append(out, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
		}
		if len(rec.ID) > 0 {
			out = append(out, byte(len(rec.ID)))
		}
		out = append(out, rec.Type...)
		out = append(out, rec.ID...)
		out = append(out, rec.Payload...)
	}

	return out, nil
}

// FirstOfType returns the first record whose type field equals recordType.
func FirstOfType(records []Record, recordType []byte) (Record, bool) {
	for _, rec := range records {
		if bytes.Equal(rec.Type, recordType) {
			return rec, true
		}
	}
	return Record{}, false
}

// FirstWithID returns the first record whose id field equals id.
func FirstWithID(records []Record, id []byte) (Record, bool) {
	for _, rec := range records {
		if bytes.Equal(rec.ID, id) {
			return rec, true
		}
	}
	return Record{}, false
}

func copyBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
