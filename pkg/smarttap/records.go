package smarttap

import (
	"bytes"
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/ndef"
)

// Record types and ids the applet uses in its NDEF containers.
var (
	typeServiceRequest   = []byte("srs") // wraps the record bundle in a data response
	typeRecordBundle     = []byte("reb") // encrypted envelope
	typeService          = []byte("asv") // one service (pass) in the decrypted payload
	typeNegotiateRequest = []byte("ngr") // negotiate response container
	typeSession          = []byte("ses") // session parameters (id, sequence, status)
	typeDevicePublicKey  = []byte("dpk") // device ephemeral public key

	redemptionValueID = []byte{0x6e}
)

// ExtractRecordBundle locates the encrypted record bundle inside a
// reassembled get-data payload: the top-level service request record wraps
// it. A well-formed container missing either record yields
// ErrRecordNotFound; malformed bytes propagate the decode error.
func ExtractRecordBundle(payload []byte) (ndef.Record, error) {
	records, err := ndef.Decode(payload)
	if err != nil {
		return ndef.Record{}, fmt.Errorf("decoding data response: %w", err)
	}

	srs, ok := ndef.FirstOfType(records, typeServiceRequest)
	if !ok {
		return ndef.Record{}, fmt.Errorf("%w: no service request record", ErrRecordNotFound)
	}
	inner, err := srs.Records()
	if err != nil {
		return ndef.Record{}, fmt.Errorf("decoding service request payload: %w", err)
	}
	bundle, ok := ndef.FirstOfType(inner, typeRecordBundle)
	if !ok {
		return ndef.Record{}, fmt.Errorf("%w: no record bundle", ErrRecordNotFound)
	}
	return bundle, nil
}

// ExtractRedemptionValue walks the decrypted bundle for the redemption
// value: every service record is searched, and within a service every
// child that decodes as a container is scanned for the record with id 0x6E,
// whose payload past the status byte is the value. Children that are not
// containers are skipped. When several services carry a value the last one
// wins. A pass carrying no redemption record at all is reported the same
// way as a blank one: ErrEmptyRedemptionValue. ErrRecordNotFound is
// reserved for the outer bundle lookup.
func ExtractRedemptionValue(decrypted []byte) (string, error) {
	records, err := ndef.Decode(decrypted)
	if err != nil {
		return "", fmt.Errorf("decoding decrypted payload: %w", err)
	}

	var value string
	found := false
	for _, rec := range records {
		if !bytes.Equal(rec.Type, typeService) {
			continue
		}
		children, err := rec.Records()
		if err != nil {
			return "", fmt.Errorf("decoding service record: %w", err)
		}
		for _, child := range children {
			inner, err := child.Records()
			if err != nil {
				// Not every service child is a container; leaf records
				// (text, metadata) are skipped rather than failing the pass.
				continue
			}
			redemption, ok := ndef.FirstWithID(inner, redemptionValueID)
			if !ok {
				continue
			}
			found = true
			if len(redemption.Payload) > 0 {
				value = string(redemption.Payload[1:])
			} else {
				value = ""
			}
		}
	}

	if !found {
		return "", fmt.Errorf("%w: no redemption value record", ErrEmptyRedemptionValue)
	}
	if value == "" {
		return "", ErrEmptyRedemptionValue
	}
	return value, nil
}
