package smarttap

import (
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
	"github.com/spoZebra/smart-tap/pkg/ndef"
)

// NegotiateResponse is the device's answer to NEGOTIATE SECURE SESSIONS:
// the sequence number to continue the session with and the device's
// ephemeral public key.
type NegotiateResponse struct {
	SequenceNumber  byte
	MobilePublicKey []byte
	Status          iso7816.StatusWord
}

// ParseNegotiateResponse classifies the response status and, on success,
// decodes the negotiate container. Transient statuses surface as
// ErrRetryRequested so the retry orchestrator can re-issue the command;
// 9500 surfaces as ErrAuthentication. Chunking is never expected here, so
// a more-data status is treated as fatal.
func ParseNegotiateResponse(resp *iso7816.ResponseAPDU) (*NegotiateResponse, error) {
	switch resp.Status.Outcome() {
	case iso7816.OutcomeSuccess:
	case iso7816.OutcomeTransient:
		return nil, fmt.Errorf("%w (status %04X)", ErrRetryRequested, uint16(resp.Status))
	case iso7816.OutcomeAuthFailed:
		return nil, fmt.Errorf("%w (status %04X)", ErrAuthentication, uint16(resp.Status))
	default:
		return nil, &StatusError{Status: resp.Status}
	}

	records, err := ndef.Decode(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding negotiate response: %w", err)
	}
	ngr, ok := ndef.FirstOfType(records, typeNegotiateRequest)
	if !ok {
		return nil, fmt.Errorf("%w: no negotiate record", ErrRecordNotFound)
	}
	children, err := ngr.Records()
	if err != nil {
		return nil, fmt.Errorf("decoding negotiate record: %w", err)
	}

	out := &NegotiateResponse{Status: resp.Status}
	if ses, ok := ndef.FirstOfType(children, typeSession); ok {
		// Session payload: 8-byte session id, sequence number, status.
		if len(ses.Payload) < 9 {
			return nil, fmt.Errorf("%w: session record of %d bytes", ErrMalformedResponse, len(ses.Payload))
		}
		out.SequenceNumber = ses.Payload[8]
	}
	if dpk, ok := ndef.FirstOfType(children, typeDevicePublicKey); ok {
		out.MobilePublicKey = dpk.Payload
	}
	if out.MobilePublicKey == nil {
		return nil, fmt.Errorf("%w: no device public key record", ErrRecordNotFound)
	}
	return out, nil
}
