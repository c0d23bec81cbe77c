package smarttap

import (
	"encoding/binary"
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
	"github.com/spoZebra/smart-tap/pkg/tlv"
)

// smartTapAID selects the Smart Tap wallet applet.
var smartTapAID = tlv.Hex("A0 00 00 04 76 D0 00 01 11")

// SelectResponse is the applet's answer to SELECT: the protocol version
// range it supports and its nonce for this session.
type SelectResponse struct {
	MinimumVersion uint16
	MaximumVersion uint16

	MobileDeviceNonce []byte `tlv:"DF6D"`
}

// ParseSelectResponse decodes the SELECT response: two big-endian version
// words followed by a BER-TLV block carrying the mobile device nonce.
func ParseSelectResponse(resp *iso7816.ResponseAPDU) (*SelectResponse, error) {
	if err := checkStatus(resp.Status); err != nil {
		return nil, err
	}
	if len(resp.Data) < 4 {
		return nil, fmt.Errorf("select response of %d bytes", len(resp.Data))
	}

	out := &SelectResponse{
		MinimumVersion: binary.BigEndian.Uint16(resp.Data[0:2]),
		MaximumVersion: binary.BigEndian.Uint16(resp.Data[2:4]),
	}
	if err := tlv.Unmarshal(resp.Data[4:], out); err != nil {
		return nil, fmt.Errorf("decoding select response: %w", err)
	}
	if out.MobileDeviceNonce == nil {
		return nil, fmt.Errorf("%w: no mobile device nonce", ErrRecordNotFound)
	}
	return out, nil
}

// checkStatus maps a status word onto the session error taxonomy. Success
// and more-data pass; transient and authentication statuses map onto their
// sentinels; everything else is fatal.
func checkStatus(sw iso7816.StatusWord) error {
	switch sw.Outcome() {
	case iso7816.OutcomeSuccess, iso7816.OutcomeMoreData:
		return nil
	case iso7816.OutcomeTransient:
		return fmt.Errorf("%w (status %04X)", ErrRetryRequested, uint16(sw))
	case iso7816.OutcomeAuthFailed:
		return fmt.Errorf("%w (status %04X)", ErrAuthentication, uint16(sw))
	default:
		return &StatusError{Status: sw}
	}
}
