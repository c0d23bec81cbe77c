package smarttap

import (
	"errors"
	"fmt"

	"github.com/spoZebra/smart-tap/pkg/iso7816"
)

// Sentinel errors reported by the session pipeline. Callers classify
// failures with errors.Is; wrapped errors carry the step-specific detail.
var (
	// ErrRecordNotFound reports that a required record (service request,
	// record bundle, negotiate response, device public key) is absent from
	// an otherwise well-formed container.
	ErrRecordNotFound = errors.New("smarttap: record not found")

	// ErrMalformedResponse reports a response record whose payload does
	// not follow the protocol layout, for example a session record too
	// short to carry a sequence number. Wire-level framing errors keep
	// their own sentinels (ndef.ErrMalformed, tlv.ErrMalformed).
	ErrMalformedResponse = errors.New("smarttap: malformed response")

	// ErrKeyAgreement reports a failed ECDH computation, typically an
	// invalid or off-curve mobile public key.
	ErrKeyAgreement = errors.New("smarttap: key agreement failed")

	// ErrUnsupportedCompression reports an envelope whose payload is
	// compressed. Compression is negotiated off and never expected.
	ErrUnsupportedCompression = errors.New("smarttap: unsupported payload compression")

	// ErrIntegrity reports an envelope whose authentication tag does not
	// match. The ciphertext is not decrypted in that case.
	ErrIntegrity = errors.New("smarttap: envelope integrity check failed")

	// ErrDecryption reports an envelope too short to contain the IV,
	// ciphertext and authentication tag.
	ErrDecryption = errors.New("smarttap: envelope decryption failed")

	// ErrEmptyRedemptionValue reports a pass whose redemption value is
	// blank or missing from the decrypted payload altogether.
	ErrEmptyRedemptionValue = errors.New("smarttap: empty redemption value")

	// ErrRetryRequested reports a transient device condition (status 92XX).
	// It never escapes WithRetry: exhausted retries surface as
	// ErrRetryExhausted instead.
	ErrRetryRequested = errors.New("smarttap: device requested retry")

	// ErrRetryExhausted reports that an operation stayed transient through
	// every permitted retry.
	ErrRetryExhausted = errors.New("smarttap: retry attempts exhausted")

	// ErrAuthentication reports that the device rejected the terminal's
	// credentials (status 9500).
	ErrAuthentication = errors.New("smarttap: device rejected authentication")
)

// StatusError reports a fatal status word, one outside the success,
// more-data, transient and authentication bands.
type StatusError struct {
	Status iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("smarttap: device returned fatal status %04X", uint16(e.Status))
}
